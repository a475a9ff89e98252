// Package tapamazonsp implements a Singer tap for the Amazon Selling
// Partner API. It extracts orders, order line items, and pre-aggregated
// sales metrics incrementally and emits them as Singer SCHEMA, RECORD,
// and STATE messages on stdout.
//
// # Streams
//
// Three streams are supported, synced in a fixed order:
//
//  1. orders: all orders whose LastUpdateDate falls in the sync window,
//     paginated with the API's NextToken.
//  2. order_items: the line items of every order from the orders window,
//     flattened with the parent order's id and update timestamp.
//  3. sales: order metrics bucketed at a configurable granularity
//     (HOUR through TOTAL), with the query interval snapped to bucket
//     boundaries.
//
// Each stream keeps a bookmark in Singer state and resumes from it on the
// next run. Bookmarks only advance after a stream's window has been fully
// emitted, so an interrupted run re-fetches at-least-once rather than
// losing records.
//
// # Authentication
//
// Requests carry two independent credential chains: a Login with Amazon
// bearer token exchanged from the configured refresh token, and an AWS
// SigV4 signature computed from static keys via an assumed IAM role. Both
// are cached and refreshed transparently.
//
// # Quick Start
//
// Discover the catalog, then sync:
//
//	tap-amazon-sp discover --config config.json > catalog.json
//	tap-amazon-sp sync --config config.json --catalog catalog.json --state state.json
//
// All log output goes to stderr; stdout carries only Singer messages.
package tapamazonsp
