// Package streams implements the per-stream sync drivers: pagination,
// incremental window selection, and record shaping for the orders,
// order_items, and sales streams.
package streams

import (
	"context"
	"time"

	"github.com/datastitch/tap-amazon-sp/pkg/config"
	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/singer"
	"github.com/datastitch/tap-amazon-sp/pkg/spapi"
)

// Stream identifiers. Declaration order is sync order: orders must run
// before order_items so the child can reuse the parent's window.
const (
	StreamOrders     = "orders"
	StreamOrderItems = "order_items"
	StreamSales      = "sales"
)

// Definition is the static description of one stream.
type Definition struct {
	Name                 string
	KeyProperties        []string
	ReplicationKey       string
	ValidReplicationKeys []string
	Schema               *singer.Schema
}

// Window is the half-open time range [CreatedAfter, CreatedBefore) queried
// for one sync pass of a stream.
type Window struct {
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// NewWindow derives a stream's sync window. The lower bound is the later of
// the configured start date and the stream's bookmark; the upper bound is
// the wall clock captured once at stream start.
func NewWindow(startDate, bookmark, now time.Time) Window {
	after := startDate
	if bookmark.After(after) {
		after = bookmark
	}
	return Window{CreatedAfter: after.UTC(), CreatedBefore: now.UTC()}
}

// Sink receives a driver's output. Record delivers one raw record in API
// order; PageComplete signals that a full page has been emitted and a state
// checkpoint may be flushed.
type Sink interface {
	Record(record map[string]interface{}) error
	PageComplete() error
}

// Stream is the per-stream sync capability. Sync emits the window's records
// into the sink and returns the bookmark value to persist, or the zero time
// when the stream made no progress to record. The bookmark is only ever the
// window's upper bound, returned after every page has been fully emitted.
type Stream interface {
	Definition() Definition
	Sync(ctx context.Context, window Window, sink Sink) (time.Time, error)
}

// WindowAligner is implemented by streams that widen their query window
// beyond the requested bounds. Record filtering must use the aligned
// window, or records the driver deliberately queried before the raw lower
// bound would be dropped.
type WindowAligner interface {
	AlignWindow(Window) Window
}

// DeclarationOrder is the fixed order streams sync in.
var DeclarationOrder = []string{StreamOrders, StreamOrderItems, StreamSales}

// BuildAll constructs every supported stream, wired to one API client. The
// returned map is the closed dispatch table for the orchestrator.
func BuildAll(client *spapi.Client, cfg *config.Config) map[string]Stream {
	marketplaceIDs := spapi.MarketplaceIDs(cfg.ResolvedMarketplaces())

	orders := NewOrdersStream(client, marketplaceIDs)
	return map[string]Stream{
		StreamOrders:     orders,
		StreamOrderItems: NewOrderItemsStream(client, orders),
		StreamSales:      NewSalesStream(client, marketplaceIDs, cfg.SalesDataGranularity),
	}
}

// Lookup resolves a stream by name.
func Lookup(streams map[string]Stream, name string) (Stream, error) {
	s, ok := streams[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown stream %q", name)
	}
	return s, nil
}
