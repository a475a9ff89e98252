// Package spapi provides a typed client for the Selling Partner API
// endpoints the tap extracts from: orders, order items, and sales metrics.
package spapi

import "time"

// Operation names used for per-endpoint rate limiting and metrics labels.
const (
	OpGetOrders       = "getOrders"
	OpGetOrderItems   = "getOrderItems"
	OpGetOrderMetrics = "getOrderMetrics"
)

// Record is a raw API object. Payload shapes differ per seller account, so
// records stay dynamic until the stream layer projects them onto a schema.
type Record = map[string]interface{}

// OrdersPayload is the inner payload of a getOrders response.
type OrdersPayload struct {
	Orders            []Record `json:"Orders"`
	NextToken         string   `json:"NextToken,omitempty"`
	LastUpdatedBefore string   `json:"LastUpdatedBefore,omitempty"`
	CreatedBefore     string   `json:"CreatedBefore,omitempty"`
}

// OrdersResponse is a getOrders response envelope.
type OrdersResponse struct {
	Payload OrdersPayload `json:"payload"`
}

// OrderItemsPayload is the inner payload of a getOrderItems response.
type OrderItemsPayload struct {
	AmazonOrderID string   `json:"AmazonOrderId"`
	OrderItems    []Record `json:"OrderItems"`
	NextToken     string   `json:"NextToken,omitempty"`
}

// OrderItemsResponse is a getOrderItems response envelope.
type OrderItemsResponse struct {
	Payload OrderItemsPayload `json:"payload"`
}

// OrderMetricsResponse is a getOrderMetrics response envelope. The payload
// is a list of pre-aggregated interval buckets.
type OrderMetricsResponse struct {
	Payload []Record `json:"payload"`
}

// APIError is one error object from an SP-API error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse is the SP-API error envelope.
type ErrorResponse struct {
	Errors []APIError `json:"errors"`
}

// OrdersParams are the query parameters for a getOrders page request.
type OrdersParams struct {
	LastUpdatedAfter  time.Time
	LastUpdatedBefore time.Time
	MarketplaceIDs    []string
	NextToken         string
}

// OrderMetricsParams are the query parameters for a getOrderMetrics request.
type OrderMetricsParams struct {
	IntervalStart  time.Time
	IntervalEnd    time.Time
	Granularity    string
	MarketplaceIDs []string
}

// FormatTime renders a timestamp the way the API expects query parameters:
// UTC, second precision, no timezone suffix.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05")
}
