package spapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/datastitch/tap-amazon-sp/pkg/clients"
	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/logger"
)

// Budgets returns the published per-operation rate and burst limits.
// getOrders is granted one request per minute with a burst of 20.
func Budgets() map[string]clients.Budget {
	return map[string]clients.Budget{
		OpGetOrders:       {Rate: 0.0167, Burst: 20},
		OpGetOrderItems:   {Rate: 0.5, Burst: 30},
		OpGetOrderMetrics: {Rate: 0.5, Burst: 15},
	}
}

// Client is a typed SP-API client. All requests flow through the executor,
// which owns rate limiting, signing, and retries.
type Client struct {
	endpoint string
	doer     clients.Doer
	logger   *zap.Logger
}

// NewClient creates a client bound to one regional endpoint.
func NewClient(endpoint string, doer clients.Doer) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		doer:     doer,
		logger:   logger.With(zap.String("component", "spapi_client")),
	}
}

// GetOrders fetches one page of orders for the given update window.
func (c *Client) GetOrders(ctx context.Context, params OrdersParams) (*OrdersResponse, error) {
	q := url.Values{}
	if params.NextToken != "" {
		// A NextToken encodes the original selection; the API rejects
		// requests that re-send the window alongside it.
		q.Set("NextToken", params.NextToken)
		q.Set("MarketplaceIds", strings.Join(params.MarketplaceIDs, ","))
	} else {
		q.Set("LastUpdatedAfter", FormatTime(params.LastUpdatedAfter))
		q.Set("LastUpdatedBefore", FormatTime(params.LastUpdatedBefore))
		q.Set("MarketplaceIds", strings.Join(params.MarketplaceIDs, ","))
	}

	var out OrdersResponse
	if err := c.get(ctx, OpGetOrders, "/orders/v0/orders", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrderItems fetches one page of line items for an order.
func (c *Client) GetOrderItems(ctx context.Context, amazonOrderID, nextToken string) (*OrderItemsResponse, error) {
	q := url.Values{}
	if nextToken != "" {
		q.Set("NextToken", nextToken)
	}

	path := fmt.Sprintf("/orders/v0/orders/%s/orderItems", url.PathEscape(amazonOrderID))

	var out OrderItemsResponse
	if err := c.get(ctx, OpGetOrderItems, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrderMetrics fetches pre-aggregated sales buckets for an interval.
// The interval must be aligned to the granularity; the API rejects
// partial-period windows.
func (c *Client) GetOrderMetrics(ctx context.Context, params OrderMetricsParams) (*OrderMetricsResponse, error) {
	q := url.Values{}
	q.Set("interval", fmt.Sprintf("%s--%s",
		FormatTime(params.IntervalStart), FormatTime(params.IntervalEnd)))
	q.Set("granularity", params.Granularity)
	q.Set("marketplaceIds", strings.Join(params.MarketplaceIDs, ","))

	var out OrderMetricsResponse
	if err := c.get(ctx, OpGetOrderMetrics, "/sales/v1/orderMetrics", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get issues one GET through the executor and decodes the response envelope.
func (c *Client) get(ctx context.Context, operation, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path+"?"+q.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tap-amazon-sp/0.2.0 (Language=Go)")

	resp, err := c.doer.Do(ctx, operation, req)
	if err != nil {
		return c.describeAPIError(operation, err)
	}

	if err := gojson.Unmarshal(resp.Body, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode API response").
			WithDetail("operation", operation)
	}

	return nil
}

// describeAPIError surfaces the API's own error messages when the failed
// response body carries the standard error envelope.
func (c *Client) describeAPIError(operation string, err error) error {
	var e *errors.Error
	if !errors.IsType(err, errors.ErrorTypeValidation) {
		return err
	}
	if !stderrors.As(err, &e) || e.Details == nil {
		return err
	}

	body, ok := e.Details["body"].(string)
	if !ok {
		return err
	}

	var envelope ErrorResponse
	if jsonErr := gojson.Unmarshal([]byte(body), &envelope); jsonErr != nil || len(envelope.Errors) == 0 {
		return err
	}

	first := envelope.Errors[0]
	c.logger.Error("SP-API rejected request",
		zap.String("operation", operation),
		zap.String("code", first.Code),
		zap.String("message", first.Message))

	return errors.Newf(errors.ErrorTypeValidation, "%s: %s", first.Code, first.Message)
}

