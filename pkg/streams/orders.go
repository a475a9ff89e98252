package streams

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/logger"
	"github.com/datastitch/tap-amazon-sp/pkg/spapi"
)

// orderRef is the parent-stream handle the order_items driver consumes: the
// order identifier plus the update timestamp its items inherit.
type orderRef struct {
	ID             string
	LastUpdateDate string
}

// OrdersStream paginates /orders/v0/orders over an update-time window.
// Replication key is LastUpdateDate; the API delivers pages in
// non-decreasing update order.
type OrdersStream struct {
	client         *spapi.Client
	marketplaceIDs []string
	logger         *zap.Logger

	// refs from the last synced window, consumed by the child stream
	cachedWindow Window
	cachedRefs   []orderRef
}

// NewOrdersStream creates the orders driver.
func NewOrdersStream(client *spapi.Client, marketplaceIDs []string) *OrdersStream {
	return &OrdersStream{
		client:         client,
		marketplaceIDs: marketplaceIDs,
		logger:         logger.With(zap.String("stream", StreamOrders)),
	}
}

// Definition implements Stream.
func (s *OrdersStream) Definition() Definition {
	return Definition{
		Name:                 StreamOrders,
		KeyProperties:        []string{"AmazonOrderId"},
		ReplicationKey:       "LastUpdateDate",
		ValidReplicationKeys: []string{"LastUpdateDate"},
		Schema:               ordersSchema(),
	}
}

// Sync implements Stream. All pages of the window are emitted before the
// bookmark (the window's upper bound) is returned; a crash mid-window
// resumes from the prior bookmark and re-fetches the window.
func (s *OrdersStream) Sync(ctx context.Context, window Window, sink Sink) (time.Time, error) {
	refs, err := s.fetch(ctx, window, sink)
	if err != nil {
		return time.Time{}, err
	}

	s.cachedWindow = window
	s.cachedRefs = refs

	return window.CreatedBefore, nil
}

// refsForWindow returns the cached refs when the orders stream already
// synced this run and its window covers the requested one; otherwise it
// fetches the requested window without emitting. The coverage check
// matters on resume: when the child's bookmark lags the parent's, the
// child's window reaches further back than the cache and serving the
// cache would skip orders updated in the uncovered range.
func (s *OrdersStream) refsForWindow(ctx context.Context, window Window) ([]orderRef, Window, error) {
	if s.cachedRefs != nil && !window.CreatedAfter.Before(s.cachedWindow.CreatedAfter) {
		return s.cachedRefs, s.cachedWindow, nil
	}

	s.logger.Info("fetching parent order data for child stream",
		zap.Time("created_after", window.CreatedAfter),
		zap.Time("created_before", window.CreatedBefore))

	refs, err := s.fetch(ctx, window, nil)
	if err != nil {
		return nil, Window{}, err
	}
	return refs, window, nil
}

// fetch walks every page of the window. A nil sink collects refs only.
func (s *OrdersStream) fetch(ctx context.Context, window Window, sink Sink) ([]orderRef, error) {
	var refs []orderRef
	nextToken := ""
	pages := 0

	for {
		resp, err := s.client.GetOrders(ctx, spapi.OrdersParams{
			LastUpdatedAfter:  window.CreatedAfter,
			LastUpdatedBefore: window.CreatedBefore,
			MarketplaceIDs:    s.marketplaceIDs,
			NextToken:         nextToken,
		})
		if err != nil {
			return nil, err
		}
		pages++

		for _, order := range resp.Payload.Orders {
			id, ok := order["AmazonOrderId"].(string)
			if !ok || id == "" {
				return nil, errors.New(errors.ErrorTypeData,
					"order payload missing AmazonOrderId").
					WithDetail("stream", StreamOrders)
			}
			lastUpdate, _ := order["LastUpdateDate"].(string)
			refs = append(refs, orderRef{ID: id, LastUpdateDate: lastUpdate})

			if sink != nil {
				if err := sink.Record(order); err != nil {
					return nil, err
				}
			}
		}

		if sink != nil {
			if err := sink.PageComplete(); err != nil {
				return nil, err
			}
		}

		nextToken = resp.Payload.NextToken
		if nextToken == "" {
			break
		}
	}

	s.logger.Info("orders window complete",
		zap.Int("pages", pages),
		zap.Int("orders", len(refs)))

	return refs, nil
}
