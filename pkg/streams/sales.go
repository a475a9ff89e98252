package streams

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datastitch/tap-amazon-sp/pkg/config"
	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/logger"
	"github.com/datastitch/tap-amazon-sp/pkg/spapi"
)

// SalesStream emits pre-aggregated order metrics bucketed at the configured
// granularity. The query interval is snapped down to granularity boundaries
// so partial buckets are never requested; a window that collapses to nothing
// after snapping is skipped without advancing the bookmark.
type SalesStream struct {
	client         *spapi.Client
	marketplaceIDs []string
	granularity    config.Granularity
	logger         *zap.Logger
}

// NewSalesStream creates the sales driver.
func NewSalesStream(client *spapi.Client, marketplaceIDs []string, granularity config.Granularity) *SalesStream {
	return &SalesStream{
		client:         client,
		marketplaceIDs: marketplaceIDs,
		granularity:    granularity,
		logger:         logger.With(zap.String("stream", StreamSales)),
	}
}

// Definition implements Stream.
func (s *SalesStream) Definition() Definition {
	return Definition{
		Name:                 StreamSales,
		KeyProperties:        []string{"intervalStart"},
		ReplicationKey:       "intervalStart",
		ValidReplicationKeys: []string{"intervalStart"},
		Schema:               salesSchema(),
	}
}

// AlignWindow implements WindowAligner: both bounds snap down to their
// granularity bucket. The first bucket can therefore start before the raw
// lower bound and must still be emitted.
func (s *SalesStream) AlignWindow(window Window) Window {
	if s.granularity == config.GranularityTotal {
		return window
	}
	return Window{
		CreatedAfter:  alignDown(window.CreatedAfter, s.granularity),
		CreatedBefore: alignDown(window.CreatedBefore, s.granularity),
	}
}

// Sync implements Stream. The whole aligned interval is fetched in one
// getOrderMetrics call; the API returns one bucket per granularity unit.
func (s *SalesStream) Sync(ctx context.Context, window Window, sink Sink) (time.Time, error) {
	aligned := s.AlignWindow(window)
	start, end := aligned.CreatedAfter, aligned.CreatedBefore

	if !start.Before(end) {
		s.logger.Info("aligned window is empty, skipping",
			zap.Time("created_after", window.CreatedAfter),
			zap.Time("created_before", window.CreatedBefore),
			zap.String("granularity", string(s.granularity)))
		return time.Time{}, nil
	}

	resp, err := s.client.GetOrderMetrics(ctx, spapi.OrderMetricsParams{
		IntervalStart:  start,
		IntervalEnd:    end,
		Granularity:    string(s.granularity),
		MarketplaceIDs: s.marketplaceIDs,
	})
	if err != nil {
		return time.Time{}, err
	}

	for _, bucket := range resp.Payload {
		record, err := reshapeBucket(bucket)
		if err != nil {
			return time.Time{}, err
		}
		if err := sink.Record(record); err != nil {
			return time.Time{}, err
		}
	}
	if err := sink.PageComplete(); err != nil {
		return time.Time{}, err
	}

	s.logger.Info("sales window complete",
		zap.Int("buckets", len(resp.Payload)),
		zap.Time("interval_start", start),
		zap.Time("interval_end", end))

	// Bookmark the aligned upper bound: buckets past it were never queried.
	return end, nil
}

// reshapeBucket splits the API's "start--end" interval field into the
// intervalStart and intervalEnd columns the schema declares.
func reshapeBucket(bucket spapi.Record) (map[string]interface{}, error) {
	interval, _ := bucket["interval"].(string)
	parts := strings.SplitN(interval, "--", 2)
	if len(parts) != 2 {
		return nil, errors.Newf(errors.ErrorTypeData,
			"order metrics bucket has malformed interval %q", interval).
			WithDetail("stream", StreamSales)
	}

	record := make(map[string]interface{}, len(bucket)+2)
	for k, v := range bucket {
		record[k] = v
	}
	record["intervalStart"] = parts[0]
	record["intervalEnd"] = parts[1]
	return record, nil
}

// alignDown snaps t to the start of its granularity bucket. Weeks start on
// Monday, matching the API's default for the US marketplace group.
func alignDown(t time.Time, g config.Granularity) time.Time {
	t = t.UTC()
	switch g {
	case config.GranularityHour:
		return t.Truncate(time.Hour)
	case config.GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case config.GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case config.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case config.GranularityYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}
