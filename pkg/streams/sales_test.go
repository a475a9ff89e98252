package streams

import (
	"context"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datastitch/tap-amazon-sp/pkg/config"
	"github.com/datastitch/tap-amazon-sp/pkg/spapi"
)

func metricsBody(buckets ...map[string]interface{}) string {
	body, _ := gojson.Marshal(map[string]interface{}{"payload": buckets})
	return string(body)
}

func TestSalesStreamAlignsAndReshapes(t *testing.T) {
	doer := &scriptedDoer{responses: map[string][]string{
		spapi.OpGetOrderMetrics: {
			metricsBody(
				map[string]interface{}{
					"interval":   "2024-01-01T00:00:00Z--2024-01-02T00:00:00Z",
					"unitCount":  float64(12),
					"orderCount": float64(7),
					"totalSales": map[string]interface{}{"currencyCode": "USD", "amount": "432.10"},
				},
				map[string]interface{}{
					"interval":   "2024-01-02T00:00:00Z--2024-01-03T00:00:00Z",
					"unitCount":  float64(3),
					"orderCount": float64(2),
					"totalSales": map[string]interface{}{"currencyCode": "USD", "amount": "99.00"},
				},
			),
		},
	}}
	client := spapi.NewClient("https://sellingpartnerapi-na.amazon.com", doer)
	stream := NewSalesStream(client, []string{"ATVPDKIKX0DER"}, config.GranularityDay)

	window := Window{
		CreatedAfter:  time.Date(2024, 1, 1, 6, 30, 0, 0, time.UTC),
		CreatedBefore: time.Date(2024, 1, 3, 18, 0, 0, 0, time.UTC),
	}

	sink := &collectingSink{}
	bookmark, err := stream.Sync(context.Background(), window, sink)
	require.NoError(t, err)

	// Bookmark is the aligned upper bound, not the raw window edge.
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), bookmark)

	require.Len(t, sink.records, 2)
	first := sink.records[0]
	assert.Equal(t, "2024-01-01T00:00:00Z", first["intervalStart"])
	assert.Equal(t, "2024-01-02T00:00:00Z", first["intervalEnd"])
	assert.Equal(t, float64(12), first["unitCount"])

	// The request interval was aligned to day boundaries.
	require.Len(t, doer.requests, 1)
	q := doer.requests[0].URL.Query()
	assert.Equal(t, "2024-01-01T00:00:00--2024-01-03T00:00:00", q.Get("interval"))
	assert.Equal(t, "DAY", q.Get("granularity"))
}

func TestSalesStreamSkipsEmptyAlignedWindow(t *testing.T) {
	doer := &scriptedDoer{responses: map[string][]string{}}
	client := spapi.NewClient("https://sellingpartnerapi-na.amazon.com", doer)
	stream := NewSalesStream(client, []string{"ATVPDKIKX0DER"}, config.GranularityDay)

	// Both bounds fall inside the same day: nothing complete to fetch.
	window := Window{
		CreatedAfter:  time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC),
		CreatedBefore: time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC),
	}

	sink := &collectingSink{}
	bookmark, err := stream.Sync(context.Background(), window, sink)
	require.NoError(t, err)

	assert.True(t, bookmark.IsZero(), "no bookmark advance when nothing was queried")
	assert.Empty(t, sink.records)
	assert.Empty(t, doer.requests)
}

func TestSalesStreamRejectsMalformedInterval(t *testing.T) {
	doer := &scriptedDoer{responses: map[string][]string{
		spapi.OpGetOrderMetrics: {
			metricsBody(map[string]interface{}{"interval": "not-an-interval"}),
		},
	}}
	client := spapi.NewClient("https://sellingpartnerapi-na.amazon.com", doer)
	stream := NewSalesStream(client, []string{"ATVPDKIKX0DER"}, config.GranularityDay)

	window := Window{
		CreatedAfter:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedBefore: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}

	_, err := stream.Sync(context.Background(), window, &collectingSink{})
	require.Error(t, err)
}

func TestSalesStreamAlignWindow(t *testing.T) {
	stream := NewSalesStream(nil, []string{"ATVPDKIKX0DER"}, config.GranularityMonth)

	window := Window{
		CreatedAfter:  time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
		CreatedBefore: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
	}
	aligned := stream.AlignWindow(window)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), aligned.CreatedAfter,
		"lower bound snaps back to the bucket start")
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), aligned.CreatedBefore)

	total := NewSalesStream(nil, []string{"ATVPDKIKX0DER"}, config.GranularityTotal)
	assert.Equal(t, window, total.AlignWindow(window), "TOTAL has no bucket edges")
}
