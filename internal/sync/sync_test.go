package sync

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datastitch/tap-amazon-sp/pkg/config"
	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/singer"
	"github.com/datastitch/tap-amazon-sp/pkg/streams"
)

// fakeStream replays canned records and remembers the window it was given.
type fakeStream struct {
	def     streams.Definition
	records []map[string]interface{}
	err     error

	window streams.Window
	synced bool
}

func (f *fakeStream) Definition() streams.Definition { return f.def }

func (f *fakeStream) Sync(ctx context.Context, window streams.Window, sink streams.Sink) (time.Time, error) {
	f.window = window
	f.synced = true
	if f.err != nil {
		return time.Time{}, f.err
	}
	for _, r := range f.records {
		if err := sink.Record(r); err != nil {
			return time.Time{}, err
		}
	}
	if err := sink.PageComplete(); err != nil {
		return time.Time{}, err
	}
	return window.CreatedBefore, nil
}

func ordersDefinition() streams.Definition {
	return streams.Definition{
		Name:                 streams.StreamOrders,
		KeyProperties:        []string{"AmazonOrderId"},
		ReplicationKey:       "LastUpdateDate",
		ValidReplicationKeys: []string{"LastUpdateDate"},
		Schema: singer.Object(map[string]*singer.Schema{
			"AmazonOrderId":  singer.String(),
			"LastUpdateDate": singer.DateTime(),
			"OrderStatus":    singer.String(),
		}),
	}
}

func emptyStream(name, replicationKey string) *fakeStream {
	return &fakeStream{def: streams.Definition{
		Name:           name,
		KeyProperties:  []string{"id"},
		ReplicationKey: replicationKey,
		Schema: singer.Object(map[string]*singer.Schema{
			"id":           singer.String(),
			replicationKey: singer.DateTime(),
		}),
	}}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		RefreshToken: "r", ClientID: "c", ClientSecret: "s",
		AWSAccessKey: "k", AWSSecretKey: "sk",
		RoleARN:   "arn:aws:iam::123456789012:role/Test",
		StartDate: "2024-01-01T00:00:00Z",
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func testStreams(orders *fakeStream) map[string]streams.Stream {
	return map[string]streams.Stream{
		streams.StreamOrders:     orders,
		streams.StreamOrderItems: emptyStream(streams.StreamOrderItems, "OrderLastUpdateDate"),
		streams.StreamSales:      emptyStream(streams.StreamSales, "intervalStart"),
	}
}

func parseMessages(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var msgs []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var msg map[string]interface{}
		require.NoError(t, gojson.Unmarshal([]byte(line), &msg))
		msgs = append(msgs, msg)
	}
	return msgs
}

func messagesOfType(msgs []map[string]interface{}, msgType string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, m := range msgs {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func TestRunEmitsSchemaRecordsAndState(t *testing.T) {
	orders := &fakeStream{
		def: ordersDefinition(),
		records: []map[string]interface{}{
			{"AmazonOrderId": "111-1", "LastUpdateDate": "2024-02-01T00:00:00Z", "OrderStatus": "Shipped"},
			{"AmazonOrderId": "111-2", "LastUpdateDate": "2024-02-02T00:00:00Z", "OrderStatus": "Pending"},
		},
	}

	var buf bytes.Buffer
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	o := New(testConfig(t), testStreams(orders), nil, nil, singer.NewWriter(&buf))
	o.now = func() time.Time { return now }

	require.NoError(t, o.Run(context.Background()))

	msgs := parseMessages(t, &buf)
	schemas := messagesOfType(msgs, "SCHEMA")
	records := messagesOfType(msgs, "RECORD")
	states := messagesOfType(msgs, "STATE")

	assert.Len(t, schemas, 3, "one SCHEMA per stream")
	assert.Len(t, records, 2)
	assert.NotEmpty(t, states)

	// First message for a stream is its SCHEMA, before any record.
	assert.Equal(t, "SCHEMA", msgs[1]["type"])
	assert.Equal(t, "orders", msgs[1]["stream"])

	// The final STATE carries the captured wall clock as every bookmark.
	final := states[len(states)-1]
	value := final["value"].(map[string]interface{})
	bookmarks := value["bookmarks"].(map[string]interface{})
	ordersBookmark := bookmarks["orders"].(map[string]interface{})
	assert.Equal(t, "2024-03-01T12:00:00Z", ordersBookmark["replication_key_value"])
	assert.Empty(t, value["currently_syncing"])
}

func TestRunResumesFromBookmark(t *testing.T) {
	orders := &fakeStream{def: ordersDefinition()}

	state := singer.NewState()
	state.SetBookmark(streams.StreamOrders, "2024-02-15T06:00:00Z")

	var buf bytes.Buffer
	o := New(testConfig(t), testStreams(orders), nil, state, singer.NewWriter(&buf))

	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, time.Date(2024, 2, 15, 6, 0, 0, 0, time.UTC),
		orders.window.CreatedAfter, "window lower bound comes from the bookmark")
}

func TestRunSkipsRecordsBeforeWindow(t *testing.T) {
	orders := &fakeStream{
		def: ordersDefinition(),
		records: []map[string]interface{}{
			{"AmazonOrderId": "111-old", "LastUpdateDate": "2023-12-01T00:00:00Z"},
			{"AmazonOrderId": "111-new", "LastUpdateDate": "2024-02-01T00:00:00Z"},
		},
	}

	var buf bytes.Buffer
	o := New(testConfig(t), testStreams(orders), nil, nil, singer.NewWriter(&buf))

	require.NoError(t, o.Run(context.Background()))

	records := messagesOfType(parseMessages(t, &buf), "RECORD")
	require.Len(t, records, 1)
	record := records[0]["record"].(map[string]interface{})
	assert.Equal(t, "111-new", record["AmazonOrderId"])
}

func TestRunFailsStreamOnMissingReplicationKey(t *testing.T) {
	orders := &fakeStream{
		def: ordersDefinition(),
		records: []map[string]interface{}{
			{"AmazonOrderId": "111-1", "OrderStatus": "Shipped"},
		},
	}

	var buf bytes.Buffer
	o := New(testConfig(t), testStreams(orders), nil, nil, singer.NewWriter(&buf))

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders")
}

func TestRunContinuesAfterStreamFailure(t *testing.T) {
	orders := &fakeStream{
		def: ordersDefinition(),
		err: errors.New(errors.ErrorTypeData, "schema drift"),
	}
	items := emptyStream(streams.StreamOrderItems, "OrderLastUpdateDate")
	sales := emptyStream(streams.StreamSales, "intervalStart")

	var buf bytes.Buffer
	tapStreams := map[string]streams.Stream{
		streams.StreamOrders:     orders,
		streams.StreamOrderItems: items,
		streams.StreamSales:      sales,
	}
	o := New(testConfig(t), tapStreams, nil, nil, singer.NewWriter(&buf))

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, items.synced, "remaining streams still sync after a data error")
	assert.True(t, sales.synced)
}

func TestRunAbortsOnAuthenticationError(t *testing.T) {
	orders := &fakeStream{
		def: ordersDefinition(),
		err: errors.New(errors.ErrorTypeAuthentication, "refresh token rejected"),
	}
	items := emptyStream(streams.StreamOrderItems, "OrderLastUpdateDate")

	var buf bytes.Buffer
	tapStreams := map[string]streams.Stream{
		streams.StreamOrders:     orders,
		streams.StreamOrderItems: items,
		streams.StreamSales:      emptyStream(streams.StreamSales, "intervalStart"),
	}
	o := New(testConfig(t), tapStreams, nil, nil, singer.NewWriter(&buf))

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.False(t, items.synced, "authentication failures abort the run")
}

func TestRunHonorsCatalogSelection(t *testing.T) {
	orders := &fakeStream{def: ordersDefinition()}
	items := emptyStream(streams.StreamOrderItems, "OrderLastUpdateDate")

	catalog := &singer.Catalog{Streams: []singer.CatalogEntry{
		{
			Stream:      streams.StreamOrders,
			TapStreamID: streams.StreamOrders,
			Metadata: []singer.MetadataEntry{
				{Breadcrumb: []string{}, Metadata: map[string]interface{}{"selected": true}},
			},
		},
		{
			Stream:      streams.StreamOrderItems,
			TapStreamID: streams.StreamOrderItems,
			Metadata: []singer.MetadataEntry{
				{Breadcrumb: []string{}, Metadata: map[string]interface{}{"selected": false}},
			},
		},
	}}

	var buf bytes.Buffer
	tapStreams := map[string]streams.Stream{
		streams.StreamOrders:     orders,
		streams.StreamOrderItems: items,
		streams.StreamSales:      emptyStream(streams.StreamSales, "intervalStart"),
	}
	o := New(testConfig(t), tapStreams, catalog, nil, singer.NewWriter(&buf))

	require.NoError(t, o.Run(context.Background()))
	assert.True(t, orders.synced)
	assert.False(t, items.synced, "deselected streams are skipped")
}

func TestRunNullsMissingDeclaredFields(t *testing.T) {
	orders := &fakeStream{
		def: ordersDefinition(),
		records: []map[string]interface{}{
			{"AmazonOrderId": "111-1", "LastUpdateDate": "2024-02-01T00:00:00Z"},
		},
	}

	var buf bytes.Buffer
	o := New(testConfig(t), testStreams(orders), nil, nil, singer.NewWriter(&buf))

	require.NoError(t, o.Run(context.Background()))

	records := messagesOfType(parseMessages(t, &buf), "RECORD")
	require.Len(t, records, 1)
	record := records[0]["record"].(map[string]interface{})
	status, present := record["OrderStatus"]
	assert.True(t, present, "declared fields are always present")
	assert.Nil(t, status)
}

// aligningStream widens its window the way the sales driver does.
type aligningStream struct {
	fakeStream
	aligned streams.Window
}

func (a *aligningStream) AlignWindow(streams.Window) streams.Window {
	return a.aligned
}

func TestRunKeepsRecordsFromAlignedWindow(t *testing.T) {
	// start_date Jan 3; the driver queries from the Jan 1 bucket boundary.
	// The first bucket starts before the raw window and must survive.
	sales := &aligningStream{
		fakeStream: fakeStream{
			def: streams.Definition{
				Name:           streams.StreamSales,
				KeyProperties:  []string{"intervalStart"},
				ReplicationKey: "intervalStart",
				Schema: singer.Object(map[string]*singer.Schema{
					"intervalStart": singer.DateTime(),
					"unitCount":     singer.Integer(),
				}),
			},
			records: []map[string]interface{}{
				{"intervalStart": "2024-01-01T00:00:00Z", "unitCount": float64(12)},
			},
		},
		aligned: streams.Window{
			CreatedAfter:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			CreatedBefore: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	// Without alignment the Jan 1 bucket sits before this start_date and
	// would be filtered out.
	cfg := testConfig(t)
	cfg.StartDate = "2024-01-03T00:00:00Z"
	require.NoError(t, cfg.Validate())

	var buf bytes.Buffer
	tapStreams := map[string]streams.Stream{
		streams.StreamOrders:     &fakeStream{def: ordersDefinition()},
		streams.StreamOrderItems: emptyStream(streams.StreamOrderItems, "OrderLastUpdateDate"),
		streams.StreamSales:      sales,
	}
	o := New(cfg, tapStreams, nil, nil, singer.NewWriter(&buf))

	require.NoError(t, o.Run(context.Background()))

	records := messagesOfType(parseMessages(t, &buf), "RECORD")
	salesRecords := make([]map[string]interface{}, 0, len(records))
	for _, m := range records {
		if m["stream"] == streams.StreamSales {
			salesRecords = append(salesRecords, m)
		}
	}
	require.Len(t, salesRecords, 1, "the boundary bucket is emitted")
	record := salesRecords[0]["record"].(map[string]interface{})
	assert.Equal(t, "2024-01-01T00:00:00Z", record["intervalStart"])
}
