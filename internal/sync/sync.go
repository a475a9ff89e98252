// Package sync orchestrates a full tap run: stream selection, window
// derivation, record shaping, and checkpointed state emission.
package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/datastitch/tap-amazon-sp/pkg/config"
	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/logger"
	"github.com/datastitch/tap-amazon-sp/pkg/metrics"
	"github.com/datastitch/tap-amazon-sp/pkg/singer"
	"github.com/datastitch/tap-amazon-sp/pkg/streams"
)

// streamStatus is the lifecycle of one stream within a run.
type streamStatus string

const (
	statusPending   streamStatus = "pending"
	statusRunning   streamStatus = "running"
	statusCompleted streamStatus = "completed"
	statusFailed    streamStatus = "failed"
	statusSkipped   streamStatus = "skipped"
)

// Orchestrator runs every selected stream in declaration order, sharing one
// state object and one Singer writer across the run.
type Orchestrator struct {
	cfg     *config.Config
	streams map[string]streams.Stream
	catalog *singer.Catalog
	state   *singer.State
	writer  *singer.Writer
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an orchestrator. A nil catalog selects every stream with every
// field; a nil state starts from the configured start date.
func New(cfg *config.Config, tapStreams map[string]streams.Stream, catalog *singer.Catalog, state *singer.State, writer *singer.Writer) *Orchestrator {
	if state == nil {
		state = singer.NewState()
	}
	return &Orchestrator{
		cfg:     cfg,
		streams: tapStreams,
		catalog: catalog,
		state:   state,
		writer:  writer,
		logger:  logger.Get(),
		now:     time.Now,
	}
}

// Run syncs all selected streams sequentially. Authentication and config
// errors abort the run immediately; any other stream failure is recorded and
// the remaining streams still sync. A non-nil error is returned when any
// stream failed.
func (o *Orchestrator) Run(ctx context.Context) error {
	statuses := make(map[string]streamStatus, len(streams.DeclarationOrder))
	for _, name := range streams.DeclarationOrder {
		statuses[name] = statusPending
	}

	var failed []string
	for _, name := range streams.DeclarationOrder {
		if !o.selected(name) {
			statuses[name] = statusSkipped
			o.logger.Info("stream not selected, skipping", zap.String("stream", name))
			continue
		}

		statuses[name] = statusRunning
		if err := o.syncStream(ctx, name); err != nil {
			statuses[name] = statusFailed
			failed = append(failed, name)
			o.logger.Error("stream sync failed",
				zap.String("stream", name),
				zap.Error(err))

			if isRunFatal(err) {
				return err
			}
			continue
		}
		statuses[name] = statusCompleted
	}

	summary := make([]zap.Field, 0, len(streams.DeclarationOrder))
	for _, name := range streams.DeclarationOrder {
		summary = append(summary, zap.String(name, string(statuses[name])))
	}
	o.logger.Info("run complete", summary...)

	if len(failed) > 0 {
		return errors.Newf(errors.ErrorTypeInternal,
			"%d stream(s) failed: %v", len(failed), failed)
	}
	return nil
}

// syncStream runs one stream end to end: SCHEMA, the driver's window, and
// the final bookmark commit.
func (o *Orchestrator) syncStream(ctx context.Context, name string) error {
	stream, err := streams.Lookup(o.streams, name)
	if err != nil {
		return err
	}
	def := stream.Definition()

	window := streams.NewWindow(o.cfg.StartTime(), o.bookmark(name), o.now())
	o.logger.Info("starting stream sync",
		zap.String("stream", name),
		zap.Time("created_after", window.CreatedAfter),
		zap.Time("created_before", window.CreatedBefore))

	o.state.CurrentlySyncing = name
	if err := o.writer.WriteState(o.state); err != nil {
		return err
	}

	if err := o.writer.WriteSchema(name, def.Schema, def.KeyProperties, []string{def.ReplicationKey}); err != nil {
		return err
	}

	// Streams that widen their query window (sales snaps to granularity
	// boundaries) filter against the aligned bounds, not the raw ones.
	sinkWindow := window
	if aligner, ok := stream.(streams.WindowAligner); ok {
		sinkWindow = aligner.AlignWindow(window)
	}

	sink := &recordSink{
		orchestrator: o,
		definition:   def,
		window:       sinkWindow,
		fieldMask:    o.fieldMask(name),
	}

	bookmark, err := stream.Sync(ctx, window, sink)
	if err != nil {
		return err
	}

	if !bookmark.IsZero() {
		o.state.SetBookmark(name, bookmark.UTC().Format(time.RFC3339))
	}
	o.state.CurrentlySyncing = ""
	if err := o.writer.WriteState(o.state); err != nil {
		return err
	}

	o.logger.Info("stream sync complete",
		zap.String("stream", name),
		zap.Int64("records", sink.records))
	return nil
}

// bookmark returns the stream's persisted bookmark as a time, or zero when
// absent. An unparsable stored value is treated as absent rather than fatal:
// the stream re-syncs from the start date.
func (o *Orchestrator) bookmark(name string) time.Time {
	raw, ok := o.state.GetBookmark(name)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		o.logger.Warn("ignoring unparsable bookmark",
			zap.String("stream", name),
			zap.String("value", raw))
		return time.Time{}
	}
	return t
}

// selected reports whether the catalog marks the stream for syncing. A nil
// catalog selects everything; a catalog without an entry for the stream
// deselects it.
func (o *Orchestrator) selected(name string) bool {
	if o.catalog == nil {
		return true
	}
	entry, ok := o.catalog.Entry(name)
	if !ok {
		return false
	}
	return entry.IsSelected()
}

// fieldMask returns the stream's selected-field set, nil meaning all fields.
func (o *Orchestrator) fieldMask(name string) map[string]bool {
	if o.catalog == nil {
		return nil
	}
	entry, ok := o.catalog.Entry(name)
	if !ok {
		return nil
	}
	return entry.FieldMask()
}

// isRunFatal reports whether the error invalidates the rest of the run, not
// just the stream that hit it.
func isRunFatal(err error) bool {
	return errors.IsType(err, errors.ErrorTypeAuthentication) ||
		errors.IsType(err, errors.ErrorTypeConfig)
}

// recordSink shapes and emits one stream's records: it enforces the
// replication-key contract, drops records older than the window, applies the
// catalog field mask, and checkpoints state after each page.
type recordSink struct {
	orchestrator *Orchestrator
	definition   streams.Definition
	window       streams.Window
	fieldMask    map[string]bool
	records      int64
}

// Record implements streams.Sink.
func (s *recordSink) Record(record map[string]interface{}) error {
	replicationValue, err := s.replicationTime(record)
	if err != nil {
		return err
	}

	// Records the bookmark already covered can reappear at window edges.
	if replicationValue.Before(s.window.CreatedAfter) {
		return nil
	}

	shaped := s.shape(record)
	if err := s.orchestrator.writer.WriteRecord(s.definition.Name, shaped, s.orchestrator.now()); err != nil {
		return err
	}

	s.records++
	metrics.RecordsEmitted.WithLabelValues(s.definition.Name).Inc()
	return nil
}

// PageComplete implements streams.Sink: every finished page is a durable
// resume point, so the full state is re-emitted.
func (s *recordSink) PageComplete() error {
	return s.orchestrator.writer.WriteState(s.orchestrator.state)
}

// replicationTime extracts and parses the record's replication key. A
// missing or unparsable value is schema drift and fails the stream.
func (s *recordSink) replicationTime(record map[string]interface{}) (time.Time, error) {
	raw, ok := record[s.definition.ReplicationKey].(string)
	if !ok || raw == "" {
		return time.Time{}, errors.Newf(errors.ErrorTypeData,
			"record missing replication key %q", s.definition.ReplicationKey).
			WithDetail("stream", s.definition.Name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, errors.ErrorTypeData,
			"record has unparsable replication key %q value %q",
			s.definition.ReplicationKey, raw)
	}
	return t, nil
}

// shape applies the catalog field mask and nulls declared-but-absent fields
// so every record carries the full declared property set.
func (s *recordSink) shape(record map[string]interface{}) map[string]interface{} {
	props := s.definition.Schema.Properties

	shaped := make(map[string]interface{}, len(props))
	for field := range props {
		if s.fieldMask != nil && !s.fieldMask[field] && !s.automatic(field) {
			continue
		}
		if v, ok := record[field]; ok {
			shaped[field] = v
		} else {
			shaped[field] = nil
		}
	}
	return shaped
}

// automatic reports whether a field must always be emitted regardless of
// selection: key properties and the replication key.
func (s *recordSink) automatic(field string) bool {
	for _, k := range s.definition.KeyProperties {
		if k == field {
			return true
		}
	}
	return field == s.definition.ReplicationKey
}
