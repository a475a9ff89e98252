package singer

import (
	"io"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
)

// Message is one line of the Singer stream. The populated fields depend on
// the message type. The schema is carried pre-marshaled: goccy/go-json
// v0.10.4 cannot encode the recursive Schema type nested inside another
// struct (it trips an internal type-cycle bug and panics), so WriteSchema
// marshals it standalone first.
type Message struct {
	Type               string                 `json:"type"`
	Stream             string                 `json:"stream,omitempty"`
	Schema             gojson.RawMessage      `json:"schema,omitempty"`
	KeyProperties      []string               `json:"key_properties,omitempty"`
	BookmarkProperties []string               `json:"bookmark_properties,omitempty"`
	Record             map[string]interface{} `json:"record,omitempty"`
	TimeExtracted      *time.Time             `json:"time_extracted,omitempty"`
	Value              *State                 `json:"value,omitempty"`
}

// Writer serializes Singer messages to an output stream, one JSON document
// per line. It is the only component that writes to stdout in sync mode.
type Writer struct {
	out io.Writer
	mu  sync.Mutex
}

// NewWriter creates a message writer.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WriteSchema emits a SCHEMA message for a stream.
func (w *Writer) WriteSchema(stream string, schema *Schema, keyProperties, bookmarkProperties []string) error {
	raw, err := gojson.Marshal(schema)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal stream schema")
	}
	return w.write(&Message{
		Type:               "SCHEMA",
		Stream:             stream,
		Schema:             raw,
		KeyProperties:      keyProperties,
		BookmarkProperties: bookmarkProperties,
	})
}

// WriteRecord emits a RECORD message for a stream.
func (w *Writer) WriteRecord(stream string, record map[string]interface{}, extracted time.Time) error {
	extracted = extracted.UTC()
	return w.write(&Message{
		Type:          "RECORD",
		Stream:        stream,
		Record:        record,
		TimeExtracted: &extracted,
	})
}

// WriteState emits a STATE message carrying the full bookmark mapping. The
// last STATE message is always a complete, self-sufficient resume point.
func (w *Writer) WriteState(state *State) error {
	return w.write(&Message{
		Type:  "STATE",
		Value: state,
	})
}

func (w *Writer) write(msg *Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	enc := gojson.NewEncoder(w.out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write singer message")
	}
	return nil
}
