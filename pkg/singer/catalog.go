package singer

import (
	"io"
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
)

// Catalog is the discovery output and sync-mode selection input.
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// CatalogEntry describes one stream: its schema and selection metadata.
// The schema is kept pre-marshaled for the same reason Message carries it
// raw: goccy cannot encode the recursive Schema type inside another struct.
type CatalogEntry struct {
	Stream        string            `json:"stream"`
	TapStreamID   string            `json:"tap_stream_id"`
	Schema        gojson.RawMessage `json:"schema,omitempty"`
	KeyProperties []string          `json:"key_properties"`
	Metadata      []MetadataEntry   `json:"metadata"`
}

// MetadataEntry is one breadcrumbed metadata object in the Singer style.
type MetadataEntry struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// LoadCatalog reads a catalog file. An empty path yields nil, meaning all
// streams are selected with all fields.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read catalog file")
	}

	var catalog Catalog
	if err := gojson.Unmarshal(data, &catalog); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse catalog file")
	}

	return &catalog, nil
}

// Dump writes the catalog as indented JSON, the discovery-mode output.
func (c *Catalog) Dump(out io.Writer) error {
	enc := gojson.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write catalog")
	}
	return nil
}

// Entry returns the catalog entry for a stream.
func (c *Catalog) Entry(tapStreamID string) (*CatalogEntry, bool) {
	for i := range c.Streams {
		if c.Streams[i].TapStreamID == tapStreamID {
			return &c.Streams[i], true
		}
	}
	return nil, false
}

// IsSelected reports whether the stream's root metadata marks it selected.
func (e *CatalogEntry) IsSelected() bool {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) != 0 {
			continue
		}
		if selected, ok := m.Metadata["selected"].(bool); ok {
			return selected
		}
	}
	return false
}

// FieldMask returns the set of selected fields, or nil when every field is
// selected. Fields with inclusion "automatic" are always included.
func (e *CatalogEntry) FieldMask() map[string]bool {
	mask := make(map[string]bool)
	explicit := false

	for _, m := range e.Metadata {
		if len(m.Breadcrumb) != 2 || m.Breadcrumb[0] != "properties" {
			continue
		}
		field := m.Breadcrumb[1]

		if inclusion, ok := m.Metadata["inclusion"].(string); ok && inclusion == "automatic" {
			mask[field] = true
			continue
		}
		if selected, ok := m.Metadata["selected"].(bool); ok {
			explicit = true
			if selected {
				mask[field] = true
			}
		}
	}

	if !explicit {
		return nil
	}
	return mask
}
