package sync

import (
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/singer"
	"github.com/datastitch/tap-amazon-sp/pkg/streams"
)

// Discover builds the catalog for every supported stream and writes it as
// indented JSON. Key properties and the replication key are marked with
// inclusion "automatic"; every other field is "available". Streams default
// to selected so an unedited catalog syncs everything.
func Discover(tapStreams map[string]streams.Stream, out io.Writer) error {
	catalog := &singer.Catalog{}

	for _, name := range streams.DeclarationOrder {
		stream, err := streams.Lookup(tapStreams, name)
		if err != nil {
			return err
		}
		def := stream.Definition()

		metadata := []singer.MetadataEntry{{
			Breadcrumb: []string{},
			Metadata: map[string]interface{}{
				"selected":               true,
				"replication-method":     "INCREMENTAL",
				"replication-key":        def.ReplicationKey,
				"valid-replication-keys": def.ValidReplicationKeys,
				"table-key-properties":   def.KeyProperties,
			},
		}}
		for field := range def.Schema.Properties {
			inclusion := "available"
			if isAutomatic(def, field) {
				inclusion = "automatic"
			}
			metadata = append(metadata, singer.MetadataEntry{
				Breadcrumb: []string{"properties", field},
				Metadata:   map[string]interface{}{"inclusion": inclusion},
			})
		}

		rawSchema, err := gojson.Marshal(def.Schema)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal stream schema")
		}

		catalog.Streams = append(catalog.Streams, singer.CatalogEntry{
			Stream:        name,
			TapStreamID:   name,
			Schema:        rawSchema,
			KeyProperties: def.KeyProperties,
			Metadata:      metadata,
		})
	}

	return catalog.Dump(out)
}

func isAutomatic(def streams.Definition, field string) bool {
	for _, k := range def.KeyProperties {
		if k == field {
			return true
		}
	}
	return field == def.ReplicationKey
}
