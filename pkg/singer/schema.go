// Package singer implements the Singer data-interchange convention: schema,
// record, and state messages on stdout, plus catalog and bookmark handling.
package singer

// Schema is a JSON-schema fragment describing a stream's record shape.
type Schema struct {
	Type                 interface{}        `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

// String returns a nullable string schema.
func String() *Schema {
	return &Schema{Type: []string{"null", "string"}}
}

// DateTime returns a nullable RFC3339 timestamp schema.
func DateTime() *Schema {
	return &Schema{Type: []string{"null", "string"}, Format: "date-time"}
}

// Number returns a nullable number schema.
func Number() *Schema {
	return &Schema{Type: []string{"null", "number"}}
}

// Integer returns a nullable integer schema.
func Integer() *Schema {
	return &Schema{Type: []string{"null", "integer"}}
}

// Boolean returns a nullable boolean schema.
func Boolean() *Schema {
	return &Schema{Type: []string{"null", "boolean"}}
}

// Object returns a nullable object schema with the given properties.
func Object(properties map[string]*Schema) *Schema {
	return &Schema{Type: []string{"null", "object"}, Properties: properties}
}

// Array returns a nullable array schema of the given items.
func Array(items *Schema) *Schema {
	return &Schema{Type: []string{"null", "array"}, Items: items}
}
