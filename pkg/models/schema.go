package models

// RecordSchema describes the expected shape of source record attributes.
// JSON-Schema-flavored but deliberately small: required keys, per-property
// types and formats, one level of nesting via Properties/Items.
type RecordSchema struct {
	Required   []string                      `json:"required,omitempty"`
	Properties map[string]PropertyDefinition `json:"properties,omitempty"`
}

// PropertyDefinition constrains a single attribute.
type PropertyDefinition struct {
	Type       string                        `json:"type"`
	Format     string                        `json:"format,omitempty"`
	Properties map[string]PropertyDefinition `json:"properties,omitempty"`
	Items      *PropertyDefinition           `json:"items,omitempty"`
}
