/*
Package dynastore – YAML schema files.

Table schemas may be declared in a YAML document and loaded at startup
instead of being constructed in code.
*/
package dynastore

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts the index field as either a scalar or a
// sequence of path elements. A sequence is joined into a dotted path,
// which must name a declared field to pass Validate.
func (d *IndexDef) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name  string    `yaml:"name"`
		Field yaml.Node `yaml:"field"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	d.Name = raw.Name
	switch raw.Field.Kind {
	case yaml.SequenceNode:
		var parts []string
		if err := raw.Field.Decode(&parts); err != nil {
			return err
		}
		d.Field = strings.Join(parts, ".")
	case yaml.ScalarNode:
		return raw.Field.Decode(&d.Field)
	}
	return nil
}

// SchemaFile is the top-level structure of a YAML schema document.
type SchemaFile struct {
	Version string         `yaml:"version,omitempty"`
	Tables  []*TableSchema `yaml:"tables"`
}

// LoadSchemas reads a YAML schema document, validates every table
// definition and returns the schemas ready for Open / DefineTable.
func LoadSchemas(path string) ([]*TableSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewError("Cannot read schema file "+path,
			WithCode(ErrArgument), WithCause(err))
	}
	return ParseSchemas(data)
}

// ParseSchemas decodes a YAML schema document from memory.
func ParseSchemas(data []byte) ([]*TableSchema, error) {
	var file SchemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, NewError("Cannot parse schema document",
			WithCode(ErrArgument), WithCause(err))
	}
	if len(file.Tables) == 0 {
		return nil, NewArgError("Schema document defines no tables")
	}
	for _, s := range file.Tables {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Tables, nil
}
