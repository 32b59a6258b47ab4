/*
Package dynastore – schema types.

A TableSchema describes one logical table: its primary key field, the
shape of its records and the secondary indexes available to queries.
*/
package dynastore

import "strings"

// FieldType names the value shapes a field may hold.
type FieldType string

const (
	FieldTypeArray   FieldType = "array"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
	FieldTypeNumber  FieldType = "number"
	FieldTypeObject  FieldType = "object"
	FieldTypeString  FieldType = "string"
)

var validFieldTypes = map[FieldType]bool{
	FieldTypeArray: true, FieldTypeBoolean: true, FieldTypeDate: true,
	FieldTypeNumber: true, FieldTypeObject: true, FieldTypeString: true,
}

// indexableFieldTypes are the types a secondary index may be declared on.
// They are exactly the types with a total ordering on the wire.
var indexableFieldTypes = map[FieldType]bool{
	FieldTypeString: true, FieldTypeNumber: true, FieldTypeDate: true,
}

// FieldDef is a single field definition inside a table schema.
type FieldDef struct {
	Type     FieldType `json:"type,omitempty" yaml:"type,omitempty"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Default  any       `json:"default,omitempty" yaml:"default,omitempty"`
	Generate string    `json:"generate,omitempty" yaml:"generate,omitempty"` // "uuid"|"ulid"|"uid"|"uid(n)"
	Validate string    `json:"validate,omitempty" yaml:"validate,omitempty"` // regex string "/pat/flags"
	Enum     []string  `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// FieldMap is a map of field name → definition.
type FieldMap map[string]*FieldDef

// IndexDef declares a secondary index over one record field.
type IndexDef struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Field string `json:"field" yaml:"field"`
}

// TableSchema is the full definition of one logical table.
type TableSchema struct {
	Name       string     `json:"name" yaml:"name"`
	PrimaryKey string     `json:"primaryKey" yaml:"primaryKey"`
	Fields     FieldMap   `json:"fields" yaml:"fields"`
	Indexes    []IndexDef `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// Validate normalises the schema in place and reports the first problem
// found. A nil return means the schema is usable by a Store.
func (s *TableSchema) Validate() error {
	if s == nil {
		return NewArgError("Missing table schema")
	}
	if s.Name == "" {
		return NewArgError("Table schema requires a name")
	}
	if s.PrimaryKey == "" {
		return NewArgError("Table \"" + s.Name + "\" requires a primaryKey field")
	}
	if len(s.Fields) == 0 {
		return NewArgError("Table \"" + s.Name + "\" defines no fields")
	}
	for name, def := range s.Fields {
		if def == nil {
			return NewArgError("Missing definition for field \"" + name + "\" in table \"" + s.Name + "\"")
		}
		if def.Type == "" {
			def.Type = FieldTypeString
		}
		ft, err := checkType(def.Type, name, s.Name)
		if err != nil {
			return err
		}
		def.Type = ft
	}
	pk, ok := s.Fields[s.PrimaryKey]
	if !ok {
		return NewArgError("Primary key \"" + s.PrimaryKey + "\" is not a field of table \"" + s.Name + "\"")
	}
	if pk.Type != FieldTypeString && pk.Type != FieldTypeNumber {
		return NewArgError("Primary key \"" + s.PrimaryKey + "\" of table \"" + s.Name + "\" must be string or number")
	}
	seen := map[string]bool{}
	for i := range s.Indexes {
		idx := &s.Indexes[i]
		if idx.Field == "" {
			return NewArgError("Index of table \"" + s.Name + "\" is missing its field")
		}
		def, ok := s.Fields[idx.Field]
		if !ok {
			return NewArgError("Index field \"" + idx.Field + "\" is not a field of table \"" + s.Name + "\"")
		}
		if !indexableFieldTypes[def.Type] {
			return NewArgError("Index field \"" + idx.Field + "\" of table \"" + s.Name +
				"\" has unorderable type \"" + string(def.Type) + "\"")
		}
		if idx.Name == "" {
			idx.Name = "idx_" + idx.Field
		}
		if seen[idx.Name] {
			return NewArgError("Duplicate index \"" + idx.Name + "\" in table \"" + s.Name + "\"")
		}
		seen[idx.Name] = true
	}
	return nil
}

// indexOn returns the index declared on field, or nil.
func (s *TableSchema) indexOn(field string) *IndexDef {
	for i := range s.Indexes {
		if s.Indexes[i].Field == field {
			return &s.Indexes[i]
		}
	}
	return nil
}

// checkType normalises and validates the FieldType.
func checkType(t FieldType, fieldName, tableName string) (FieldType, error) {
	norm := FieldType(strings.ToLower(string(t)))
	if !validFieldTypes[norm] {
		return "", NewArgError("Unknown type \"" + string(t) + "\" for field \"" + fieldName + "\" in table \"" + tableName + "\"")
	}
	return norm, nil
}
