/*
Package dynastore – Table type.

A Table is the façade over one logical table: point operations, the
index scan primitive and the query builder entry point. Records are
plain Items; writes validate against the schema, reads restore typed
values (dates come back as time.Time).
*/
package dynastore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table is one logical table of a Store.
type Table struct {
	store    *Store
	schema   *TableSchema
	physName string
}

func newTable(s *Store, schema *TableSchema) *Table {
	return &Table{
		store:    s,
		schema:   schema,
		physName: s.prefix + schema.Name,
	}
}

// Name returns the logical table name.
func (t *Table) Name() string { return t.schema.Name }

// Schema returns the table schema. Callers must not mutate it.
func (t *Table) Schema() *TableSchema { return t.schema }

// ─── point operations ─────────────────────────────────────────────────────────

// Get fetches one record by primary key. A missing record yields
// (nil, nil).
func (t *Table) Get(ctx context.Context, key any) (Item, error) {
	if key == nil {
		return nil, NewArgError("Missing primary key value")
	}
	ck := t.cacheKey(key)
	if cached, ok := t.store.cacheGet(ck); ok {
		return cloneItem(cached), nil
	}

	raw, err := t.store.getItem(ctx, t.physName, t.schema.PrimaryKey, t.writeValue(t.schema.PrimaryKey, key))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	item := t.fromStored(raw)
	t.store.cacheSet(ck, cloneItem(item))
	return item, nil
}

// Put writes one record, replacing any record with the same primary
// key. Unknown fields are dropped, defaults and generated keys are
// applied, and the completed record is validated before the write. The
// returned Item is the record as stored (with defaults applied).
func (t *Table) Put(ctx context.Context, record Item) (Item, error) {
	if record == nil {
		return nil, NewArgError("Missing record")
	}
	props := t.prepareWrite(record)
	if err := t.validateRecord(props); err != nil {
		return nil, err
	}
	key := props[t.schema.PrimaryKey]
	if key == nil {
		return nil, NewError(
			fmt.Sprintf(`Missing value for primary key "%s" of table "%s"`, t.schema.PrimaryKey, t.schema.Name),
			WithCode(ErrMissing))
	}

	if err := t.store.putItem(ctx, t.physName, t.toStored(props)); err != nil {
		return nil, err
	}
	t.store.cacheDrop(t.cacheKey(key))
	return props, nil
}

// Delete removes a record by primary key. Deleting a missing record is
// not an error.
func (t *Table) Delete(ctx context.Context, key any) error {
	if key == nil {
		return NewArgError("Missing primary key value")
	}
	if err := t.store.deleteItem(ctx, t.physName, t.schema.PrimaryKey, t.writeValue(t.schema.PrimaryKey, key)); err != nil {
		return err
	}
	t.store.cacheDrop(t.cacheKey(key))
	return nil
}

// GetAll returns every record of the table. Order is unspecified.
func (t *Table) GetAll(ctx context.Context) ([]Item, error) {
	raw, err := t.store.scanItems(ctx, t.physName)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, t.fromStored(r))
	}
	return items, nil
}

// Count returns the number of records in the table.
func (t *Table) Count(ctx context.Context) (int, error) {
	return t.store.countItems(ctx, t.physName)
}

// ─── index scan ───────────────────────────────────────────────────────────────

// ScanIndex returns the records whose indexed field falls inside the
// interval, using the named secondary index.
func (t *Table) ScanIndex(ctx context.Context, indexName string, iv Interval) ([]Item, error) {
	for i := range t.schema.Indexes {
		if t.schema.Indexes[i].Name == indexName {
			return t.scanInterval(ctx, &t.schema.Indexes[i], iv)
		}
	}
	return nil, NewError(
		fmt.Sprintf(`No index "%s" on table "%s"`, indexName, t.schema.Name),
		WithCode(ErrMissingIndex),
		WithContext(map[string]any{"table": t.schema.Name, "index": indexName}))
}

// scanInterval runs the index scan. The wire query is the inclusive
// superset of the interval; open bounds are trimmed here.
func (t *Table) scanInterval(ctx context.Context, idx *IndexDef, iv Interval) ([]Item, error) {
	wire := Interval{
		Lower:          t.writeValue(idx.Field, iv.Lower),
		Upper:          t.writeValue(idx.Field, iv.Upper),
		LowerInclusive: iv.LowerInclusive,
		UpperInclusive: iv.UpperInclusive,
	}
	raw, err := t.store.queryIndex(ctx, t.physName, t.schema.Name, idx, wire)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		item := t.fromStored(r)
		if !iv.contains(t.compareValue(idx.Field, item[idx.Field])) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// ─── queries ──────────────────────────────────────────────────────────────────

// Query starts a query over this table. The returned builder has value
// semantics: each Where / OrderBy / Limit / Offset yields a new Query.
func (t *Table) Query() Query {
	return Query{table: t, limit: -1}
}

// ─── DDL ──────────────────────────────────────────────────────────────────────

const confirmRemoveTable = "DeleteTableForever"

// CreateTable creates the physical table: primary key as hash key, one
// global secondary index per schema index, keyed by the anchor
// attribute with the record field as sort key.
func (t *Table) CreateTable(ctx context.Context) error {
	attrs := []types.AttributeDefinition{{
		AttributeName: strPtr(t.schema.PrimaryKey),
		AttributeType: t.attributeType(t.schema.PrimaryKey),
	}}
	seen := map[string]bool{t.schema.PrimaryKey: true}

	input := &ddb.CreateTableInput{
		TableName: &t.physName,
		KeySchema: []types.KeySchemaElement{{
			AttributeName: strPtr(t.schema.PrimaryKey),
			KeyType:       types.KeyTypeHash,
		}},
		BillingMode: types.BillingModePayPerRequest,
	}

	if len(t.schema.Indexes) > 0 {
		attrs = append(attrs, types.AttributeDefinition{
			AttributeName: strPtr(anchorField),
			AttributeType: types.ScalarAttributeTypeS,
		})
		for i := range t.schema.Indexes {
			idx := &t.schema.Indexes[i]
			if !seen[idx.Field] {
				attrs = append(attrs, types.AttributeDefinition{
					AttributeName: strPtr(idx.Field),
					AttributeType: t.attributeType(idx.Field),
				})
				seen[idx.Field] = true
			}
			input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
				IndexName: strPtr(idx.Name),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: strPtr(anchorField), KeyType: types.KeyTypeHash},
					{AttributeName: strPtr(idx.Field), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			})
		}
	}
	input.AttributeDefinitions = attrs

	_, err := t.store.client.CreateTable(ctx, input)
	if err != nil {
		return t.store.wrapStoreErr("createTable", t.physName, err)
	}
	return nil
}

// DeleteTable permanently deletes the physical table. The confirmation
// string must equal "DeleteTableForever".
func (t *Table) DeleteTable(ctx context.Context, confirmation string) error {
	if confirmation != confirmRemoveTable {
		return NewArgError(fmt.Sprintf(`Missing required confirmation "%s"`, confirmRemoveTable))
	}
	_, err := t.store.client.DeleteTable(ctx, &ddb.DeleteTableInput{TableName: &t.physName})
	if err != nil {
		return t.store.wrapStoreErr("deleteTable", t.physName, err)
	}
	return nil
}

// Exists reports whether the physical table is present.
func (t *Table) Exists(ctx context.Context) (bool, error) {
	names, err := t.store.ListTables(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == t.physName {
			return true, nil
		}
	}
	return false, nil
}

// attributeType maps a field's schema type to its key attribute type.
func (t *Table) attributeType(field string) types.ScalarAttributeType {
	if def, ok := t.schema.Fields[field]; ok {
		if def.Type == FieldTypeNumber || def.Type == FieldTypeDate {
			return types.ScalarAttributeTypeN
		}
	}
	return types.ScalarAttributeTypeS
}

// ─── write preparation ────────────────────────────────────────────────────────

// prepareWrite clones the known fields of a record and fills in
// defaults and generated values for absent fields.
func (t *Table) prepareWrite(record Item) Item {
	props := Item{}
	for name := range t.schema.Fields {
		if v, ok := record[name]; ok && v != nil {
			props[name] = v
		}
	}
	for name, def := range t.schema.Fields {
		if _, ok := props[name]; ok {
			continue
		}
		if def.Default != nil {
			props[name] = def.Default
		} else if def.Generate != "" {
			props[name] = t.store.generate(def.Generate)
		}
	}
	return props
}

// validateRecord checks required fields, value shapes, enum membership
// and regex constraints. All failures are aggregated into one
// ValidationError.
func (t *Table) validateRecord(props Item) error {
	validation := map[string]string{}

	for name, def := range t.schema.Fields {
		value, exists := props[name]
		if !exists || value == nil {
			if def.Required {
				validation[name] = fmt.Sprintf(`Value not defined for required field "%s"`, name)
			}
			continue
		}
		if !valueMatchesType(def.Type, value) {
			validation[name] = fmt.Sprintf(`Bad type for "%s", expected %s`, name, def.Type)
			continue
		}
		if def.Validate != "" {
			if re, err := parseValidation(def.Validate); err == nil {
				s, _ := value.(string)
				if !re.MatchString(s) {
					validation[name] = fmt.Sprintf(`Bad value "%v" for "%s"`, value, name)
				}
			}
		}
		if def.Enum != nil {
			s := fmt.Sprintf("%v", value)
			if !containsStr(def.Enum, s) {
				validation[name] = fmt.Sprintf(`Bad value "%v" for "%s"`, value, name)
			}
		}
	}

	if len(validation) > 0 {
		keys := make([]string, 0, len(validation))
		for k := range validation {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return NewError(
			fmt.Sprintf(`Validation Error in "%s" for "%s"`, t.schema.Name, strings.Join(keys, ", ")),
			WithCode(ErrValidation), WithContext(map[string]any{"validation": validation}))
	}
	return nil
}

// parseValidation compiles a "/pattern/flags" or bare regex string.
func parseValidation(pat string) (*regexp.Regexp, error) {
	if strings.HasPrefix(pat, "/") {
		if last := strings.LastIndex(pat, "/"); last > 0 {
			inner := pat[1:last]
			if flags := pat[last+1:]; flags != "" {
				inner = "(?" + flags + ")" + inner
			}
			return regexp.Compile(inner)
		}
	}
	return regexp.Compile(pat)
}

func valueMatchesType(ft FieldType, v any) bool {
	switch ft {
	case FieldTypeString:
		_, ok := v.(string)
		return ok
	case FieldTypeNumber:
		_, ok := numericValue(v)
		if _, isTime := v.(time.Time); isTime {
			return false
		}
		return ok
	case FieldTypeBoolean:
		_, ok := v.(bool)
		return ok
	case FieldTypeDate:
		switch d := v.(type) {
		case time.Time:
			return true
		case string:
			_, err := time.Parse(time.RFC3339Nano, d)
			return err == nil
		default:
			_, ok := numericValue(v)
			return ok
		}
	case FieldTypeObject:
		_, ok := v.(map[string]any)
		return ok
	case FieldTypeArray:
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	}
	return true
}

// ─── stored-form transforms ───────────────────────────────────────────────────

// toStored converts a record to its wire form: dates become epoch
// milliseconds and the anchor attribute is added.
func (t *Table) toStored(props Item) Item {
	stored := Item{anchorField: t.schema.Name}
	for name, v := range props {
		stored[name] = t.writeValue(name, v)
	}
	return stored
}

// fromStored restores a wire record: the anchor attribute is stripped
// and date fields become time.Time.
func (t *Table) fromStored(raw Item) Item {
	item := Item{}
	for name, v := range raw {
		if name == anchorField {
			continue
		}
		item[name] = t.readValue(name, v)
	}
	return item
}

// writeValue converts one field value to wire form.
func (t *Table) writeValue(field string, v any) any {
	def, ok := t.schema.Fields[field]
	if !ok || def.Type != FieldTypeDate || v == nil {
		return v
	}
	switch d := v.(type) {
	case time.Time:
		return d.UnixMilli()
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, d); err == nil {
			return ts.UnixMilli()
		}
		if ms, err := strconv.ParseInt(d, 10, 64); err == nil {
			return ms
		}
		return d
	case float64:
		return int64(d)
	}
	return v
}

// readValue converts one field value back from wire form.
func (t *Table) readValue(field string, v any) any {
	def, ok := t.schema.Fields[field]
	if !ok || def.Type != FieldTypeDate || v == nil {
		return v
	}
	if ms, ok := numericValue(v); ok {
		return time.UnixMilli(int64(ms)).UTC()
	}
	return v
}

// compareValue normalises a caller-facing value for interval checks:
// dates compare as their epoch-millisecond form.
func (t *Table) compareValue(field string, v any) any {
	return t.writeValue(field, v)
}

func (t *Table) cacheKey(key any) string {
	return t.schema.Name + "\x00" + fmt.Sprintf("%v", key)
}

// keyString is the engine's record identity during query resolution.
func (t *Table) keyString(item Item) string {
	return fmt.Sprintf("%v", item[t.schema.PrimaryKey])
}

func cloneItem(item Item) Item {
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func containsStr(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
