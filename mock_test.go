/*
Package dynastore_test – shared test infrastructure.

mockClient is a thread-safe in-memory DynamoDB substitute that tracks
call counts (to prove which operations did or did not reach the
backend) and supports fault injection.
*/
package dynastore_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	ds "github.com/harborstack/dynastore-go"
)

// ─── mockClient ───────────────────────────────────────────────────────────────

type mockTable struct {
	keyAttr string
	items   map[string]map[string]types.AttributeValue
}

type mockClient struct {
	mu       sync.RWMutex
	tables   map[string]*mockTable
	calls    map[string]int
	failWith error // when set, every data operation fails with it
}

func newMockClient() *mockClient {
	return &mockClient{
		tables: map[string]*mockTable{},
		calls:  map[string]int{},
	}
}

func (m *mockClient) tbl(name string) *mockTable {
	if m.tables[name] == nil {
		m.tables[name] = &mockTable{
			keyAttr: "id",
			items:   map[string]map[string]types.AttributeValue{},
		}
	}
	return m.tables[name]
}

func (m *mockClient) called(op string) error {
	m.calls[op]++
	m.calls["*"]++
	return m.failWith
}

// callCount reports how many data operations reached the mock. op "*"
// counts everything.
func (m *mockClient) callCount(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

func (m *mockClient) count(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tbl(table).items)
}

func avStr(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return strconv.FormatBool(v.Value)
	}
	return ""
}

// avCompare orders two attribute values: numerically when both are
// numbers, by string otherwise.
func avCompare(a, b types.AttributeValue) int {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if aok && bok {
		af, _ := strconv.ParseFloat(an.Value, 64)
		bf, _ := strconv.ParseFloat(bn.Value, 64)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := avStr(a), avStr(b)
	return strings.Compare(as, bs)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// evalKeyCondition evaluates a key condition of the form
// "#_0 = :_0 and #_1 between :_1 and :_2" (or =, >=, <=, >, <) against
// an item. Terms are parsed sequentially so the "and" inside between
// does not collide with the conjunction.
func evalKeyCondition(
	item map[string]types.AttributeValue,
	expr string,
	names map[string]string,
	vals map[string]types.AttributeValue,
) bool {
	if expr == "" {
		return true
	}
	resolveName := func(tok string) string {
		if v, ok := names[tok]; ok {
			return v
		}
		return tok
	}
	tokens := strings.Fields(expr)
	i := 0
	for i < len(tokens) {
		if i+1 >= len(tokens) {
			return false
		}
		attr := resolveName(tokens[i])
		got, exists := item[attr]
		if !exists {
			return false
		}
		op := strings.ToLower(tokens[i+1])
		if op == "between" {
			if i+4 >= len(tokens) || !strings.EqualFold(tokens[i+3], "and") {
				return false
			}
			lo, hi := vals[tokens[i+2]], vals[tokens[i+4]]
			if avCompare(got, lo) < 0 || avCompare(got, hi) > 0 {
				return false
			}
			i += 5
		} else {
			if i+2 >= len(tokens) {
				return false
			}
			c := avCompare(got, vals[tokens[i+2]])
			switch op {
			case "=":
				if c != 0 {
					return false
				}
			case ">=":
				if c < 0 {
					return false
				}
			case "<=":
				if c > 0 {
					return false
				}
			case ">":
				if c <= 0 {
					return false
				}
			case "<":
				if c >= 0 {
					return false
				}
			default:
				return false
			}
			i += 3
		}
		if i < len(tokens) {
			if !strings.EqualFold(tokens[i], "and") {
				return false
			}
			i++
		}
	}
	return true
}

func (m *mockClient) PutItem(_ context.Context, p *ddb.PutItemInput, _ ...func(*ddb.Options)) (*ddb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called("put"); err != nil {
		return nil, err
	}
	t := m.tbl(deref(p.TableName))
	t.items[avStr(p.Item[t.keyAttr])] = p.Item
	return &ddb.PutItemOutput{}, nil
}

func (m *mockClient) GetItem(_ context.Context, p *ddb.GetItemInput, _ ...func(*ddb.Options)) (*ddb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called("get"); err != nil {
		return nil, err
	}
	t := m.tbl(deref(p.TableName))
	item := t.items[avStr(p.Key[t.keyAttr])]
	return &ddb.GetItemOutput{Item: item}, nil
}

func (m *mockClient) DeleteItem(_ context.Context, p *ddb.DeleteItemInput, _ ...func(*ddb.Options)) (*ddb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called("delete"); err != nil {
		return nil, err
	}
	t := m.tbl(deref(p.TableName))
	delete(t.items, avStr(p.Key[t.keyAttr]))
	return &ddb.DeleteItemOutput{}, nil
}

func (m *mockClient) Query(_ context.Context, p *ddb.QueryInput, _ ...func(*ddb.Options)) (*ddb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called("query"); err != nil {
		return nil, err
	}
	t := m.tbl(deref(p.TableName))
	var items []map[string]types.AttributeValue
	for _, item := range t.items {
		if evalKeyCondition(item, deref(p.KeyConditionExpression), p.ExpressionAttributeNames, p.ExpressionAttributeValues) {
			items = append(items, item)
		}
	}
	return &ddb.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (m *mockClient) Scan(_ context.Context, p *ddb.ScanInput, _ ...func(*ddb.Options)) (*ddb.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called("scan"); err != nil {
		return nil, err
	}
	t := m.tbl(deref(p.TableName))
	var items []map[string]types.AttributeValue
	for _, item := range t.items {
		items = append(items, item)
	}
	out := &ddb.ScanOutput{Count: int32(len(items)), ScannedCount: int32(len(items))}
	if p.Select != types.SelectCount {
		out.Items = items
	}
	return out, nil
}

func (m *mockClient) CreateTable(_ context.Context, p *ddb.CreateTableInput, _ ...func(*ddb.Options)) (*ddb.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called("createTable"); err != nil {
		return nil, err
	}
	name := deref(p.TableName)
	keyAttr := "id"
	for _, ks := range p.KeySchema {
		if ks.KeyType == types.KeyTypeHash {
			keyAttr = deref(ks.AttributeName)
		}
	}
	m.tables[name] = &mockTable{
		keyAttr: keyAttr,
		items:   map[string]map[string]types.AttributeValue{},
	}
	return &ddb.CreateTableOutput{}, nil
}

func (m *mockClient) DeleteTable(_ context.Context, p *ddb.DeleteTableInput, _ ...func(*ddb.Options)) (*ddb.DeleteTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called("deleteTable"); err != nil {
		return nil, err
	}
	name := deref(p.TableName)
	if m.tables[name] == nil {
		return nil, fmt.Errorf("ResourceNotFoundException: table %s", name)
	}
	delete(m.tables, name)
	return &ddb.DeleteTableOutput{}, nil
}

func (m *mockClient) ListTables(_ context.Context, _ *ddb.ListTablesInput, _ ...func(*ddb.Options)) (*ddb.ListTablesOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for n := range m.tables {
		names = append(names, n)
	}
	return &ddb.ListTablesOutput{TableNames: names}, nil
}

// ─── schema fixtures ──────────────────────────────────────────────────────────

func userSchema() *ds.TableSchema {
	return &ds.TableSchema{
		Name:       "users",
		PrimaryKey: "id",
		Fields: ds.FieldMap{
			"id":     {Type: ds.FieldTypeString, Generate: "ulid"},
			"name":   {Type: ds.FieldTypeString, Required: true},
			"email":  {Type: ds.FieldTypeString, Validate: `/^[^@]+@[^@]+\.[^@]+$/`},
			"age":    {Type: ds.FieldTypeNumber},
			"city":   {Type: ds.FieldTypeString},
			"status": {Type: ds.FieldTypeString, Default: "idle", Enum: []string{"idle", "active", "banned"}},
			"joined": {Type: ds.FieldTypeDate},
		},
		Indexes: []ds.IndexDef{
			{Field: "name"},
			{Field: "age"},
			{Field: "joined"},
		},
	}
}

// makeStore opens a Store over a fresh mock and creates the physical
// tables for every schema.
func makeStore(t *testing.T, schemas ...*ds.TableSchema) (*ds.Store, *mockClient) {
	t.Helper()
	mock := newMockClient()
	store, err := ds.Open(ds.StoreParams{
		Client:  mock,
		Schemas: schemas,
		Silent:  true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, schema := range schemas {
		tbl, err := store.Table(schema.Name)
		if err != nil {
			t.Fatalf("Table %q: %v", schema.Name, err)
		}
		if err := tbl.CreateTable(bg()); err != nil {
			t.Fatalf("CreateTable %q: %v", schema.Name, err)
		}
	}
	mock.mu.Lock()
	mock.calls = map[string]int{}
	mock.mu.Unlock()
	return store, mock
}

// seedUsers loads the standard user fixtures and returns the table.
func seedUsers(t *testing.T, store *ds.Store) *ds.Table {
	t.Helper()
	tbl, err := store.Table("users")
	if err != nil {
		t.Fatalf("Table users: %v", err)
	}
	users := []ds.Item{
		{"id": "u1", "name": "alice", "email": "alice@example.com", "age": 31, "city": "berlin", "status": "active"},
		{"id": "u2", "name": "bob", "email": "bob@example.com", "age": 25, "city": "paris", "status": "idle"},
		{"id": "u3", "name": "carla", "email": "carla@example.com", "age": 42, "city": "berlin", "status": "active"},
		{"id": "u4", "name": "dave", "email": "dave@example.com", "age": 25, "city": "rome", "status": "banned"},
		{"id": "u5", "name": "erin", "email": "erin@example.com", "age": 37, "city": "oslo", "status": "active"},
	}
	for _, u := range users {
		if _, err := tbl.Put(bg(), u); err != nil {
			t.Fatalf("Put %v: %v", u["id"], err)
		}
	}
	return tbl
}

// ─── assertion helpers ────────────────────────────────────────────────────────

func bg() context.Context { return context.Background() }

func assertErrCode(t *testing.T, err error, code ds.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %q, got nil", code)
	}
	if got := ds.CodeOf(err); got != code {
		t.Errorf("expected error code %q, got %q: %v", code, got, err)
	}
}

func ids(items []ds.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%v", item["id"]))
	}
	return out
}
