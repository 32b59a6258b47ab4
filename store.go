/*
Package dynastore – Store type.

A Store wraps one DynamoDB client and hosts any number of logical
tables. Each logical table maps to its own physical DynamoDB table
whose name is Prefix + table name.
*/
package dynastore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	uuid "github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	uid "github.com/harborstack/dynastore-go/internal/uid"
)

// Item is one record: field name → value.
type Item = map[string]any

// DynamoClient is the interface satisfied by both the real AWS DynamoDB
// client and any test doubles / local stubs.
type DynamoClient interface {
	GetItem(ctx context.Context, params *ddb.GetItemInput, optFns ...func(*ddb.Options)) (*ddb.GetItemOutput, error)
	PutItem(ctx context.Context, params *ddb.PutItemInput, optFns ...func(*ddb.Options)) (*ddb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *ddb.DeleteItemInput, optFns ...func(*ddb.Options)) (*ddb.DeleteItemOutput, error)
	Query(ctx context.Context, params *ddb.QueryInput, optFns ...func(*ddb.Options)) (*ddb.QueryOutput, error)
	Scan(ctx context.Context, params *ddb.ScanInput, optFns ...func(*ddb.Options)) (*ddb.ScanOutput, error)

	CreateTable(ctx context.Context, params *ddb.CreateTableInput, optFns ...func(*ddb.Options)) (*ddb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *ddb.DeleteTableInput, optFns ...func(*ddb.Options)) (*ddb.DeleteTableOutput, error)
	ListTables(ctx context.Context, params *ddb.ListTablesInput, optFns ...func(*ddb.Options)) (*ddb.ListTablesOutput, error)
}

// MonitorFunc is an optional hook called after each backend operation.
type MonitorFunc func(table, op string, start time.Time, err error)

// StoreParams configures a Store.
type StoreParams struct {
	Client  DynamoClient
	Schemas []*TableSchema // tables defined up front; more may follow via DefineTable
	Prefix  string         // physical table name prefix
	Logger  Logger         // nil → default (info+error only)
	Verbose bool           // true → also log trace/data
	Silent  bool           // true → discard all logging (ignored when Logger set)

	// CacheSize > 0 enables an LRU read cache over Get. Entries are
	// dropped on Put / Delete of the same key.
	CacheSize int

	Monitor MonitorFunc
}

// Store hosts logical tables over one DynamoDB client.
type Store struct {
	client  DynamoClient
	log     Logger
	prefix  string
	monitor MonitorFunc
	cache   *lru.Cache[string, Item]
	tables  map[string]*Table
}

// Open creates a Store and defines any schemas given in params.
func Open(params StoreParams) (*Store, error) {
	if params.Client == nil {
		return nil, NewArgError("Missing \"client\" property")
	}

	s := &Store{
		client:  params.Client,
		prefix:  params.Prefix,
		monitor: params.Monitor,
		tables:  map[string]*Table{},
	}

	switch {
	case params.Logger != nil:
		s.log = params.Logger
	case params.Silent:
		s.log = nopLogger{}
	case params.Verbose:
		s.log = verboseLogger{}
	default:
		s.log = defaultLogger{}
	}

	if params.CacheSize > 0 {
		cache, err := lru.New[string, Item](params.CacheSize)
		if err != nil {
			return nil, NewArgError("Bad cache size: " + err.Error())
		}
		s.cache = cache
	}

	for _, schema := range params.Schemas {
		if _, err := s.DefineTable(schema); err != nil {
			return nil, err
		}
	}

	logTrace(s.log, "Store opened", map[string]any{"tables": s.Tables()})
	return s, nil
}

// DefineTable registers a logical table. The schema is validated and
// normalised; the physical table is not touched (see Table.CreateTable).
func (s *Store) DefineTable(schema *TableSchema) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if _, ok := s.tables[schema.Name]; ok {
		return nil, NewArgError("Table \"" + schema.Name + "\" already defined")
	}
	t := newTable(s, schema)
	s.tables[schema.Name] = t
	return t, nil
}

// RemoveTable drops a logical table from the registry. The physical
// table is left alone.
func (s *Store) RemoveTable(name string) error {
	if _, ok := s.tables[name]; !ok {
		return NewError("Cannot find table \""+name+"\"", WithCode(ErrNotFound))
	}
	delete(s.tables, name)
	return nil
}

// Table returns a previously defined logical table.
func (s *Store) Table(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, NewError("Cannot find table \""+name+"\"", WithCode(ErrNotFound))
	}
	return t, nil
}

// Tables lists the defined logical table names, sorted.
func (s *Store) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListTables returns all physical table names known to the backend.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	out, err := s.client.ListTables(ctx, &ddb.ListTablesInput{})
	if err != nil {
		return nil, s.wrapStoreErr("listTables", "", err)
	}
	return out.TableNames, nil
}

// observe reports an operation to the logger and the monitor hook.
func (s *Store) observe(table, op string, start time.Time, err error) {
	if err != nil {
		logError(s.log, fmt.Sprintf(`Store "%s" "%s" failed`, op, table),
			map[string]any{"error": err.Error()})
	}
	if s.monitor != nil {
		s.monitor(table, op, start, err)
	}
}

func (s *Store) wrapStoreErr(op, table string, err error) error {
	return NewError(fmt.Sprintf(`Store operation "%s" failed for "%s"`, op, table),
		WithCode(ErrStore), WithCause(err),
		WithContext(map[string]any{"op": op, "table": table}))
}

// ─── read cache ───────────────────────────────────────────────────────────────

func (s *Store) cacheGet(key string) (Item, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Store) cacheSet(key string, item Item) {
	if s.cache == nil {
		return
	}
	s.cache.Add(key, item)
}

func (s *Store) cacheDrop(key string) {
	if s.cache == nil {
		return
	}
	s.cache.Remove(key)
}

// ─── key generation ───────────────────────────────────────────────────────────

// generate produces a value for a field with a "generate" directive:
// "uuid", "ulid", "uid" or "uid(n)".
func (s *Store) generate(gen string) any {
	switch gen {
	case "uuid":
		return s.UUID()
	case "ulid":
		return s.ULID()
	case "uid":
		return s.UID(10)
	default:
		if strings.HasPrefix(gen, "uid(") {
			n := 10
			fmt.Sscanf(gen, "uid(%d)", &n)
			return s.UID(n)
		}
		return s.UUID()
	}
}

func (s *Store) UUID() string {
	return uuid.NewString()
}

func (s *Store) ULID() string {
	return uid.New().String()
}

func (s *Store) UID(size int) string {
	return uid.UID(size)
}
