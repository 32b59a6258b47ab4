/*
Package dynastore – query builder.

Query composes predicates, ordering and pagination over one table. The
builder has value semantics: every method returns a derived Query and
leaves its receiver untouched, so partially-built queries can be shared
and extended independently.

Execution order is fixed: resolve every predicate, intersect the
results by primary key, sort, then apply offset and limit.
*/
package dynastore

import (
	"context"
	"sort"
)

// SortDirection orders query results.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

type predicate struct {
	field string
	op    operand
}

type sortSpec struct {
	field string
	dir   SortDirection
}

// Query is an immutable query description. Obtain one via Table.Query.
type Query struct {
	table  *Table
	preds  []predicate
	sort   *sortSpec
	limit  int // -1 → unbounded
	offset int
}

// Where adds a predicate on field. The value may be an equality
// literal, a RangeDescriptor or a PatternDescriptor. Predicates
// combine conjunctively.
func (q Query) Where(field string, value any) Query {
	preds := make([]predicate, len(q.preds), len(q.preds)+1)
	copy(preds, q.preds)
	q.preds = append(preds, predicate{field: field, op: makeOperand(value)})
	return q
}

// OrderBy sorts results by field. A later OrderBy replaces an earlier
// one.
func (q Query) OrderBy(field string, dir SortDirection) Query {
	q.sort = &sortSpec{field: field, dir: dir}
	return q
}

// Limit caps the number of results. Negative means unbounded.
func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

// Offset skips the first n results after sorting.
func (q Query) Offset(n int) Query {
	q.offset = n
	return q
}

// Run executes the query. Predicate validation is synchronous: an
// invalid range or an unindexed equality/range predicate fails before
// any store access. Store failures abort the run and propagate.
func (q Query) Run(ctx context.Context) ([]Item, error) {
	if q.table == nil {
		return nil, NewArgError("Query has no table")
	}
	if q.offset < 0 {
		return nil, NewArgError("Negative query offset")
	}

	plans := make([]plannedPredicate, 0, len(q.preds))
	for _, p := range q.preds {
		planned, err := planPredicate(q.table, p)
		if err != nil {
			return nil, err
		}
		plans = append(plans, planned)
	}

	var items []Item
	if len(plans) == 0 {
		all, err := q.table.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		items = all
	} else {
		acc := newCandidateSet()
		for i, planned := range plans {
			found, err := q.table.resolve(ctx, planned)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				acc.addAll(q.table, found)
			} else {
				acc.retain(q.table, found)
			}
			if acc.empty() {
				break
			}
		}
		items = acc.items()
	}

	if q.sort != nil {
		sortRecords(q.table, items, q.sort.field, q.sort.dir)
	}
	return paginate(items, q.offset, q.limit), nil
}

// First runs the query and returns its first result, or nil when the
// query matches nothing.
func (q Query) First(ctx context.Context) (Item, error) {
	items, err := q.Limit(1).Run(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// sortRecords orders items by field using the engine's value ordering.
// The sort is stable so equal-valued records keep their arrival order.
func sortRecords(t *Table, items []Item, field string, dir SortDirection) {
	sort.SliceStable(items, func(i, j int) bool {
		c := compareValues(t.compareValue(field, items[i][field]), t.compareValue(field, items[j][field]))
		if dir == Descending {
			return c > 0
		}
		return c < 0
	})
}

// paginate applies offset then limit. An offset past the end yields an
// empty, non-nil slice.
func paginate(items []Item, offset, limit int) []Item {
	if offset >= len(items) {
		return []Item{}
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
