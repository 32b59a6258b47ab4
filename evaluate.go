/*
Package dynastore – predicate evaluation.

Each query predicate is validated and planned before any store access:
range descriptors are normalised, patterns compiled, and equality or
range predicates on unindexed fields rejected. Resolution then runs
one index scan or one linear scan per predicate.
*/
package dynastore

import (
	"context"
	"fmt"
)

// plannedPredicate is a validated predicate ready to resolve.
type plannedPredicate struct {
	field    string
	kind     operandKind
	interval Interval          // literal and range predicates
	match    func(string) bool // pattern predicates
	index    *IndexDef         // nil for pattern predicates
}

// planPredicate validates one predicate. No store access happens here;
// InvalidRange and MissingIndex surface before any I/O.
func planPredicate(t *Table, p predicate) (plannedPredicate, error) {
	planned := plannedPredicate{field: p.field, kind: p.op.kind}

	if p.field == "" {
		return planned, NewArgError("Missing predicate field")
	}
	if _, ok := t.schema.Fields[p.field]; !ok {
		return planned, NewArgError(
			fmt.Sprintf(`Unknown field "%s" in table "%s"`, p.field, t.schema.Name))
	}

	switch p.op.kind {
	case operandPattern:
		planned.match = CompilePattern(p.op.pattern)
		return planned, nil

	case operandRange:
		iv, err := ToInterval(p.op.rng)
		if err != nil {
			return planned, err
		}
		planned.interval = iv

	case operandLiteral:
		if p.op.literal == nil {
			return planned, NewArgError(
				fmt.Sprintf(`Nil equality value for field "%s"`, p.field))
		}
		planned.interval = equalityInterval(p.op.literal)
	}

	idx := t.schema.indexOn(p.field)
	if idx == nil {
		return planned, NewError(
			fmt.Sprintf(`No index on field "%s" of table "%s"`, p.field, t.schema.Name),
			WithCode(ErrMissingIndex),
			WithContext(map[string]any{"table": t.schema.Name, "field": p.field}))
	}
	planned.index = idx
	return planned, nil
}

// resolve produces the candidate records for one planned predicate.
func (t *Table) resolve(ctx context.Context, p plannedPredicate) ([]Item, error) {
	if p.kind == operandPattern {
		items, err := t.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		matched := []Item{}
		for _, item := range items {
			s, ok := item[p.field].(string)
			if ok && p.match(s) {
				matched = append(matched, item)
			}
		}
		return matched, nil
	}
	return t.scanInterval(ctx, p.index, p.interval)
}

// candidateSet intersects predicate results by primary-key identity
// while preserving first-seen order.
type candidateSet struct {
	byKey map[string]Item
	order []string
}

func newCandidateSet() *candidateSet {
	return &candidateSet{byKey: map[string]Item{}}
}

func (c *candidateSet) addAll(t *Table, items []Item) {
	for _, item := range items {
		key := t.keyString(item)
		if _, ok := c.byKey[key]; ok {
			continue
		}
		c.byKey[key] = item
		c.order = append(c.order, key)
	}
}

// retain keeps only the candidates also present in items.
func (c *candidateSet) retain(t *Table, items []Item) {
	keep := map[string]bool{}
	for _, item := range items {
		keep[t.keyString(item)] = true
	}
	order := c.order[:0]
	for _, key := range c.order {
		if keep[key] {
			order = append(order, key)
		} else {
			delete(c.byKey, key)
		}
	}
	c.order = order
}

func (c *candidateSet) items() []Item {
	out := make([]Item, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.byKey[key])
	}
	return out
}

func (c *candidateSet) empty() bool { return len(c.order) == 0 }
