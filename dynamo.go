/*
Package dynastore – DynamoDB command layer.

Low-level item operations against physical tables. Every secondary
index is a global index keyed by the constant anchor attribute, so an
index scan is a Query with the anchor in the key condition and the
record field as the sort key. BETWEEN and the single comparators are
inclusive on the wire; callers needing open bounds trim the result.
*/
package dynastore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// anchorField is written on every record and serves as the hash key of
// every secondary index. It never appears in records returned to callers.
const anchorField = "_t"

// sanityPages caps pagination loops against runaway result sets.
const sanityPages = 1000

// keyExpression accumulates expression attribute names and values with
// the #_N / :_N naming convention.
type keyExpression struct {
	terms  []string
	names  map[string]string
	values map[string]types.AttributeValue
	nindex int
	vindex int
}

func newKeyExpression() *keyExpression {
	return &keyExpression{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
	}
}

func (e *keyExpression) addName(name string) string {
	key := fmt.Sprintf("#_%d", e.nindex)
	e.nindex++
	e.names[key] = name
	return key
}

func (e *keyExpression) addValue(v any) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", NewError(fmt.Sprintf("Cannot marshal value %v", v),
			WithCode(ErrArgument), WithCause(err))
	}
	key := fmt.Sprintf(":_%d", e.vindex)
	e.vindex++
	e.values[key] = av
	return key, nil
}

func (e *keyExpression) addTerm(format string, args ...any) {
	e.terms = append(e.terms, fmt.Sprintf(format, args...))
}

func (e *keyExpression) condition() string {
	out := ""
	for i, t := range e.terms {
		if i > 0 {
			out += " and "
		}
		out += t
	}
	return out
}

// buildIndexQuery constructs the Query input for an index scan: anchor
// equality plus a sort-key condition covering the interval. Open bounds
// widen to their inclusive form here.
func buildIndexQuery(physName, tableName string, idx *IndexDef, iv Interval) (*ddb.QueryInput, error) {
	e := newKeyExpression()

	anchor := e.addName(anchorField)
	anchorVal, err := e.addValue(tableName)
	if err != nil {
		return nil, err
	}
	e.addTerm("%s = %s", anchor, anchorVal)

	field := e.addName(idx.Field)
	switch {
	case iv.isEquality():
		v, err := e.addValue(iv.Lower)
		if err != nil {
			return nil, err
		}
		e.addTerm("%s = %s", field, v)

	case iv.Lower != nil && iv.Upper != nil:
		lo, err := e.addValue(iv.Lower)
		if err != nil {
			return nil, err
		}
		hi, err := e.addValue(iv.Upper)
		if err != nil {
			return nil, err
		}
		e.addTerm("%s between %s and %s", field, lo, hi)

	case iv.Lower != nil:
		lo, err := e.addValue(iv.Lower)
		if err != nil {
			return nil, err
		}
		e.addTerm("%s >= %s", field, lo)

	case iv.Upper != nil:
		hi, err := e.addValue(iv.Upper)
		if err != nil {
			return nil, err
		}
		e.addTerm("%s <= %s", field, hi)

	default:
		return nil, NewError("Index scan requires a bounded interval",
			WithCode(ErrInvalidRange))
	}

	cond := e.condition()
	return &ddb.QueryInput{
		TableName:                 &physName,
		IndexName:                 &idx.Name,
		KeyConditionExpression:    &cond,
		ExpressionAttributeNames:  e.names,
		ExpressionAttributeValues: e.values,
	}, nil
}

// ─── item operations ──────────────────────────────────────────────────────────

func (s *Store) getItem(ctx context.Context, physName, keyAttr string, key any) (Item, error) {
	start := time.Now()
	logInfo(s.log, fmt.Sprintf(`Store "get" "%s"`, physName), map[string]any{"key": key})

	marshalled, err := marshallItem(Item{keyAttr: key})
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetItem(ctx, &ddb.GetItemInput{
		TableName: &physName,
		Key:       marshalled,
	})
	s.observe(physName, "get", start, err)
	if err != nil {
		return nil, s.wrapStoreErr("get", physName, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return unmarshallItem(out.Item)
}

func (s *Store) putItem(ctx context.Context, physName string, item Item) error {
	start := time.Now()
	logInfo(s.log, fmt.Sprintf(`Store "put" "%s"`, physName), map[string]any{"item": item})

	marshalled, err := marshallItem(item)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &ddb.PutItemInput{
		TableName: &physName,
		Item:      marshalled,
	})
	s.observe(physName, "put", start, err)
	if err != nil {
		return s.wrapStoreErr("put", physName, err)
	}
	return nil
}

func (s *Store) deleteItem(ctx context.Context, physName, keyAttr string, key any) error {
	start := time.Now()
	logInfo(s.log, fmt.Sprintf(`Store "delete" "%s"`, physName), map[string]any{"key": key})

	marshalled, err := marshallItem(Item{keyAttr: key})
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &ddb.DeleteItemInput{
		TableName: &physName,
		Key:       marshalled,
	})
	s.observe(physName, "delete", start, err)
	if err != nil {
		return s.wrapStoreErr("delete", physName, err)
	}
	return nil
}

// queryIndex runs an index scan for the interval, following pagination.
func (s *Store) queryIndex(ctx context.Context, physName, tableName string, idx *IndexDef, iv Interval) ([]Item, error) {
	start := time.Now()
	logInfo(s.log, fmt.Sprintf(`Store "query" "%s"`, physName),
		map[string]any{"index": idx.Name, "field": idx.Field})

	input, err := buildIndexQuery(physName, tableName, idx, iv)
	if err != nil {
		return nil, err
	}

	items := []Item{}
	for page := 0; page < sanityPages; page++ {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			s.observe(physName, "query", start, err)
			return nil, s.wrapStoreErr("query", physName, err)
		}
		unmarshalled, err := unmarshallItems(out.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, unmarshalled...)
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	s.observe(physName, "query", start, nil)
	return items, nil
}

// scanItems reads the whole physical table, following pagination.
func (s *Store) scanItems(ctx context.Context, physName string) ([]Item, error) {
	start := time.Now()
	logInfo(s.log, fmt.Sprintf(`Store "scan" "%s"`, physName), nil)

	input := &ddb.ScanInput{TableName: &physName}
	items := []Item{}
	for page := 0; page < sanityPages; page++ {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			s.observe(physName, "scan", start, err)
			return nil, s.wrapStoreErr("scan", physName, err)
		}
		unmarshalled, err := unmarshallItems(out.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, unmarshalled...)
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	s.observe(physName, "scan", start, nil)
	return items, nil
}

// countItems counts records without transferring them.
func (s *Store) countItems(ctx context.Context, physName string) (int, error) {
	start := time.Now()
	logInfo(s.log, fmt.Sprintf(`Store "count" "%s"`, physName), nil)

	input := &ddb.ScanInput{
		TableName: &physName,
		Select:    types.SelectCount,
	}
	count := 0
	for page := 0; page < sanityPages; page++ {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			s.observe(physName, "count", start, err)
			return 0, s.wrapStoreErr("count", physName, err)
		}
		count += int(out.Count)
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	s.observe(physName, "count", start, nil)
	return count, nil
}

// ─── marshall / unmarshall helpers ────────────────────────────────────────────

func marshallItem(item Item) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, NewError("Cannot marshal item", WithCode(ErrArgument), WithCause(err))
	}
	return av, nil
}

func unmarshallItem(av map[string]types.AttributeValue) (Item, error) {
	var item Item
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, NewError("Cannot unmarshal item", WithCode(ErrStore), WithCause(err))
	}
	return item, nil
}

func unmarshallItems(list []map[string]types.AttributeValue) ([]Item, error) {
	items := make([]Item, 0, len(list))
	for _, av := range list {
		item, err := unmarshallItem(av)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
