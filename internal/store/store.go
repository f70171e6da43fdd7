// Package store defines the document-store driver contract consumed by the
// repository layers, plus the DynamoDB implementation and its decorators.
//
// The driver owns the physical concerns: conditional writes, secondary-index
// queries, batch reads, pagination tokens, and index administration. The
// repository layers above it decide which index to address and what
// conditions to push down; the driver never interprets business fields.
package store

import (
	"context"

	"tenantcore-backend/internal/index"
)

// Record is one flat document as persisted. Generic fields (featureEntity,
// featureEntityTenantId, createdAtDate, ...) share the document with
// entity-specific fields from each domain schema.
type Record = map[string]any

// Condition is an equality constraint pushed down with a read, update, or
// delete so that an ownership mismatch cannot leak or touch a record even
// via a raw id lookup.
type Condition struct {
	Field string
	Value any
}

// Eq builds an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Value: value}
}

// SortOperator is the comparison applied to a query's sort key.
type SortOperator string

const (
	SortEq         SortOperator = "eq"
	SortLt         SortOperator = "lt"
	SortLte        SortOperator = "lte"
	SortGt         SortOperator = "gt"
	SortGte        SortOperator = "gte"
	SortBetween    SortOperator = "between"
	SortBeginsWith SortOperator = "begins_with"
)

// SortKeyCondition is the single range/equality/prefix condition a query may
// place on its index's sort key. UpperBound is only set for SortBetween.
type SortKeyCondition struct {
	Field      string
	Operator   SortOperator
	Value      any
	UpperBound any
}

// FilterOperator is the comparison applied to a non-key filter clause.
type FilterOperator string

const (
	FilterEq       FilterOperator = "eq"
	FilterNe       FilterOperator = "ne"
	FilterContains FilterOperator = "contains"
	FilterIn       FilterOperator = "in"
	FilterExists   FilterOperator = "exists"
	FilterMissing  FilterOperator = "missing"
)

// Filter is one non-key filter clause; clauses are conjunctive.
type Filter struct {
	Field    string
	Operator FilterOperator
	Value    any
	Values   []any // for FilterIn
}

// Direction orders results along the sort key.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// IndexQuery is the finished shape the repository layers hand to the driver:
// one catalog index, its partition key value, at most one sort-key
// condition, conjunctive filters, projection, limit, and direction.
type IndexQuery struct {
	Index          index.Name
	PartitionValue any
	SortCondition  *SortKeyCondition
	Filters        []Filter
	Fields         []string
	Limit          int32
	Direction      Direction
}

// Page is one page of a paginated index query. NextPageHash is opaque to
// callers and bound to the query's index; an empty hash means the scan is
// exhausted.
type Page struct {
	Items        []Record
	NextPageHash string
}

// Driver is the injected document-store capability. Single-item lookups
// return (nil, nil) when nothing matches, including when a pushed-down
// condition fails; that keeps tenant mismatches indistinguishable from
// absence.
type Driver interface {
	GetOneByID(ctx context.Context, id string, conds ...Condition) (Record, error)
	GetManyByIDs(ctx context.Context, ids []string, fields []string, conds ...Condition) ([]Record, error)
	DeleteByID(ctx context.Context, id string, conds ...Condition) error
	CreateOne(ctx context.Context, data Record) (Record, error)
	UpdateOne(ctx context.Context, id string, data Record, conds ...Condition) (Record, error)
	QueryIndex(ctx context.Context, q IndexQuery) ([]Record, error)
	QueryIndexPage(ctx context.Context, q IndexQuery, cursor string) (Page, error)
}

// Admin is the administrative surface used once at bootstrap to provision
// the catalog's indexes.
type Admin interface {
	EnsureIndexes(ctx context.Context, defs []index.Definition) error
	ListIndexes(ctx context.Context) ([]string, error)
}

// Project reduces a record to the requested fields. A nil or empty field
// list returns the record unchanged.
func Project(rec Record, fields []string) Record {
	if rec == nil || len(fields) == 0 {
		return rec
	}
	out := make(Record, len(fields))
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out
}

// MatchesConditions reports whether a record satisfies every equality
// condition. Used by drivers that cannot push conditions into the physical
// read itself.
func MatchesConditions(rec Record, conds []Condition) bool {
	for _, c := range conds {
		if rec[c.Field] != c.Value {
			return false
		}
	}
	return true
}
