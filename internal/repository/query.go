package repository

import (
	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/index"
	"tenantcore-backend/internal/store"
)

// QueryBuilder accumulates filter clauses, at most one sort-key condition,
// a result cap, and a scan direction, then produces the immutable query the
// driver consumes. It is a pure accumulator: no retries, no backtracking,
// and each built query is used for exactly one request.
type QueryBuilder struct {
	filters   []store.Filter
	sortCond  *store.SortKeyCondition
	fields    []string
	limit     int32
	direction store.Direction
	err       error
}

// NewQueryBuilder creates an empty builder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{direction: store.Ascending}
}

// Filter adds a conjunctive filter clause.
func (qb *QueryBuilder) Filter(field string, op store.FilterOperator, value any) *QueryBuilder {
	qb.filters = append(qb.filters, store.Filter{Field: field, Operator: op, Value: value})
	return qb
}

// FilterEq adds an equality filter clause.
func (qb *QueryBuilder) FilterEq(field string, value any) *QueryBuilder {
	return qb.Filter(field, store.FilterEq, value)
}

// FilterIn adds a disjunctive membership clause on one field.
func (qb *QueryBuilder) FilterIn(field string, values ...any) *QueryBuilder {
	qb.filters = append(qb.filters, store.Filter{Field: field, Operator: store.FilterIn, Values: values})
	return qb
}

// SortKey sets the query's single sort-key condition. A second call is a
// programming error and surfaces when the query is built.
func (qb *QueryBuilder) SortKey(field string, op store.SortOperator, value any) *QueryBuilder {
	return qb.sortKey(&store.SortKeyCondition{Field: field, Operator: op, Value: value})
}

// SortKeyBetween sets an inclusive range condition on the sort key.
func (qb *QueryBuilder) SortKeyBetween(field string, lower, upper any) *QueryBuilder {
	return qb.sortKey(&store.SortKeyCondition{
		Field:      field,
		Operator:   store.SortBetween,
		Value:      lower,
		UpperBound: upper,
	})
}

func (qb *QueryBuilder) sortKey(cond *store.SortKeyCondition) *QueryBuilder {
	if qb.sortCond != nil {
		qb.err = apperrors.Validation("SORT_CONDITION", "a query supports exactly one sort-key condition")
		return qb
	}
	qb.sortCond = cond
	return qb
}

// Fields restricts the result projection.
func (qb *QueryBuilder) Fields(fields ...string) *QueryBuilder {
	qb.fields = fields
	return qb
}

// Limit caps the result count. Zero means no cap.
func (qb *QueryBuilder) Limit(limit int32) *QueryBuilder {
	qb.limit = limit
	return qb
}

// Direction sets the scan direction along the sort key.
func (qb *QueryBuilder) Direction(d store.Direction) *QueryBuilder {
	qb.direction = d
	return qb
}

// Build finalizes the accumulated state against one catalog index and
// partition-key value.
func (qb *QueryBuilder) Build(idx index.Name, partitionValue any) (store.IndexQuery, error) {
	if qb.err != nil {
		return store.IndexQuery{}, qb.err
	}
	return store.IndexQuery{
		Index:          idx,
		PartitionValue: partitionValue,
		SortCondition:  qb.sortCond,
		Filters:        qb.filters,
		Fields:         qb.fields,
		Limit:          qb.limit,
		Direction:      qb.direction,
	}, nil
}
