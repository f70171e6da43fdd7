package repository

import (
	"tenantcore-backend/internal/index"
	"tenantcore-backend/internal/store"
)

// SortDimension is the closed set of sort dimensions a query may request.
// Each repository scope resolves a dimension to its physical index with an
// exhaustive switch; dimensions a scope does not support fall back to the
// creation-timestamp index, which is also the default.
type SortDimension int

const (
	SortByCreatedAt SortDimension = iota
	SortByRecordDate
	SortByNumberCode
	SortByStringCode
)

// Field returns the record field a dimension sorts on.
func (d SortDimension) Field() string {
	switch d {
	case SortByRecordDate:
		return FieldRecordDate
	case SortByNumberCode:
		return FieldNumberCode
	case SortByStringCode:
		return FieldStringCode
	default:
		return FieldCreatedAtDate
	}
}

// SortParams carries the requested sort dimension, an optional range or
// equality condition on it, and the scan direction.
type SortParams struct {
	Dimension  SortDimension
	Operator   store.SortOperator // empty means no sort-key condition
	Value      any
	UpperBound any // only for store.SortBetween
	Direction  store.Direction
}

// condition materializes the sort-key condition, or nil when none was
// requested.
func (p *SortParams) condition() *store.SortKeyCondition {
	if p == nil || p.Operator == "" {
		return nil
	}
	return &store.SortKeyCondition{
		Field:      p.Dimension.Field(),
		Operator:   p.Operator,
		Value:      p.Value,
		UpperBound: p.UpperBound,
	}
}

func (p *SortParams) direction() store.Direction {
	if p == nil || p.Direction == "" {
		return store.Ascending
	}
	return p.Direction
}

func (p *SortParams) dimension() SortDimension {
	if p == nil {
		return SortByCreatedAt
	}
	return p.Dimension
}

// entityIndexFor resolves a dimension at feature-entity scope.
func entityIndexFor(dim SortDimension) index.Name {
	switch dim {
	case SortByRecordDate:
		return index.FeatureEntityRecordDate
	default:
		return index.FeatureEntityCreatedAt
	}
}

// tenantIndexFor resolves a dimension at tenant scope.
func tenantIndexFor(dim SortDimension) index.Name {
	switch dim {
	case SortByRecordDate:
		return index.TenantRecordDate
	case SortByNumberCode:
		return index.TenantNumberCode
	case SortByStringCode:
		return index.TenantStringCode
	default:
		return index.TenantCreatedAt
	}
}

// targetIndexFor resolves a dimension at target scope.
func targetIndexFor(dim SortDimension) index.Name {
	switch dim {
	case SortByRecordDate:
		return index.TargetRecordDate
	default:
		return index.TargetCreatedAt
	}
}
