package repository

import (
	"context"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/index"
	"tenantcore-backend/internal/store"

	"go.uber.org/zap"
)

// TenantTargetRepository layers target-relation scoping on top of tenant
// isolation, serving parent-to-children access patterns: all orders of a
// customer, all staff of a manager. Every target query is additionally
// intersected with the tenant filter.
type TenantTargetRepository struct {
	*TenantRepository
}

// NewTenantTargetRepository builds a target-scoped repository.
func NewTenantTargetRepository(registry *Registry, driver store.Driver, schema Schema, logger *zap.Logger) (*TenantTargetRepository, error) {
	tenant, err := NewTenantRepository(registry, driver, schema, logger)
	if err != nil {
		return nil, err
	}
	return &TenantTargetRepository{TenantRepository: tenant}, nil
}

// GetWhereByTarget queries the target's partition, filtered to the tenant.
func (r *TenantTargetRepository) GetWhereByTarget(ctx context.Context, tenantID, targetID string, qb *QueryBuilder, fields []string, limit int32, sort *SortParams) ([]store.Record, error) {
	qb, err := r.targetQuery(tenantID, targetID, qb)
	if err != nil {
		return nil, err
	}
	q, err := buildIndexQuery(qb, fields, limit, sort, targetIndexFor(sort.dimension()), targetID)
	if err != nil {
		return nil, err
	}
	records, err := r.driver.QueryIndex(ctx, q)
	if err != nil {
		return nil, err
	}
	r.verifyAliases(records, fields)
	return records, nil
}

// GetWherePagingByTarget is GetWhereByTarget threading an opaque cursor.
func (r *TenantTargetRepository) GetWherePagingByTarget(ctx context.Context, tenantID, targetID string, qb *QueryBuilder, fields []string, limit int32, sort *SortParams, cursor string) (store.Page, error) {
	qb, err := r.targetQuery(tenantID, targetID, qb)
	if err != nil {
		return store.Page{}, err
	}
	q, err := buildIndexQuery(qb, fields, limit, sort, targetIndexFor(sort.dimension()), targetID)
	if err != nil {
		return store.Page{}, err
	}
	page, err := r.driver.QueryIndexPage(ctx, q, cursor)
	if err != nil {
		return store.Page{}, err
	}
	r.verifyAliases(page.Items, fields)
	return page, nil
}

// ExistsForTarget reports whether the target has at least one record of
// this feature entity within the tenant. It uses the feature-entity sorted
// target index so the check is a single-key read.
func (r *TenantTargetRepository) ExistsForTarget(ctx context.Context, tenantID, targetID string) (bool, error) {
	qb, err := r.targetQuery(tenantID, targetID, nil)
	if err != nil {
		return false, err
	}
	qb.SortKey(FieldFeatureEntity, store.SortEq, r.schema.FeatureEntity)
	q, err := qb.Limit(1).Build(index.TargetFeatureEntity, targetID)
	if err != nil {
		return false, err
	}
	records, err := r.driver.QueryIndex(ctx, q)
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// CreateOne requires a non-empty target relation before delegating to the
// tenant pipeline.
func (r *TenantTargetRepository) CreateOne(ctx context.Context, data store.Record, session *SessionUser) (store.Record, error) {
	if targetID, _ := data[FieldTargetID].(string); targetID == "" {
		return nil, apperrors.Validation("MISSING_TARGET", "targetId is required for %s records", r.schema.FeatureEntity).
			WithResource(r.schema.FeatureEntity)
	}
	return r.TenantRepository.CreateOne(ctx, data, session)
}

// AttachChildren enriches a parent record with this repository's records
// that point at it, stored under childrenKey. The parent itself usually
// lives in another repository; this is the composition point for callers,
// not a recursive walk.
func (r *TenantTargetRepository) AttachChildren(ctx context.Context, tenantID string, parent store.Record, childrenKey string, fields []string, limit int32, sort *SortParams) (store.Record, error) {
	parentID, _ := parent[FieldID].(string)
	if parentID == "" {
		return nil, apperrors.Validation("MISSING_ID", "parent record has no id").
			WithResource(r.schema.FeatureEntity)
	}
	children, err := r.GetWhereByTarget(ctx, tenantID, parentID, nil, fields, limit, sort)
	if err != nil {
		return nil, err
	}
	enriched := cloneRecord(parent)
	enriched[childrenKey] = children
	return enriched, nil
}

func (r *TenantTargetRepository) targetQuery(tenantID, targetID string, qb *QueryBuilder) (*QueryBuilder, error) {
	if targetID == "" {
		return nil, apperrors.Validation("MISSING_TARGET", "target id must not be empty").
			WithResource(r.schema.FeatureEntity)
	}
	return r.tenantQuery(tenantID, qb)
}
