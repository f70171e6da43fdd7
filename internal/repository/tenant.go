package repository

import (
	"context"
	"time"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/store"

	"go.uber.org/zap"
)

// TenantRepository layers tenant isolation onto the feature-entity scope.
// Queries run against the derived composite partition key and additionally
// carry an explicit tenant-id filter, so a wrong or forged partition value
// still cannot cross tenants. Writes take the tenant from the session,
// never from caller data.
type TenantRepository struct {
	*BaseRepository
}

// NewTenantRepository builds a tenant-scoped repository.
func NewTenantRepository(registry *Registry, driver store.Driver, schema Schema, logger *zap.Logger) (*TenantRepository, error) {
	base, err := NewBaseRepository(registry, driver, schema, logger)
	if err != nil {
		return nil, err
	}
	return &TenantRepository{BaseRepository: base}, nil
}

// GetWhere queries the tenant's partition of this feature entity. The
// record-date, number-code and string-code dimensions route to their own
// indexes; everything else uses the creation-timestamp index.
func (r *TenantRepository) GetWhere(ctx context.Context, tenantID string, qb *QueryBuilder, fields []string, limit int32, sort *SortParams) ([]store.Record, error) {
	qb, err := r.tenantQuery(tenantID, qb)
	if err != nil {
		return nil, err
	}
	q, err := buildIndexQuery(qb, fields, limit, sort, tenantIndexFor(sort.dimension()), TenantKey(r.schema.FeatureEntity, tenantID))
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

// GetWherePaging is GetWhere threading an opaque cursor in and out.
func (r *TenantRepository) GetWherePaging(ctx context.Context, tenantID string, qb *QueryBuilder, fields []string, limit int32, sort *SortParams, cursor string) (store.Page, error) {
	qb, err := r.tenantQuery(tenantID, qb)
	if err != nil {
		return store.Page{}, err
	}
	q, err := buildIndexQuery(qb, fields, limit, sort, tenantIndexFor(sort.dimension()), TenantKey(r.schema.FeatureEntity, tenantID))
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

// GetOneByIDAndTenantID is an identity lookup with a hard tenant-equality
// condition. A tenant mismatch returns nil, indistinguishable from absence.
func (r *TenantRepository) GetOneByIDAndTenantID(ctx context.Context, id, tenantID string, fields []string) (store.Record, error) {
	if tenantID == "" {
		return nil, apperrors.Validation("MISSING_TENANT", "tenant id must not be empty").
			WithResource(r.schema.FeatureEntity)
	}
	rec, err := r.GetOneByID(ctx, id, store.Eq(FieldTenantID, tenantID))
	if err != nil || rec == nil {
		return nil, err
	}
	return store.Project(rec, fields), nil
}

// CreateOne forces the tenant from the session and derives the composite
// partition key before delegating to the base pipeline. Caller-supplied
// tenant fields are discarded.
func (r *TenantRepository) CreateOne(ctx context.Context, data store.Record, session *SessionUser) (store.Record, error) {
	if session == nil || session.TenantID == "" {
		return nil, apperrors.Validation("MISSING_TENANT", "a tenant session is required to create records").
			WithResource(r.schema.FeatureEntity)
	}
	out := cloneRecord(data)
	out[FieldTenantID] = session.TenantID
	out[FieldFeatureEntityTenantID] = TenantKey(r.schema.FeatureEntity, session.TenantID)
	return r.BaseRepository.CreateOne(ctx, out, session)
}

// UpdateOne updates a record the session's tenant owns. With enforceLock
// set, the edit-lock window is checked against the record's creation stamp
// first. Returns nil when the record is absent, owned by another tenant, or
// removed between the lock check and the write.
func (r *TenantRepository) UpdateOne(ctx context.Context, id string, update store.Record, session *SessionUser, enforceLock bool) (store.Record, error) {
	if session == nil || session.TenantID == "" {
		return nil, apperrors.Validation("MISSING_TENANT", "a tenant session is required to update records").
			WithResource(r.schema.FeatureEntity)
	}

	if enforceLock {
		current, err := r.GetOneByIDAndTenantID(ctx, id, session.TenantID, nil)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}
		createdAt, err := recordCreatedAt(current)
		if err != nil {
			return nil, err
		}
		if err := ValidateEditLock(createdAt, r.nowFn(), session); err != nil {
			return nil, err
		}
	}

	out := cloneRecord(update)
	// Tenant identity is immutable and never caller-supplied.
	delete(out, FieldTenantID)
	delete(out, FieldFeatureEntityTenantID)
	return r.BaseRepository.UpdateOne(ctx, id, out, session)
}

// DeleteOne removes a record the session's tenant owns; a mismatch is a
// silent no-op.
func (r *TenantRepository) DeleteOne(ctx context.Context, id string, session *SessionUser) error {
	if session == nil || session.TenantID == "" {
		return apperrors.Validation("MISSING_TENANT", "a tenant session is required to delete records").
			WithResource(r.schema.FeatureEntity)
	}
	return r.DeleteByID(ctx, id, store.Eq(FieldTenantID, session.TenantID))
}

// tenantQuery validates the tenant id and injects it as an explicit
// equality filter alongside the derived partition key.
func (r *TenantRepository) tenantQuery(tenantID string, qb *QueryBuilder) (*QueryBuilder, error) {
	if tenantID == "" {
		return nil, apperrors.Validation("MISSING_TENANT", "tenant id must not be empty").
			WithResource(r.schema.FeatureEntity)
	}
	if qb == nil {
		qb = NewQueryBuilder()
	}
	return qb.FilterEq(FieldTenantID, tenantID), nil
}

// ValidateEditLock applies the time-boxed edit-lock rule: admins always
// pass; everyone else may edit only while the record is younger than the
// configured window AND was created on the current calendar day. Both
// conditions are checked; either failing locks the record. A window of zero
// or less means no lock is configured.
func ValidateEditLock(createdAt, now time.Time, session *SessionUser) error {
	if session != nil && session.IsAdmin {
		return nil
	}
	lockMinutes := 0
	if session != nil {
		lockMinutes = session.DataEditLockMinutes
	}
	if lockMinutes <= 0 {
		return nil
	}

	if now.After(createdAt.Add(time.Duration(lockMinutes) * time.Minute)) {
		return apperrors.Validation("EDIT_LOCKED",
			"record is older than the %d minute edit window", lockMinutes)
	}
	cy, cm, cd := createdAt.Date()
	ny, nm, nd := now.Date()
	if cy != ny || cm != nm || cd != nd {
		return apperrors.Validation("EDIT_LOCKED", "record was created on a previous calendar day")
	}
	return nil
}

func recordCreatedAt(rec store.Record) (time.Time, error) {
	raw, _ := rec[FieldCreatedAtDate].(string)
	createdAt, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.Validation("CREATED_AT", "record carries an unreadable creation stamp: %v", err)
	}
	return createdAt, nil
}
