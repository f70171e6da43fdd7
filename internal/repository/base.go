package repository

import (
	"context"
	"reflect"
	"strings"
	"time"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/index"
	"tenantcore-backend/internal/store"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseRepository adds the feature-entity partitioned query surface and the
// create/update formatting pipeline shared by every scope above it. System
// stamps are injected here, at the repository boundary, never by callers.
type BaseRepository struct {
	*RootRepository

	// nowFn is swapped in tests to pin timestamps.
	nowFn func() time.Time
}

// NewBaseRepository builds a feature-entity scoped repository.
func NewBaseRepository(registry *Registry, driver store.Driver, schema Schema, logger *zap.Logger) (*BaseRepository, error) {
	root, err := NewRootRepository(registry, driver, schema, logger)
	if err != nil {
		return nil, err
	}
	return &BaseRepository{
		RootRepository: root,
		nowFn:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// GetWhere queries records partitioned by the feature-entity name. The sort
// dimension picks the physical index; record-date routes to the record-date
// index, everything else to the creation-timestamp index.
func (r *BaseRepository) GetWhere(ctx context.Context, qb *QueryBuilder, fields []string, limit int32, sort *SortParams) ([]store.Record, error) {
	q, err := buildIndexQuery(qb, fields, limit, sort, entityIndexFor(sort.dimension()), r.schema.FeatureEntity)
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
func (r *BaseRepository) GetWherePaging(ctx context.Context, qb *QueryBuilder, fields []string, limit int32, sort *SortParams, cursor string) (store.Page, error) {
	q, err := buildIndexQuery(qb, fields, limit, sort, entityIndexFor(sort.dimension()), r.schema.FeatureEntity)
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

// CreateOne runs the formatting pipeline, validates the schema's required
// fields and alias pairs, and delegates to the driver. Validation failures
// are raised before any I/O.
func (r *BaseRepository) CreateOne(ctx context.Context, data store.Record, session *SessionUser) (store.Record, error) {
	formatted, err := r.ValidateFormatData(data, session)
	if err != nil {
		return nil, err
	}
	created, err := r.driver.CreateOne(ctx, formatted)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("created record", zap.Any("id", created[FieldID]))
	return created, nil
}

// creationStamps are written once by formatNewData and are immutable from
// then on. An update that carried them could rewind or advance the record's
// creation clock, which the edit lock keys off.
var creationStamps = []string{
	FieldFeatureEntity,
	FieldCreatedAtDate,
	FieldCreatedAtDayStamp,
	FieldCreatorUserID,
}

// UpdateOne stamps modification metadata, strips the immutable creation
// stamps, re-validates aliases, appends a tenant-equality condition when a
// session tenant is known, and delegates to the driver's conditional
// update. Returns nil when the record is absent or a condition failed.
func (r *BaseRepository) UpdateOne(ctx context.Context, id string, update store.Record, session *SessionUser, conds ...store.Condition) (store.Record, error) {
	if id == "" {
		return nil, apperrors.Validation("MISSING_ID", "id must not be empty").WithResource(r.schema.FeatureEntity)
	}
	if err := r.validateAliases(update); err != nil {
		return nil, err
	}

	stamped := cloneRecord(update)
	for _, field := range creationStamps {
		delete(stamped, field)
	}
	stamped[FieldLastModifiedDate] = r.nowFn().Format(TimestampLayout)
	if session != nil && session.UserID != "" {
		stamped[FieldLastModifierUserID] = session.UserID
	}
	if session != nil && session.TenantID != "" {
		conds = append(conds, store.Eq(FieldTenantID, session.TenantID))
	}
	return r.driver.UpdateOne(ctx, id, stamped, conds...)
}

// ValidateFormatData runs the full formatting pipeline without performing
// any I/O: system stamps, defaults, tag normalization, required-field and
// alias validation. Bulk import uses it to vet rows before loading them.
func (r *BaseRepository) ValidateFormatData(data store.Record, session *SessionUser) (store.Record, error) {
	formatted := r.formatNewData(data, session)
	if err := r.validateRequired(formatted); err != nil {
		return nil, err
	}
	if err := r.validateAliases(formatted); err != nil {
		return nil, err
	}
	return formatted, nil
}

// FormatForDump maps a record list through the non-mutating pipeline,
// failing on the first invalid row.
func (r *BaseRepository) FormatForDump(dataList []store.Record) ([]store.Record, error) {
	out := make([]store.Record, 0, len(dataList))
	for _, data := range dataList {
		formatted, err := r.ValidateFormatData(data, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, formatted)
	}
	return out, nil
}

// formatNewData injects the system fields a fresh record carries: id,
// feature-entity name, creation stamps, the record-date default, normalized
// tags, and the creator from the caller's session.
func (r *BaseRepository) formatNewData(data store.Record, session *SessionUser) store.Record {
	out := cloneRecord(data)
	now := r.nowFn()

	if id, _ := out[FieldID].(string); id == "" {
		out[FieldID] = uuid.NewString()
	}
	out[FieldFeatureEntity] = r.schema.FeatureEntity
	out[FieldCreatedAtDate] = now.Format(TimestampLayout)
	out[FieldCreatedAtDayStamp] = now.Format(DayStampLayout)

	if recordDate, _ := out[FieldRecordDate].(string); recordDate == "" {
		out[FieldRecordDate] = now.Format(DayStampLayout)
	}
	if tags, ok := out[FieldTags].(string); ok {
		out[FieldTags] = strings.ToLower(strings.TrimSpace(tags))
	}
	if session != nil && session.UserID != "" {
		out[FieldCreatorUserID] = session.UserID
	}
	return out
}

func (r *BaseRepository) validateRequired(data store.Record) error {
	for _, field := range r.schema.RequiredFields {
		if err := validation.Validate(data[field], validation.Required); err != nil {
			return apperrors.Validation("REQUIRED_FIELD", "field %q: %v", field, err).
				WithResource(r.schema.FeatureEntity)
		}
	}
	return nil
}

// validateAliases enforces value equality of every declared alias pair that
// appears in the data. A pair with only one side present, or unequal
// values, is a validation failure, never a silent overwrite.
func (r *BaseRepository) validateAliases(data store.Record) error {
	for _, alias := range r.schema.Aliases {
		source, sourceOk := data[alias.Source]
		slot, slotOk := data[alias.Slot]
		if !sourceOk && !slotOk {
			continue
		}
		if sourceOk != slotOk {
			return apperrors.Validation("ALIAS_MISMATCH",
				"alias pair %q/%q must be written together", alias.Source, alias.Slot).
				WithResource(r.schema.FeatureEntity)
		}
		if !reflect.DeepEqual(source, slot) {
			return apperrors.Validation("ALIAS_MISMATCH",
				"alias pair %q/%q carries unequal values", alias.Source, alias.Slot).
				WithResource(r.schema.FeatureEntity)
		}
	}
	return nil
}

// verifyAliases re-checks alias pairs on records read back from the store.
// A mismatch means the document was edited out-of-band; it is logged, not
// repaired.
func (r *BaseRepository) verifyAliases(records []store.Record, fields []string) {
	if len(fields) > 0 {
		// A projection may omit one side of a pair; nothing to verify.
		return
	}
	for _, rec := range records {
		if err := r.validateAliases(rec); err != nil {
			r.logger.Warn("alias mismatch on stored record",
				zap.Any("id", rec[FieldID]), zap.Error(err))
		}
	}
}

func buildIndexQuery(qb *QueryBuilder, fields []string, limit int32, sort *SortParams, idx index.Name, partitionValue any) (store.IndexQuery, error) {
	if qb == nil {
		qb = NewQueryBuilder()
	}
	if cond := sort.condition(); cond != nil {
		qb.sortKey(cond)
	}
	if len(fields) > 0 {
		qb.Fields(fields...)
	}
	if limit > 0 {
		qb.Limit(limit)
	}
	qb.Direction(sort.direction())
	return qb.Build(idx, partitionValue)
}

func cloneRecord(rec store.Record) store.Record {
	out := make(store.Record, len(rec)+8)
	for k, v := range rec {
		out[k] = v
	}
	return out
}
