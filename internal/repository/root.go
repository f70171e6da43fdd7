package repository

import (
	"context"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/store"

	"go.uber.org/zap"
)

// RootRepository owns one store-driver handle for one feature entity and
// exposes the identity-keyed primitives every higher layer builds on.
type RootRepository struct {
	registry *Registry
	driver   store.Driver
	schema   Schema
	logger   *zap.Logger
}

// NewRootRepository claims the schema's feature-entity name in the registry
// and binds the driver handle. A duplicate name is a configuration error
// the host must treat as fatal.
func NewRootRepository(registry *Registry, driver store.Driver, schema Schema, logger *zap.Logger) (*RootRepository, error) {
	for _, alias := range schema.Aliases {
		if alias.Source == "" || alias.Slot == "" {
			return nil, apperrors.Validation("ALIAS", "alias pairs need both a source and a slot field").
				WithResource(schema.FeatureEntity)
		}
	}
	if err := registry.Register(schema.FeatureEntity); err != nil {
		return nil, err
	}
	return &RootRepository{
		registry: registry,
		driver:   driver,
		schema:   schema,
		logger:   logger.With(zap.String("featureEntity", schema.FeatureEntity)),
	}, nil
}

// FeatureEntity returns the entity name this repository is bound to.
func (r *RootRepository) FeatureEntity() string {
	return r.schema.FeatureEntity
}

// Schema returns the schema declaration this repository was built with.
func (r *RootRepository) Schema() Schema {
	return r.schema
}

// GetOneByID returns the record or nil. Conditions are pushed down to the
// driver so a mismatch cannot leak another owner's record even via a raw id
// lookup.
func (r *RootRepository) GetOneByID(ctx context.Context, id string, conds ...store.Condition) (store.Record, error) {
	if id == "" {
		return nil, apperrors.Validation("MISSING_ID", "id must not be empty").WithResource(r.schema.FeatureEntity)
	}
	return r.driver.GetOneByID(ctx, id, conds...)
}

// DeleteByID removes the record, honoring pushed-down conditions.
func (r *RootRepository) DeleteByID(ctx context.Context, id string, conds ...store.Condition) error {
	if id == "" {
		return apperrors.Validation("MISSING_ID", "id must not be empty").WithResource(r.schema.FeatureEntity)
	}
	return r.driver.DeleteByID(ctx, id, conds...)
}

// BatchGetManyByIDs fetches several records by id. The id list is
// de-duplicated first; a single remaining id goes through the one-item read
// instead of the driver's batch call, which is cheaper and sidesteps batch
// size edge cases.
func (r *RootRepository) BatchGetManyByIDs(ctx context.Context, ids []string, fields []string, conds ...store.Condition) ([]store.Record, error) {
	unique := dedupe(ids)
	switch len(unique) {
	case 0:
		return []store.Record{}, nil
	case 1:
		rec, err := r.GetOneByID(ctx, unique[0], conds...)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return []store.Record{}, nil
		}
		return []store.Record{store.Project(rec, fields)}, nil
	default:
		return r.driver.GetManyByIDs(ctx, unique, fields, conds...)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
