// Package staff manages staff-member records scoped to a tenant. The
// email address doubles as the sortable sk01 slot so members can be looked
// up and range-scanned by address without a dedicated index.
package staff

import (
	"context"
	"strings"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/repository"
	"tenantcore-backend/internal/store"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"go.uber.org/zap"
)

// FeatureEntity is the type discriminator for staff records.
const FeatureEntity = "staffMember"

// Staff-specific field names.
const (
	FieldEmail       = "email"
	FieldDisplayName = "displayName"
	FieldRole        = "role"
	FieldActive      = "active"
)

// Schema describes staff records to the repository layer.
func Schema() repository.Schema {
	return repository.Schema{
		FeatureEntity: FeatureEntity,
		RequiredFields: []string{
			FieldEmail,
			FieldDisplayName,
		},
		Aliases: []repository.FieldAlias{
			{Source: FieldEmail, Slot: repository.FieldSK01},
		},
	}
}

// Service exposes staff operations over the tenant-scoped repository.
type Service struct {
	repo   *repository.TenantRepository
	logger *zap.Logger
}

// NewService registers the staff feature entity and builds its service.
func NewService(registry *repository.Registry, driver store.Driver, logger *zap.Logger) (*Service, error) {
	repo, err := repository.NewTenantRepository(registry, driver, Schema(), logger)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, logger: logger}, nil
}

// Create stores a new staff member for the session's tenant. The email is
// normalized to lower case before the alias check so both slots carry the
// same canonical form.
func (s *Service) Create(ctx context.Context, member store.Record, session *repository.SessionUser) (store.Record, error) {
	if session == nil || session.TenantID == "" {
		return nil, apperrors.Validation("MISSING_TENANT", "a tenant session is required to create staff members").
			WithResource(FeatureEntity)
	}
	email, _ := member[FieldEmail].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return nil, apperrors.Validation("STAFF_EMAIL", "invalid staff email: %v", err).
			WithResource(FeatureEntity)
	}

	// Uniqueness is check-then-create: two concurrent creates for the same
	// address can both pass the check. The window is accepted; duplicates
	// are resolved operationally.
	existing, err := s.FindByEmail(ctx, session.TenantID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("STAFF_EMAIL_TAKEN", "a staff member with email %s already exists", email).
			WithResource(FeatureEntity)
	}

	out := store.Record{}
	for k, v := range member {
		out[k] = v
	}
	out[FieldEmail] = email
	out[repository.FieldSK01] = email
	if _, ok := out[FieldActive]; !ok {
		out[FieldActive] = true
	}
	return s.repo.CreateOne(ctx, out, session)
}

// GetByID fetches one staff member owned by the tenant.
func (s *Service) GetByID(ctx context.Context, id, tenantID string, fields []string) (store.Record, error) {
	return s.repo.GetOneByIDAndTenantID(ctx, id, tenantID, fields)
}

// FindByEmail resolves a staff member by address within the tenant.
func (s *Service) FindByEmail(ctx context.Context, tenantID, email string) (store.Record, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.Validation("STAFF_EMAIL", "email must not be empty").
			WithResource(FeatureEntity)
	}
	qb := repository.NewQueryBuilder().FilterEq(FieldEmail, email)
	records, err := s.repo.GetWhere(ctx, tenantID, qb, nil, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// List returns the tenant's staff members, newest first.
func (s *Service) List(ctx context.Context, tenantID string, limit int32) ([]store.Record, error) {
	sort := &repository.SortParams{Direction: store.Descending}
	return s.repo.GetWhere(ctx, tenantID, nil, nil, limit, sort)
}

// Page pages through the tenant's staff members via opaque cursors.
func (s *Service) Page(ctx context.Context, tenantID string, limit int32, cursor string) (store.Page, error) {
	sort := &repository.SortParams{Direction: store.Descending}
	return s.repo.GetWherePaging(ctx, tenantID, nil, nil, limit, sort, cursor)
}

// Deactivate flags a staff member inactive; admins bypass the edit lock.
func (s *Service) Deactivate(ctx context.Context, id string, session *repository.SessionUser) (store.Record, error) {
	return s.repo.UpdateOne(ctx, id, store.Record{FieldActive: false}, session, true)
}

// Update applies caller changes under the edit lock. Email changes must go
// through Create-side normalization, so the raw alias slot is rejected.
func (s *Service) Update(ctx context.Context, id string, update store.Record, session *repository.SessionUser) (store.Record, error) {
	if email, ok := update[FieldEmail].(string); ok {
		normalized := strings.ToLower(strings.TrimSpace(email))
		out := store.Record{}
		for k, v := range update {
			out[k] = v
		}
		out[FieldEmail] = normalized
		out[repository.FieldSK01] = normalized
		update = out
	}
	return s.repo.UpdateOne(ctx, id, update, session, true)
}

// Delete removes a staff member owned by the session's tenant.
func (s *Service) Delete(ctx context.Context, id string, session *repository.SessionUser) error {
	return s.repo.DeleteOne(ctx, id, session)
}
