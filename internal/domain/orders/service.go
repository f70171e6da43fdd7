// Package orders manages order records scoped to a customer target.
// Orders demonstrate both alias slots: customerId mirrors the generic
// targetId relation, and the human-facing orderCode mirrors the indexed
// stringCode slot.
package orders

import (
	"context"
	"time"

	"tenantcore-backend/internal/cache"
	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/repository"
	"tenantcore-backend/internal/store"

	"go.uber.org/zap"
)

// FeatureEntity is the type discriminator for order records.
const FeatureEntity = "order"

// Order-specific field names.
const (
	FieldOrderCode   = "orderCode"
	FieldTotalAmount = "totalAmount"
	FieldStatus      = "status"
	FieldCurrency    = "currency"
)

// Order lifecycle statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusShipped   = "shipped"
	StatusCancelled = "cancelled"
)

// Schema describes order records to the repository layer.
func Schema() repository.Schema {
	return repository.Schema{
		FeatureEntity: FeatureEntity,
		RequiredFields: []string{
			repository.FieldTargetID,
			FieldTotalAmount,
			FieldStatus,
		},
		Aliases: []repository.FieldAlias{
			{Source: repository.FieldCustomerID, Slot: repository.FieldTargetID},
			{Source: FieldOrderCode, Slot: repository.FieldStringCode},
		},
	}
}

// cacheCategoryList is the cache category for per-customer order lists.
const cacheCategoryList = "orderList"

// Service exposes order operations over the target-scoped repository.
// When a cache repository is supplied, per-customer order lists are served
// read-through with the configured TTL.
type Service struct {
	repo     *repository.TenantTargetRepository
	cache    *cache.Repository
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewService registers the order feature entity and builds its service.
// cacheRepo may be nil to disable caching.
func NewService(registry *repository.Registry, driver store.Driver, cacheRepo *cache.Repository, cacheTTL time.Duration, logger *zap.Logger) (*Service, error) {
	repo, err := repository.NewTenantTargetRepository(registry, driver, Schema(), logger)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, cache: cacheRepo, cacheTTL: cacheTTL, logger: logger}, nil
}

// Create stores a new order for the session's tenant. Callers supply
// customerId and orderCode; the repository enforces that they mirror
// targetId and stringCode exactly.
func (s *Service) Create(ctx context.Context, order store.Record, session *repository.SessionUser) (store.Record, error) {
	if status, _ := order[FieldStatus].(string); status == "" {
		out := store.Record{}
		for k, v := range order {
			out[k] = v
		}
		out[FieldStatus] = StatusPending
		order = out
	}
	created, err := s.repo.CreateOne(ctx, order, session)
	if err != nil {
		return nil, err
	}
	s.invalidateListCache(ctx, session.TenantID, created)
	return created, nil
}

// GetByID fetches one order owned by the tenant.
func (s *Service) GetByID(ctx context.Context, id, tenantID string, fields []string) (store.Record, error) {
	return s.repo.GetOneByIDAndTenantID(ctx, id, tenantID, fields)
}

// ListForCustomer returns the customer's orders, newest first. Results are
// served from the cache when a live entry exists; cache failures fall back
// to the store.
func (s *Service) ListForCustomer(ctx context.Context, tenantID, customerID string, limit int32) ([]store.Record, error) {
	if s.cache != nil {
		if entry, err := s.cache.GetOne(ctx, s.listCacheKey(tenantID, customerID), cacheCategoryList); err == nil && entry != nil {
			if records, ok := recordsFromCache(entry.Data); ok {
				return records, nil
			}
		}
	}

	sort := &repository.SortParams{Direction: store.Descending}
	records, err := s.repo.GetWhereByTarget(ctx, tenantID, customerID, nil, nil, limit, sort)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		expireAt := time.Now().UTC().Add(s.cacheTTL)
		if err := s.cache.Create(ctx, s.listCacheKey(tenantID, customerID), cacheCategoryList, records, expireAt); err != nil {
			s.logger.Warn("cache order list", zap.String("customerId", customerID), zap.Error(err))
		}
	}
	return records, nil
}

// PageForCustomer pages through the customer's orders via opaque cursors.
func (s *Service) PageForCustomer(ctx context.Context, tenantID, customerID string, limit int32, cursor string) (store.Page, error) {
	sort := &repository.SortParams{Direction: store.Descending}
	return s.repo.GetWherePagingByTarget(ctx, tenantID, customerID, nil, nil, limit, sort, cursor)
}

// FindByOrderCode looks an order up by its human-facing code through the
// string-code index.
func (s *Service) FindByOrderCode(ctx context.Context, tenantID, orderCode string) (store.Record, error) {
	sort := &repository.SortParams{
		Dimension: repository.SortByStringCode,
		Operator:  store.SortEq,
		Value:     orderCode,
	}
	records, err := s.repo.GetWhere(ctx, tenantID, nil, nil, 1, sort)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// ListByStatus returns the tenant's orders in a given status, newest first.
func (s *Service) ListByStatus(ctx context.Context, tenantID, status string, limit int32) ([]store.Record, error) {
	qb := repository.NewQueryBuilder().FilterEq(FieldStatus, status)
	sort := &repository.SortParams{Direction: store.Descending}
	return s.repo.GetWhere(ctx, tenantID, qb, nil, limit, sort)
}

// UpdateStatus transitions an order to a new status under the edit lock.
func (s *Service) UpdateStatus(ctx context.Context, id, status string, session *repository.SessionUser) (store.Record, error) {
	switch status {
	case StatusPending, StatusConfirmed, StatusShipped, StatusCancelled:
	default:
		return nil, apperrors.Validation("ORDER_STATUS", "unknown order status %q", status).
			WithResource(FeatureEntity)
	}
	updated, err := s.repo.UpdateOne(ctx, id, store.Record{FieldStatus: status}, session, true)
	if err != nil || updated == nil {
		return updated, err
	}
	s.invalidateListCache(ctx, session.TenantID, updated)
	return updated, nil
}

// Cancel marks an order cancelled; the edit lock applies.
func (s *Service) Cancel(ctx context.Context, id string, session *repository.SessionUser) (store.Record, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled, session)
}

// Delete removes an order owned by the session's tenant. The customer's
// cached list is invalidated when the order can still be read; otherwise
// the entry ages out with its TTL.
func (s *Service) Delete(ctx context.Context, id string, session *repository.SessionUser) error {
	if s.cache != nil && session != nil {
		if rec, err := s.repo.GetOneByIDAndTenantID(ctx, id, session.TenantID, nil); err == nil && rec != nil {
			s.invalidateListCache(ctx, session.TenantID, rec)
		}
	}
	return s.repo.DeleteOne(ctx, id, session)
}

// CustomerHasOrders reports whether the customer owns any order records.
func (s *Service) CustomerHasOrders(ctx context.Context, tenantID, customerID string) (bool, error) {
	return s.repo.ExistsForTarget(ctx, tenantID, customerID)
}

// WithOrders decorates a customer record with its orders under "orders".
func (s *Service) WithOrders(ctx context.Context, tenantID string, customer store.Record, limit int32) (store.Record, error) {
	sort := &repository.SortParams{Direction: store.Descending}
	return s.repo.AttachChildren(ctx, tenantID, customer, "orders", nil, limit, sort)
}

// listCacheKey scopes cached lists to the tenant so identical customer ids
// in different tenants can never share an entry.
func (s *Service) listCacheKey(tenantID, customerID string) string {
	return tenantID + "::" + customerID
}

func (s *Service) invalidateListCache(ctx context.Context, tenantID string, order store.Record) {
	if s.cache == nil {
		return
	}
	customerID, _ := order[repository.FieldTargetID].(string)
	if customerID == "" {
		return
	}
	if err := s.cache.Delete(ctx, s.listCacheKey(tenantID, customerID), cacheCategoryList); err != nil {
		s.logger.Warn("invalidate order list cache", zap.String("customerId", customerID), zap.Error(err))
	}
}

// recordsFromCache rebuilds the record slice from a decoded cache payload.
// The codec round-trips lists as []any of map[string]any.
func recordsFromCache(data any) ([]store.Record, bool) {
	items, ok := data.([]any)
	if !ok {
		return nil, false
	}
	records := make([]store.Record, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		records = append(records, store.Record(m))
	}
	return records, true
}
