package cache

import (
	"context"
	"fmt"
	"time"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/store"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// Field names of a cache row. dangerouslyExpireAt is a plain, directly
// editable ISO string kept only for the store's own janitor/TTL; validity
// is decided exclusively by dateControlEnc.
const (
	fieldID             = "id"
	fieldTargetID       = "targetId"
	fieldCategory       = "category"
	fieldDataEncoded    = "dataEncoded"
	fieldExpireAt       = "dangerouslyExpireAt"
	fieldDateControlEnc = "dateControlEnc"
)

// Entry is one decoded, validated cache hit.
type Entry struct {
	TargetID string
	Category string
	Data     any
	ExpireAt time.Time
}

// Repository stores encoded, expiring entries keyed by (target, category).
// At most one live entry exists per key: Create supersedes rather than
// merges.
type Repository struct {
	driver store.Driver
	logger *zap.Logger

	nowFn func() time.Time
}

// NewRepository builds a cache repository over its own driver handle.
func NewRepository(driver store.Driver, logger *zap.Logger) *Repository {
	return &Repository{
		driver: driver,
		logger: logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// Create encodes and stores an entry, deleting any existing row for the
// same (target, category) first. Last writer wins.
func (r *Repository) Create(ctx context.Context, targetID, category string, data any, expireAt time.Time) error {
	if targetID == "" || category == "" {
		return apperrors.Validation("CACHE_KEY", "target id and category must not be empty")
	}

	encoded, err := Encode(data)
	if err != nil {
		return apperrors.Validation("CACHE_ENCODE", "payload is not encodable: %v", err)
	}
	controlEnc, err := EncodeExpiry(expireAt)
	if err != nil {
		return apperrors.Validation("CACHE_ENCODE", "expiry is not encodable: %v", err)
	}

	id := rowID(targetID, category)
	if err := r.driver.DeleteByID(ctx, id); err != nil {
		return err
	}
	_, err = r.driver.CreateOne(ctx, store.Record{
		fieldID:             id,
		fieldTargetID:       targetID,
		fieldCategory:       category,
		fieldDataEncoded:    encoded,
		fieldExpireAt:       expireAt.UTC().Format(time.RFC3339),
		fieldDateControlEnc: controlEnc,
	})
	return err
}

// GetOne returns the live entry for a key, or nil. Rows that fail the
// target check, the expiry gate, or decoding are treated as absent.
func (r *Repository) GetOne(ctx context.Context, targetID, category string) (*Entry, error) {
	rec, err := r.driver.GetOneByID(ctx, rowID(targetID, category), store.Eq(fieldTargetID, targetID))
	if err != nil {
		return nil, err
	}
	return r.decodeRow(rec, map[string]bool{targetID: true}, category), nil
}

// GetMany returns the live entries for several targets in one category.
// Rows whose target id is outside the requested set are dropped even if
// the underlying read returns them.
func (r *Repository) GetMany(ctx context.Context, targetIDs []string, category string) ([]Entry, error) {
	if len(targetIDs) == 0 {
		return []Entry{}, nil
	}

	wanted := make(map[string]bool, len(targetIDs))
	ids := make([]string, 0, len(targetIDs))
	for _, targetID := range targetIDs {
		if targetID == "" || wanted[targetID] {
			continue
		}
		wanted[targetID] = true
		ids = append(ids, rowID(targetID, category))
	}

	records, err := r.driver.GetManyByIDs(ctx, ids, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		if entry := r.decodeRow(rec, wanted, category); entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

// Delete removes the entry for a key, if any.
func (r *Repository) Delete(ctx context.Context, targetID, category string) error {
	return r.driver.DeleteByID(ctx, rowID(targetID, category))
}

// decodeRow validates and decodes one stored row, returning nil for
// anything that should count as a miss.
func (r *Repository) decodeRow(rec store.Record, wanted map[string]bool, category string) *Entry {
	if rec == nil {
		return nil
	}
	targetID, _ := rec[fieldTargetID].(string)
	rowCategory, _ := rec[fieldCategory].(string)
	if !wanted[targetID] || rowCategory != category {
		return nil
	}

	controlEnc, _ := rec[fieldDateControlEnc].(string)
	if !IsExpiryValid(controlEnc, r.nowFn()) {
		return nil
	}

	encoded, _ := rec[fieldDataEncoded].(string)
	var data any
	if !Decode(encoded, &data) {
		r.logger.Warn("undecodable cache row treated as miss",
			zap.String("targetId", targetID), zap.String("category", category))
		return nil
	}

	var expireAt time.Time
	var stamp string
	if Decode(controlEnc, &stamp) {
		expireAt, _ = time.Parse(time.RFC3339, stamp)
	}
	return &Entry{TargetID: targetID, Category: category, Data: data, ExpireAt: expireAt}
}

// rowID derives the deterministic storage id for a (target, category)
// pair, giving Create its delete-then-insert supersede semantics.
func rowID(targetID, category string) string {
	return fmt.Sprintf("cache-%016x", xxhash.Sum64String(targetID+"::"+category))
}
