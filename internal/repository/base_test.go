package repository

import (
	"context"
	"testing"
	"time"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBase(t *testing.T, schema Schema) (*BaseRepository, *store.MemoryDriver) {
	t.Helper()
	driver := store.NewMemoryDriver()
	repo, err := NewBaseRepository(NewRegistry(zap.NewNop()), driver, schema, zap.NewNop())
	require.NoError(t, err)
	return repo, driver
}

func pinTime(repo *BaseRepository, at time.Time) {
	repo.nowFn = func() time.Time { return at }
}

func TestCreateOneStampsSystemFields(t *testing.T) {
	repo, _ := newBase(t, Schema{FeatureEntity: "order"})
	pinTime(repo, time.Date(2026, 8, 15, 14, 30, 0, 0, time.UTC))
	session := &SessionUser{UserID: "u-1", TenantID: "t-1"}

	created, err := repo.CreateOne(context.Background(), store.Record{"totalAmount": 99.5}, session)
	require.NoError(t, err)

	assert.NotEmpty(t, created[FieldID])
	assert.Equal(t, "order", created[FieldFeatureEntity])
	assert.Equal(t, "2026-08-15T14:30:00Z", created[FieldCreatedAtDate])
	assert.Equal(t, "2026-08-15", created[FieldCreatedAtDayStamp])
	assert.Equal(t, "2026-08-15", created[FieldRecordDate], "recordDate defaults to the creation day")
	assert.Equal(t, "u-1", created[FieldCreatorUserID])
}

func TestCreateOnePreservesCallerValues(t *testing.T) {
	repo, _ := newBase(t, Schema{FeatureEntity: "order"})
	pinTime(repo, time.Date(2026, 8, 15, 14, 30, 0, 0, time.UTC))

	created, err := repo.CreateOne(context.Background(), store.Record{
		FieldID:         "explicit-id",
		FieldRecordDate: "2026-01-01",
		FieldTags:       "  Rush SHIPPING  ",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "explicit-id", created[FieldID])
	assert.Equal(t, "2026-01-01", created[FieldRecordDate])
	assert.Equal(t, "rush shipping", created[FieldTags], "tags are trimmed and lower-cased")
}

func TestCreateOneRequiredFields(t *testing.T) {
	repo, driver := newBase(t, Schema{
		FeatureEntity:  "order",
		RequiredFields: []string{"totalAmount"},
	})

	_, err := repo.CreateOne(context.Background(), store.Record{"status": "pending"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 0, driver.Len(), "validation failures must not reach the store")
}

func TestAliasValidation(t *testing.T) {
	schema := Schema{
		FeatureEntity: "order",
		Aliases: []FieldAlias{
			{Source: FieldCustomerID, Slot: FieldTargetID},
		},
	}

	t.Run("equal pair accepted", func(t *testing.T) {
		repo, _ := newBase(t, schema)
		created, err := repo.CreateOne(context.Background(), store.Record{
			FieldCustomerID: "c-1",
			FieldTargetID:   "c-1",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "c-1", created[FieldTargetID])
	})

	t.Run("unequal pair rejected before any write", func(t *testing.T) {
		repo, driver := newBase(t, schema)
		_, err := repo.CreateOne(context.Background(), store.Record{
			FieldCustomerID: "c-1",
			FieldTargetID:   "c-2",
		}, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, 0, driver.Len())
	})

	t.Run("one-sided pair rejected, never back-filled", func(t *testing.T) {
		repo, driver := newBase(t, schema)
		_, err := repo.CreateOne(context.Background(), store.Record{
			FieldCustomerID: "c-1",
		}, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, 0, driver.Len())
	})

	t.Run("absent pair is fine", func(t *testing.T) {
		repo, _ := newBase(t, schema)
		_, err := repo.CreateOne(context.Background(), store.Record{"status": "pending"}, nil)
		assert.NoError(t, err)
	})

	t.Run("update re-validates the pair", func(t *testing.T) {
		repo, _ := newBase(t, schema)
		created, err := repo.CreateOne(context.Background(), store.Record{
			FieldCustomerID: "c-1",
			FieldTargetID:   "c-1",
		}, nil)
		require.NoError(t, err)

		_, err = repo.UpdateOne(context.Background(), created[FieldID].(string), store.Record{
			FieldCustomerID: "c-other",
		}, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestUpdateOneStampsModification(t *testing.T) {
	repo, _ := newBase(t, Schema{FeatureEntity: "order"})
	pinTime(repo, time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC))

	created, err := repo.CreateOne(context.Background(), store.Record{"status": "pending", FieldTenantID: "t-1"},
		&SessionUser{UserID: "u-1", TenantID: "t-1"})
	require.NoError(t, err)

	pinTime(repo, time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC))
	updated, err := repo.UpdateOne(context.Background(), created[FieldID].(string), store.Record{"status": "confirmed"},
		&SessionUser{UserID: "u-2", TenantID: "t-1"})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "confirmed", updated["status"])
	assert.Equal(t, "2026-08-15T10:00:00Z", updated[FieldLastModifiedDate])
	assert.Equal(t, "u-2", updated[FieldLastModifierUserID])
	assert.Equal(t, "u-1", updated[FieldCreatorUserID], "creator stamp survives updates")
}

func TestUpdateOneStripsCreationStamps(t *testing.T) {
	repo, _ := newBase(t, Schema{FeatureEntity: "order"})
	pinTime(repo, time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC))

	created, err := repo.CreateOne(context.Background(), store.Record{"status": "pending", FieldTenantID: "t-1"},
		&SessionUser{UserID: "u-1", TenantID: "t-1"})
	require.NoError(t, err)

	pinTime(repo, time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC))
	updated, err := repo.UpdateOne(context.Background(), created[FieldID].(string), store.Record{
		"status":                "confirmed",
		FieldCreatedAtDate:     "2026-08-15T12:00:00Z",
		FieldCreatedAtDayStamp: "2026-08-16",
		FieldFeatureEntity:     "invoice",
		FieldCreatorUserID:     "u-99",
	}, &SessionUser{UserID: "u-2", TenantID: "t-1"})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "confirmed", updated["status"])
	assert.Equal(t, "2026-08-15T09:00:00Z", updated[FieldCreatedAtDate], "creation timestamp is immutable")
	assert.Equal(t, "2026-08-15", updated[FieldCreatedAtDayStamp])
	assert.Equal(t, "order", updated[FieldFeatureEntity])
	assert.Equal(t, "u-1", updated[FieldCreatorUserID])
}

func TestUpdateOneMissingRecordIsNil(t *testing.T) {
	repo, _ := newBase(t, Schema{FeatureEntity: "order"})
	updated, err := repo.UpdateOne(context.Background(), "missing", store.Record{"status": "x"}, nil)
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestGetWhereRoutesByDimension(t *testing.T) {
	repo, _ := newBase(t, Schema{FeatureEntity: "order"})
	ctx := context.Background()

	pinTime(repo, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	_, err := repo.CreateOne(ctx, store.Record{FieldRecordDate: "2026-07-15"}, nil)
	require.NoError(t, err)
	pinTime(repo, time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC))
	_, err = repo.CreateOne(ctx, store.Record{FieldRecordDate: "2026-07-01"}, nil)
	require.NoError(t, err)

	t.Run("default dimension orders by creation", func(t *testing.T) {
		records, err := repo.GetWhere(ctx, nil, nil, 0, &SortParams{Direction: store.Descending})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "2026-08-02T10:00:00Z", records[0][FieldCreatedAtDate])
	})

	t.Run("record-date dimension orders by business date", func(t *testing.T) {
		records, err := repo.GetWhere(ctx, nil, nil, 0, &SortParams{
			Dimension: SortByRecordDate,
			Direction: store.Ascending,
		})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "2026-07-01", records[0][FieldRecordDate])
	})
}

func TestBatchGetManyByIDs(t *testing.T) {
	repo, _ := newBase(t, Schema{FeatureEntity: "order"})
	ctx := context.Background()

	a, err := repo.CreateOne(ctx, store.Record{"status": "pending"}, nil)
	require.NoError(t, err)
	b, err := repo.CreateOne(ctx, store.Record{"status": "confirmed"}, nil)
	require.NoError(t, err)
	idA := a[FieldID].(string)
	idB := b[FieldID].(string)

	t.Run("empty input", func(t *testing.T) {
		records, err := repo.BatchGetManyByIDs(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("duplicates and blanks collapse", func(t *testing.T) {
		records, err := repo.BatchGetManyByIDs(ctx, []string{idA, "", idA, idB, idB}, nil)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("single id takes the one-item path with projection", func(t *testing.T) {
		records, err := repo.BatchGetManyByIDs(ctx, []string{idA, idA}, []string{"status"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "pending", records[0]["status"])
		assert.NotContains(t, records[0], FieldCreatedAtDate)
	})

	t.Run("missing ids are skipped, not errors", func(t *testing.T) {
		records, err := repo.BatchGetManyByIDs(ctx, []string{idA, "missing"}, nil)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestFormatForDump(t *testing.T) {
	repo, driver := newBase(t, Schema{
		FeatureEntity:  "order",
		RequiredFields: []string{"totalAmount"},
	})
	pinTime(repo, time.Date(2026, 8, 15, 14, 30, 0, 0, time.UTC))

	rows, err := repo.FormatForDump([]store.Record{
		{"totalAmount": 10.0},
		{"totalAmount": 20.0},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.NotEmpty(t, row[FieldID])
		assert.Equal(t, "order", row[FieldFeatureEntity])
	}
	assert.Equal(t, 0, driver.Len(), "formatting performs no I/O")

	_, err = repo.FormatForDump([]store.Record{{"totalAmount": 10.0}, {}})
	assert.True(t, apperrors.IsValidation(err))
}
