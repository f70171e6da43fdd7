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

func newTenantRepo(t *testing.T, schema Schema) (*TenantRepository, *store.MemoryDriver) {
	t.Helper()
	driver := store.NewMemoryDriver()
	repo, err := NewTenantRepository(NewRegistry(zap.NewNop()), driver, schema, zap.NewNop())
	require.NoError(t, err)
	return repo, driver
}

func TestTenantCreateDerivesCompositeKey(t *testing.T) {
	repo, _ := newTenantRepo(t, Schema{FeatureEntity: "order"})
	session := &SessionUser{UserID: "u-1", TenantID: "t-1"}

	created, err := repo.CreateOne(context.Background(), store.Record{"status": "pending"}, session)
	require.NoError(t, err)

	assert.Equal(t, "t-1", created[FieldTenantID])
	assert.Equal(t, "order::t-1", created[FieldFeatureEntityTenantID])
}

func TestTenantCreateIgnoresCallerTenantFields(t *testing.T) {
	repo, _ := newTenantRepo(t, Schema{FeatureEntity: "order"})
	session := &SessionUser{UserID: "u-1", TenantID: "t-1"}

	created, err := repo.CreateOne(context.Background(), store.Record{
		FieldTenantID:              "t-evil",
		FieldFeatureEntityTenantID: "order::t-evil",
	}, session)
	require.NoError(t, err)

	assert.Equal(t, "t-1", created[FieldTenantID])
	assert.Equal(t, "order::t-1", created[FieldFeatureEntityTenantID])
}

func TestTenantCreateRequiresSession(t *testing.T) {
	repo, _ := newTenantRepo(t, Schema{FeatureEntity: "order"})

	_, err := repo.CreateOne(context.Background(), store.Record{}, nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = repo.CreateOne(context.Background(), store.Record{}, &SessionUser{UserID: "u-1"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestTenantOwnershipReadsAsNotFound(t *testing.T) {
	repo, _ := newTenantRepo(t, Schema{FeatureEntity: "order"})
	ctx := context.Background()

	created, err := repo.CreateOne(ctx, store.Record{"status": "pending"}, &SessionUser{TenantID: "t-1"})
	require.NoError(t, err)
	id := created[FieldID].(string)

	t.Run("owner sees the record", func(t *testing.T) {
		rec, err := repo.GetOneByIDAndTenantID(ctx, id, "t-1", nil)
		require.NoError(t, err)
		assert.NotNil(t, rec)
	})

	t.Run("other tenant sees nothing", func(t *testing.T) {
		rec, err := repo.GetOneByIDAndTenantID(ctx, id, "t-2", nil)
		require.NoError(t, err)
		assert.Nil(t, rec, "a tenant mismatch must read exactly like absence")
	})

	t.Run("cross-tenant update is nil", func(t *testing.T) {
		updated, err := repo.UpdateOne(ctx, id, store.Record{"status": "hijacked"}, &SessionUser{TenantID: "t-2"}, false)
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("cross-tenant delete is a no-op", func(t *testing.T) {
		require.NoError(t, repo.DeleteOne(ctx, id, &SessionUser{TenantID: "t-2"}))
		rec, err := repo.GetOneByIDAndTenantID(ctx, id, "t-1", nil)
		require.NoError(t, err)
		assert.NotNil(t, rec)
	})
}

func TestTenantQueriesStayInsideTheTenant(t *testing.T) {
	repo, _ := newTenantRepo(t, Schema{FeatureEntity: "order"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.CreateOne(ctx, store.Record{}, &SessionUser{TenantID: "t-1"})
		require.NoError(t, err)
	}
	_, err := repo.CreateOne(ctx, store.Record{}, &SessionUser{TenantID: "t-2"})
	require.NoError(t, err)

	records, err := repo.GetWhere(ctx, "t-1", nil, nil, 0, nil)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = repo.GetWhere(ctx, "t-2", nil, nil, 0, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = repo.GetWhere(ctx, "", nil, nil, 0, nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestTenantUpdateStripsTenantFields(t *testing.T) {
	repo, _ := newTenantRepo(t, Schema{FeatureEntity: "order"})
	ctx := context.Background()
	session := &SessionUser{TenantID: "t-1"}

	created, err := repo.CreateOne(ctx, store.Record{"status": "pending"}, session)
	require.NoError(t, err)
	id := created[FieldID].(string)

	updated, err := repo.UpdateOne(ctx, id, store.Record{
		"status":                   "confirmed",
		FieldTenantID:              "t-evil",
		FieldFeatureEntityTenantID: "order::t-evil",
	}, session, false)
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "confirmed", updated["status"])
	assert.Equal(t, "t-1", updated[FieldTenantID])
	assert.Equal(t, "order::t-1", updated[FieldFeatureEntityTenantID])
}

func TestTenantPaginationIsStable(t *testing.T) {
	repo, _ := newTenantRepo(t, Schema{FeatureEntity: "order"})
	ctx := context.Background()
	session := &SessionUser{TenantID: "t-1"}

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		pinTime(repo.BaseRepository, base.Add(time.Duration(i)*time.Hour))
		_, err := repo.CreateOne(ctx, store.Record{}, session)
		require.NoError(t, err)
	}

	unpaged, err := repo.GetWhere(ctx, "t-1", nil, nil, 0, nil)
	require.NoError(t, err)
	require.Len(t, unpaged, 7)

	var paged []store.Record
	cursor := ""
	for {
		page, err := repo.GetWherePaging(ctx, "t-1", nil, nil, 3, nil, cursor)
		require.NoError(t, err)
		paged = append(paged, page.Items...)
		if page.NextPageHash == "" {
			break
		}
		cursor = page.NextPageHash
	}

	require.Len(t, paged, 7)
	for i := range unpaged {
		assert.Equal(t, unpaged[i][FieldID], paged[i][FieldID])
	}
}

func TestValidateEditLock(t *testing.T) {
	createdAt := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

	t.Run("admin bypasses the lock entirely", func(t *testing.T) {
		now := createdAt.Add(48 * time.Hour)
		err := ValidateEditLock(createdAt, now, &SessionUser{IsAdmin: true, DataEditLockMinutes: 30})
		assert.NoError(t, err)
	})

	t.Run("no window configured means no lock", func(t *testing.T) {
		now := createdAt.Add(48 * time.Hour)
		err := ValidateEditLock(createdAt, now, &SessionUser{DataEditLockMinutes: 0})
		assert.NoError(t, err)
	})

	t.Run("inside the window on the same day passes", func(t *testing.T) {
		now := createdAt.Add(10 * time.Minute)
		err := ValidateEditLock(createdAt, now, &SessionUser{DataEditLockMinutes: 30})
		assert.NoError(t, err)
	})

	t.Run("outside the window fails", func(t *testing.T) {
		now := createdAt.Add(31 * time.Minute)
		err := ValidateEditLock(createdAt, now, &SessionUser{DataEditLockMinutes: 30})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("inside the window across midnight still fails", func(t *testing.T) {
		lateCreate := time.Date(2026, 8, 15, 23, 50, 0, 0, time.UTC)
		now := time.Date(2026, 8, 16, 0, 5, 0, 0, time.UTC)
		err := ValidateEditLock(lateCreate, now, &SessionUser{DataEditLockMinutes: 30})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestTenantUpdateEnforcesEditLock(t *testing.T) {
	repo, _ := newTenantRepo(t, Schema{FeatureEntity: "order"})
	ctx := context.Background()

	createdAt := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	pinTime(repo.BaseRepository, createdAt)

	session := &SessionUser{UserID: "u-1", TenantID: "t-1", DataEditLockMinutes: 30}
	created, err := repo.CreateOne(ctx, store.Record{"status": "pending"}, session)
	require.NoError(t, err)
	id := created[FieldID].(string)

	t.Run("within the window", func(t *testing.T) {
		pinTime(repo.BaseRepository, createdAt.Add(5*time.Minute))
		updated, err := repo.UpdateOne(ctx, id, store.Record{"status": "confirmed"}, session, true)
		require.NoError(t, err)
		assert.NotNil(t, updated)
	})

	t.Run("after the window", func(t *testing.T) {
		pinTime(repo.BaseRepository, createdAt.Add(2*time.Hour))
		_, err := repo.UpdateOne(ctx, id, store.Record{"status": "late"}, session, true)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("admin after the window", func(t *testing.T) {
		pinTime(repo.BaseRepository, createdAt.Add(2*time.Hour))
		admin := &SessionUser{UserID: "u-admin", TenantID: "t-1", IsAdmin: true, DataEditLockMinutes: 30}
		updated, err := repo.UpdateOne(ctx, id, store.Record{"status": "corrected"}, admin, true)
		require.NoError(t, err)
		assert.NotNil(t, updated)
	})

	t.Run("lock skipped when not requested", func(t *testing.T) {
		pinTime(repo.BaseRepository, createdAt.Add(2*time.Hour))
		updated, err := repo.UpdateOne(ctx, id, store.Record{"status": "forced"}, session, false)
		require.NoError(t, err)
		assert.NotNil(t, updated)
	})

	t.Run("missing record under lock is nil not error", func(t *testing.T) {
		updated, err := repo.UpdateOne(ctx, "missing", store.Record{"status": "x"}, session, true)
		require.NoError(t, err)
		assert.Nil(t, updated)
	})
}

func TestTenantUpdateCannotMoveTheLockClock(t *testing.T) {
	repo, _ := newTenantRepo(t, Schema{FeatureEntity: "order"})
	ctx := context.Background()

	createdAt := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	pinTime(repo.BaseRepository, createdAt)

	session := &SessionUser{UserID: "u-1", TenantID: "t-1", DataEditLockMinutes: 30}
	created, err := repo.CreateOne(ctx, store.Record{"status": "pending"}, session)
	require.NoError(t, err)
	id := created[FieldID].(string)

	// An in-window update carrying a forged creation timestamp must not
	// push the record's creation clock forward.
	pinTime(repo.BaseRepository, createdAt.Add(5*time.Minute))
	updated, err := repo.UpdateOne(ctx, id, store.Record{
		"status":           "confirmed",
		FieldCreatedAtDate: "2026-08-15T12:00:00Z",
		FieldCreatorUserID: "u-forged",
	}, session, true)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "2026-08-15T10:00:00Z", updated[FieldCreatedAtDate])

	pinTime(repo.BaseRepository, createdAt.Add(2*time.Hour+5*time.Minute))
	_, err = repo.UpdateOne(ctx, id, store.Record{"status": "late-edit"}, session, true)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}
