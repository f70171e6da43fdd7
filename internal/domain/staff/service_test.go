package staff

import (
	"context"
	"testing"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/repository"
	"tenantcore-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(repository.NewRegistry(zap.NewNop()), store.NewMemoryDriver(), zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestStaffCreateNormalizesEmail(t *testing.T) {
	svc := newService(t)
	session := &repository.SessionUser{UserID: "u-1", TenantID: "t-1"}

	created, err := svc.Create(context.Background(), store.Record{
		FieldEmail:       "  Jo.Smith@Example.COM ",
		FieldDisplayName: "Jo Smith",
	}, session)
	require.NoError(t, err)

	assert.Equal(t, "jo.smith@example.com", created[FieldEmail])
	assert.Equal(t, "jo.smith@example.com", created[repository.FieldSK01], "email mirrors the sk01 slot")
	assert.Equal(t, true, created[FieldActive], "members start active")
}

func TestStaffCreateRejectsBadEmail(t *testing.T) {
	svc := newService(t)
	session := &repository.SessionUser{TenantID: "t-1"}

	for _, email := range []string{"", "not-an-email", "missing@tld@twice"} {
		_, err := svc.Create(context.Background(), store.Record{
			FieldEmail:       email,
			FieldDisplayName: "X",
		}, session)
		assert.True(t, apperrors.IsValidation(err), email)
	}
}

func TestStaffCreateRejectsDuplicateEmail(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session := &repository.SessionUser{TenantID: "t-1"}

	_, err := svc.Create(ctx, store.Record{
		FieldEmail:       "a@example.com",
		FieldDisplayName: "First",
	}, session)
	require.NoError(t, err)

	_, err = svc.Create(ctx, store.Record{
		FieldEmail:       "A@EXAMPLE.com",
		FieldDisplayName: "Second",
	}, session)
	assert.True(t, apperrors.IsConflict(err), "same address after normalization")

	// The same address is free in another tenant.
	_, err = svc.Create(ctx, store.Record{
		FieldEmail:       "a@example.com",
		FieldDisplayName: "Other tenant",
	}, &repository.SessionUser{TenantID: "t-2"})
	assert.NoError(t, err)
}

func TestStaffCreateRequiresDisplayName(t *testing.T) {
	svc := newService(t)
	session := &repository.SessionUser{TenantID: "t-1"}

	_, err := svc.Create(context.Background(), store.Record{
		FieldEmail: "a@example.com",
	}, session)
	assert.True(t, apperrors.IsValidation(err))
}

func TestStaffFindByEmail(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, store.Record{
		FieldEmail:       "a@example.com",
		FieldDisplayName: "A",
	}, &repository.SessionUser{TenantID: "t-1"})
	require.NoError(t, err)

	t.Run("case-insensitive lookup", func(t *testing.T) {
		rec, err := svc.FindByEmail(ctx, "t-1", "A@Example.com")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "A", rec[FieldDisplayName])
	})

	t.Run("miss is nil", func(t *testing.T) {
		rec, err := svc.FindByEmail(ctx, "t-1", "b@example.com")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("tenant isolation", func(t *testing.T) {
		rec, err := svc.FindByEmail(ctx, "t-2", "a@example.com")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("empty email rejected", func(t *testing.T) {
		_, err := svc.FindByEmail(ctx, "t-1", "  ")
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestStaffListAndPage(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session := &repository.SessionUser{TenantID: "t-1"}

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := svc.Create(ctx, store.Record{
			FieldEmail:       email,
			FieldDisplayName: email,
		}, session)
		require.NoError(t, err)
	}

	records, err := svc.List(ctx, "t-1", 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	var total int
	cursor := ""
	for {
		page, err := svc.Page(ctx, "t-1", 2, cursor)
		require.NoError(t, err)
		total += len(page.Items)
		if page.NextPageHash == "" {
			break
		}
		cursor = page.NextPageHash
	}
	assert.Equal(t, 3, total)
}

func TestStaffUpdateKeepsEmailAliasInSync(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session := &repository.SessionUser{TenantID: "t-1"}

	created, err := svc.Create(ctx, store.Record{
		FieldEmail:       "old@example.com",
		FieldDisplayName: "A",
	}, session)
	require.NoError(t, err)
	id := created[repository.FieldID].(string)

	updated, err := svc.Update(ctx, id, store.Record{FieldEmail: "New@Example.com"}, session)
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "new@example.com", updated[FieldEmail])
	assert.Equal(t, "new@example.com", updated[repository.FieldSK01])
}

func TestStaffDeactivate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session := &repository.SessionUser{TenantID: "t-1"}

	created, err := svc.Create(ctx, store.Record{
		FieldEmail:       "a@example.com",
		FieldDisplayName: "A",
	}, session)
	require.NoError(t, err)
	id := created[repository.FieldID].(string)

	updated, err := svc.Deactivate(ctx, id, session)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, false, updated[FieldActive])
}
