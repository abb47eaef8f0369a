package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/store/memory"
)

func TestAccountService(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewAccountService(st, quietLogger())

	created, err := svc.CreateAccount(ctx, 1, core.AccountDraft{Name: "  Caja  ", Type: core.Checking, Balance: core.MustParseMoney("50")})
	require.NoError(t, err)
	assert.Equal(t, "Caja", created.Name)
	assert.Equal(t, int64(1), created.UserID)

	_, err = svc.CreateAccount(ctx, 1, core.AccountDraft{Name: "Bad", Type: "stocks"})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = svc.GetAccount(ctx, 2, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := svc.ListAccounts(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, list)

	updated, err := svc.UpdateAccount(ctx, 1, created.ID, core.AccountPatch{Balance: core.Some(core.MustParseMoney("75.25"))})
	require.NoError(t, err)
	assert.Equal(t, "75.25", updated.Balance.String())

	_, err = svc.UpdateAccount(ctx, 1, created.ID, core.AccountPatch{Name: core.Some(" ")})
	require.ErrorAs(t, err, &ve)

	ok, err := svc.DeleteAccount(ctx, 2, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.DeleteAccount(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCategoryService(t *testing.T) {
	ctx := context.Background()
	svc := NewCategoryService(memory.New())

	c, err := svc.CreateCategory(ctx, core.CategoryDraft{Name: "Ventas", Color: "#22c55e", Type: core.Income})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, core.CategoryDraft{Name: "", Type: core.Income})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	updated, err := svc.UpdateCategory(ctx, c.ID, core.CategoryPatch{Name: core.Some("Ventas online")})
	require.NoError(t, err)
	assert.Equal(t, "Ventas online", updated.Name)

	_, err = svc.UpdateCategory(ctx, 999, core.CategoryPatch{Name: core.Some("x")})
	assert.ErrorIs(t, err, core.ErrNotFound)

	ok, err := svc.DeleteCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
