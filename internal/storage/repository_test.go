package storage

import (
	"context"
	"math"
	"sync"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/store"
	"fintrack/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestSQLiteStoreContract(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func() (store.Store, error) { return NewSQLiteRepository(":memory:") },
	})
}

func TestRebind(t *testing.T) {
	q := "UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?"
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, "UPDATE accounts SET balance_cents = balance_cents + $1 WHERE id = $2", Postgres.rebind(q))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, RunMigrations(repo.db, SQLite, ":memory:"))
}

func TestConcurrentAdjustBalanceLosesNothing(t *testing.T) {
	repo, err := NewSQLiteRepository(t.TempDir() + "/fintrack.db")
	require.NoError(t, err)
	defer repo.Close()
	ctx := context.Background()

	a, err := repo.CreateAccount(ctx, core.Account{Name: "Caja", Type: core.Checking, UserID: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AdjustBalance(ctx, a.ID, core.MustParseMoney("1.25"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", got.Balance.String())
}

func TestStorageErrorOnClosedDatabase(t *testing.T) {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = repo.ListAccounts(context.Background())
	var se *core.StorageError
	assert.ErrorAs(t, err, &se)
}

func TestCentsOverflowIsRejected(t *testing.T) {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	defer repo.Close()
	ctx := context.Background()

	huge := core.MoneyFromCents(math.MaxInt64).Add(core.MoneyFromCents(1))

	_, err = repo.CreateAccount(ctx, core.Account{Name: "Caja", Type: core.Checking, Balance: huge, UserID: 1})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "balance")

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	a, err := repo.CreateAccount(ctx, core.Account{Name: "Caja", Type: core.Checking, UserID: 1})
	require.NoError(t, err)
	_, err = repo.AdjustBalance(ctx, a.ID, huge.Neg().Sub(core.MoneyFromCents(1)))
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "amount")

	_, err = repo.CreateTransaction(ctx, core.Transaction{
		Type: core.Expense, Amount: huge, Description: "d", UserID: 1, TransactionDate: core.NewDate(2025, 1, 1),
	})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "amount")

	got, err := repo.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", got.Balance.String())
}
