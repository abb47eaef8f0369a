// Package storetest holds the behavioural suite every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Suite runs the store contract against a fresh, empty store per test.
type Suite struct {
	suite.Suite
	// NewStore returns an empty store. It is called before every test.
	NewStore func() (store.Store, error)

	ctx   context.Context
	store store.Store
	owner core.User
}

func (s *Suite) SetupTest() {
	st, err := s.NewStore()
	require.NoError(s.T(), err, "failed to create test store")
	s.store = st
	s.ctx = context.Background()

	s.owner, err = s.store.CreateUser(s.ctx, core.User{
		Username: "owner", Email: "owner@example.com", PasswordHash: "x", FullName: "Owner", Role: core.RoleEmployee,
	})
	require.NoError(s.T(), err)
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *Suite) account(balance string) core.Account {
	a, err := s.store.CreateAccount(s.ctx, core.Account{
		Name: "Caja", Type: core.Checking, Balance: core.MustParseMoney(balance), UserID: s.owner.ID,
	})
	s.Require().NoError(err)
	return a
}

func (s *Suite) transaction(date core.Date, amount string) core.Transaction {
	t, err := s.store.CreateTransaction(s.ctx, core.Transaction{
		Type: core.Expense, Amount: core.MustParseMoney(amount), Description: "d", UserID: s.owner.ID, TransactionDate: date,
	})
	s.Require().NoError(err)
	return t
}

func (s *Suite) TestUserLookups() {
	got, err := s.store.GetUserByUsername(s.ctx, "owner")
	s.Require().NoError(err)
	s.Equal(s.owner.ID, got.ID)
	s.Equal("x", got.PasswordHash)

	got, err = s.store.GetUserByEmail(s.ctx, "owner@example.com")
	s.Require().NoError(err)
	s.Equal(s.owner.ID, got.ID)

	_, err = s.store.GetUserByUsername(s.ctx, "ghost")
	s.ErrorIs(err, store.ErrNotFound)

	_, err = s.store.GetUser(s.ctx, 9999)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestUserUniqueness() {
	_, err := s.store.CreateUser(s.ctx, core.User{
		Username: "owner", Email: "other@example.com", PasswordHash: "x", FullName: "Dup", Role: core.RoleEmployee,
	})
	s.ErrorIs(err, core.ErrConflict)

	_, err = s.store.CreateUser(s.ctx, core.User{
		Username: "other", Email: "owner@example.com", PasswordHash: "x", FullName: "Dup", Role: core.RoleEmployee,
	})
	s.ErrorIs(err, core.ErrConflict)
}

func (s *Suite) TestUpdateAndDeleteUser() {
	bot := "bot-42"
	u, err := s.store.UpdateUser(s.ctx, s.owner.ID, core.UserPatch{
		FullName: core.Some("Renamed"),
		BotID:    core.Some(&bot),
	})
	s.Require().NoError(err)
	s.Equal("Renamed", u.FullName)
	s.Require().NotNil(u.BotID)
	s.Equal("bot-42", *u.BotID)

	_, err = s.store.UpdateUser(s.ctx, 9999, core.UserPatch{FullName: core.Some("x")})
	s.ErrorIs(err, store.ErrNotFound)

	users, err := s.store.ListUsers(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 1)

	ok, err := s.store.DeleteUser(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.DeleteUser(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *Suite) TestCategoryCRUD() {
	c, err := s.store.CreateCategory(s.ctx, core.Category{Name: "Food", Color: "#fff", Type: core.Expense})
	s.Require().NoError(err)
	s.NotZero(c.ID)
	s.False(c.CreatedAt.IsZero())

	c, err = s.store.UpdateCategory(s.ctx, c.ID, core.CategoryPatch{Name: core.Some("Comida")})
	s.Require().NoError(err)
	s.Equal("Comida", c.Name)
	s.Equal("#fff", c.Color)

	got, err := s.store.GetCategory(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("Comida", got.Name)

	ok, err := s.store.DeleteCategory(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(ok)

	_, err = s.store.GetCategory(s.ctx, c.ID)
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.store.UpdateCategory(s.ctx, c.ID, core.CategoryPatch{Name: core.Some("x")})
	s.ErrorIs(err, store.ErrNotFound)

	ok, err = s.store.DeleteCategory(s.ctx, c.ID)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *Suite) TestAccountsByOwner() {
	other, err := s.store.CreateUser(s.ctx, core.User{
		Username: "other", Email: "other@example.com", PasswordHash: "x", FullName: "Other", Role: core.RoleEmployee,
	})
	s.Require().NoError(err)

	mine := s.account("10.00")
	_, err = s.store.CreateAccount(s.ctx, core.Account{Name: "Theirs", Type: core.Savings, UserID: other.ID})
	s.Require().NoError(err)

	list, err := s.store.ListAccountsByUser(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(mine.ID, list[0].ID)
	s.Equal("10.00", list[0].Balance.String())

	all, err := s.store.ListAccounts(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *Suite) TestAdjustBalanceIsIncremental() {
	a := s.account("100.00")

	for _, delta := range []string{"-30.00", "20.00", "0.10", "0.20"} {
		_, err := s.store.AdjustBalance(s.ctx, a.ID, core.MustParseMoney(delta))
		s.Require().NoError(err)
	}
	got, err := s.store.GetAccount(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("90.30", got.Balance.String())

	_, err = s.store.AdjustBalance(s.ctx, 9999, core.MoneyFromCents(1))
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestUpdateAccountBalanceDirectly() {
	a := s.account("1.00")
	a, err := s.store.UpdateAccount(s.ctx, a.ID, core.AccountPatch{
		Balance:  core.Some(core.MustParseMoney("-12.5")),
		BankName: core.Some("Banco"),
	})
	s.Require().NoError(err)
	s.Equal("-12.50", a.Balance.String())
	s.Equal("Banco", a.BankName)
	s.Equal("Caja", a.Name)
}

func (s *Suite) TestTransactionRoundTrip() {
	a := s.account("0")
	cat, err := s.store.CreateCategory(s.ctx, core.Category{Name: "Food", Type: core.Expense})
	s.Require().NoError(err)

	created, err := s.store.CreateTransaction(s.ctx, core.Transaction{
		Type:            core.Income,
		Amount:          core.MustParseMoney("1234.56"),
		Description:     "Factura 12",
		ThirdParty:      "Cliente SA",
		CategoryID:      core.Ref(cat.ID),
		AccountID:       core.Ref(a.ID),
		PaymentMethod:   "transfer",
		Notes:           "n",
		UserID:          s.owner.ID,
		TransactionDate: core.NewDate(2025, 2, 28),
	})
	s.Require().NoError(err)

	got, err := s.store.GetTransaction(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("1234.56", got.Amount.String())
	s.Equal("2025-02-28", got.TransactionDate.String())
	s.Equal(12, got.TransactionDate.Hour())
	s.Require().NotNil(got.CategoryID)
	s.Equal(cat.ID, *got.CategoryID)
	s.Require().NotNil(got.AccountID)
	s.Equal(a.ID, *got.AccountID)
	s.Equal("Cliente SA", got.ThirdParty)
	s.Equal(core.Income, got.Type)
	s.Nil(got.PostedAccountID, "nothing posted yet")

	posted, err := s.store.UpdateTransaction(s.ctx, created.ID, core.TransactionPatch{
		PostedAccountID: core.Some(core.Ref(a.ID)),
	})
	s.Require().NoError(err)
	s.Require().NotNil(posted.PostedAccountID)
	s.Equal(a.ID, *posted.PostedAccountID)
	got, err = s.store.GetTransaction(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.PostedAccountID)
	s.Equal(a.ID, *got.PostedAccountID)

	updated, err := s.store.UpdateTransaction(s.ctx, created.ID, core.TransactionPatch{
		CategoryID: core.Some[*int64](nil),
		Amount:     core.Some(core.MustParseMoney("1")),
	})
	s.Require().NoError(err)
	s.Nil(updated.CategoryID)
	s.Equal("1.00", updated.Amount.String())
	s.Equal("Factura 12", updated.Description)
	s.NotNil(updated.PostedAccountID, "untouched by an unrelated patch")

	unposted, err := s.store.UpdateTransaction(s.ctx, created.ID, core.TransactionPatch{
		PostedAccountID: core.Some[*int64](nil),
	})
	s.Require().NoError(err)
	s.Nil(unposted.PostedAccountID)

	ok, err := s.store.DeleteTransaction(s.ctx, created.ID)
	s.Require().NoError(err)
	s.True(ok)
	_, err = s.store.UpdateTransaction(s.ctx, created.ID, core.TransactionPatch{})
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestTransactionsByDateRangeInclusive() {
	s.transaction(core.NewDate(2025, 1, 31), "1")
	first := s.transaction(core.NewDate(2025, 2, 1), "2")
	last := s.transaction(core.NewDate(2025, 2, 28), "3")
	s.transaction(core.NewDate(2025, 3, 1), "4")

	got, err := s.store.ListTransactionsByDateRange(s.ctx, s.owner.ID, core.NewDate(2025, 2, 1), core.NewDate(2025, 2, 28))
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(last.ID, got[0].ID, "newest business date first")
	s.Equal(first.ID, got[1].ID)

	none, err := s.store.ListTransactionsByDateRange(s.ctx, s.owner.ID+100, core.NewDate(2025, 1, 1), core.NewDate(2025, 12, 31))
	s.Require().NoError(err)
	s.Empty(none)

	all, err := s.store.ListTransactionsByUser(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.Len(all, 4)
}

func (s *Suite) TestBotConfig() {
	_, err := s.store.GetActiveBotConfig(s.ctx)
	s.ErrorIs(err, store.ErrNotFound)

	b, err := s.store.CreateBotConfig(s.ctx, core.BotConfig{BotToken: "123:abc", IsActive: false})
	s.Require().NoError(err)
	_, err = s.store.GetActiveBotConfig(s.ctx)
	s.ErrorIs(err, store.ErrNotFound)

	_, err = s.store.UpdateBotConfig(s.ctx, b.ID, core.BotConfigPatch{IsActive: core.Some(true)})
	s.Require().NoError(err)
	active, err := s.store.GetActiveBotConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal("123:abc", active.BotToken)

	list, err := s.store.ListBotConfigs(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)

	ok, err := s.store.DeleteBotConfig(s.ctx, b.ID)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *Suite) TestSessions() {
	now := time.Now().UTC().Truncate(time.Second)
	s.Require().NoError(s.store.CreateSession(s.ctx, "live", s.owner.ID, now.Add(time.Hour)))
	s.Require().NoError(s.store.CreateSession(s.ctx, "stale", s.owner.ID, now.Add(-time.Hour)))

	sess, err := s.store.GetSession(s.ctx, "live")
	s.Require().NoError(err)
	s.Equal(s.owner.ID, sess.UserID)
	s.WithinDuration(now.Add(time.Hour), sess.ExpiresAt, time.Second)

	s.Require().NoError(s.store.RenewSession(s.ctx, "live", now.Add(2*time.Hour)))
	sess, err = s.store.GetSession(s.ctx, "live")
	s.Require().NoError(err)
	s.WithinDuration(now.Add(2*time.Hour), sess.ExpiresAt, time.Second)

	n, err := s.store.DeleteExpiredSessions(s.ctx, now)
	s.Require().NoError(err)
	s.EqualValues(1, n)
	_, err = s.store.GetSession(s.ctx, "stale")
	s.ErrorIs(err, store.ErrNotFound)

	s.Require().NoError(s.store.DeleteSession(s.ctx, "live"))
	_, err = s.store.GetSession(s.ctx, "live")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestAtomicRollsBack() {
	a := s.account("50.00")
	boom := errors.New("boom")

	err := s.store.Atomic(s.ctx, func(tx store.Store) error {
		if _, err := tx.AdjustBalance(s.ctx, a.ID, core.MustParseMoney("-20")); err != nil {
			return err
		}
		if _, err := tx.CreateTransaction(s.ctx, core.Transaction{
			Type: core.Expense, Amount: core.MustParseMoney("20"), Description: "x",
			AccountID: core.Ref(a.ID), UserID: s.owner.ID, TransactionDate: core.NewDate(2025, 1, 1),
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.GetAccount(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("50.00", got.Balance.String())
	txs, err := s.store.ListTransactions(s.ctx)
	s.Require().NoError(err)
	s.Empty(txs)
}

func (s *Suite) TestAtomicCommits() {
	a := s.account("50.00")
	err := s.store.Atomic(s.ctx, func(tx store.Store) error {
		_, err := tx.AdjustBalance(s.ctx, a.ID, core.MustParseMoney("25"))
		return err
	})
	s.Require().NoError(err)

	got, err := s.store.GetAccount(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("75.00", got.Balance.String())
}

func (s *Suite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
