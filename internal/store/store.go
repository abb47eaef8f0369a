// Package store defines the persistence contract shared by the relational
// and in-memory backends.
//
// Get and update methods return core.ErrNotFound for missing rows. Delete
// methods report whether a row was removed and never fail on a missing id.
// Backend faults surface as *core.StorageError and unique violations as
// core.ErrConflict.
package store

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// ErrNotFound is re-exported so callers of the store need not import core
// just to test for it.
var ErrNotFound = core.ErrNotFound

type UserStore interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	UpdateUser(ctx context.Context, id int64, p core.UserPatch) (core.User, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

type CategoryStore interface {
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) (bool, error)
}

type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	ListAccountsByUser(ctx context.Context, userID int64) ([]core.Account, error)
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	UpdateAccount(ctx context.Context, id int64, p core.AccountPatch) (core.Account, error)
	DeleteAccount(ctx context.Context, id int64) (bool, error)
	// AdjustBalance adds delta to the stored balance in a single step and
	// returns the updated account.
	AdjustBalance(ctx context.Context, id int64, delta core.Money) (core.Account, error)
}

type TransactionStore interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID int64) ([]core.Transaction, error)
	// ListTransactionsByDateRange returns the owner's transactions whose
	// business date lies in [start, end], both days included.
	ListTransactionsByDateRange(ctx context.Context, userID int64, start, end core.Date) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (bool, error)
}

type BotConfigStore interface {
	GetActiveBotConfig(ctx context.Context) (core.BotConfig, error)
	ListBotConfigs(ctx context.Context) ([]core.BotConfig, error)
	CreateBotConfig(ctx context.Context, b core.BotConfig) (core.BotConfig, error)
	UpdateBotConfig(ctx context.Context, id int64, p core.BotConfigPatch) (core.BotConfig, error)
	DeleteBotConfig(ctx context.Context, id int64) (bool, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	GetSession(ctx context.Context, token string) (core.Session, error)
	RenewSession(ctx context.Context, token string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
	// DeleteExpiredSessions removes sessions that expired before now and
	// returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store is the full persistence contract.
type Store interface {
	UserStore
	CategoryStore
	AccountStore
	TransactionStore
	BotConfigStore
	SessionStore

	// Atomic runs fn against a store view whose writes commit together or
	// not at all. Nested calls on the view run inside the same unit.
	Atomic(ctx context.Context, fn func(Store) error) error

	Ping(ctx context.Context) error
	Close() error
}
