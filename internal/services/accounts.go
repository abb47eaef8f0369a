package services

import (
	"context"
	"errors"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// AccountService manages the accounts of one owner at a time. Accounts of
// other users are invisible: reads and writes on them report not found.
type AccountService struct {
	store  store.AccountStore
	logger *log.Logger
}

func NewAccountService(st store.AccountStore, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AccountService{store: st, logger: logger.WithComponent(log.ComponentLedger)}
}

func (s *AccountService) ListAccounts(ctx context.Context, owner int64) ([]core.Account, error) {
	return s.store.ListAccountsByUser(ctx, owner)
}

func (s *AccountService) GetAccount(ctx context.Context, owner, id int64) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if a.UserID != owner {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (s *AccountService) CreateAccount(ctx context.Context, owner int64, d core.AccountDraft) (core.Account, error) {
	a := d.Account(owner)
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	created, err := s.store.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, err
	}
	s.logger.InfoContext(ctx, "Account created",
		log.FieldUserID, owner,
		log.FieldAccountID, created.ID,
		"type", string(created.Type))
	return created, nil
}

// UpdateAccount patches the owner's account. A balance in the patch
// overwrites the stored balance; it does not post to the ledger.
func (s *AccountService) UpdateAccount(ctx context.Context, owner, id int64, p core.AccountPatch) (core.Account, error) {
	cur, err := s.GetAccount(ctx, owner, id)
	if err != nil {
		return core.Account{}, err
	}
	next := cur
	p.Apply(&next)
	if err := next.Validate(); err != nil {
		return core.Account{}, err
	}
	if p.Balance.Set && !cur.Balance.Equal(next.Balance) {
		s.logger.InfoContext(ctx, "Account balance overwritten",
			log.FieldUserID, owner,
			log.FieldAccountID, id,
			"from", cur.Balance.String(),
			"to", next.Balance.String())
	}
	return s.store.UpdateAccount(ctx, id, p)
}

// DeleteAccount removes the owner's account. Transactions referencing it
// keep their dangling reference.
func (s *AccountService) DeleteAccount(ctx context.Context, owner, id int64) (bool, error) {
	if _, err := s.GetAccount(ctx, owner, id); errors.Is(err, core.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return s.store.DeleteAccount(ctx, id)
}

// CategoryService manages the global category list.
type CategoryService struct {
	store store.CategoryStore
}

func NewCategoryService(st store.CategoryStore) *CategoryService {
	return &CategoryService{store: st}
}

func (s *CategoryService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *CategoryService) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *CategoryService) CreateCategory(ctx context.Context, d core.CategoryDraft) (core.Category, error) {
	c := d.Category()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	return s.store.CreateCategory(ctx, c)
}

func (s *CategoryService) UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) (core.Category, error) {
	cur, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	p.Apply(&cur)
	if err := cur.Validate(); err != nil {
		return core.Category{}, err
	}
	return s.store.UpdateCategory(ctx, id, p)
}

// DeleteCategory removes the category. Transactions referencing it are
// reported under the uncategorized label from then on.
func (s *CategoryService) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	return s.store.DeleteCategory(ctx, id)
}
