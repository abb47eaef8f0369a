// Package memory implements store.Store with process-local maps. It is the
// fallback backend when no relational database is reachable, and the
// backend used by most tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// Store is safe for concurrent use. All state lives in the instance; two
// stores never share ids or rows.
type Store struct {
	mu  sync.Locker
	db  *db
	now func() time.Time
}

type sequences struct {
	user, category, account, transaction, bot int64
}

type db struct {
	users        map[int64]core.User
	categories   map[int64]core.Category
	accounts     map[int64]core.Account
	transactions map[int64]core.Transaction
	bots         map[int64]core.BotConfig
	sessions     map[string]core.Session
	seq          sequences
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		mu:  &sync.Mutex{},
		db:  newDB(),
		now: time.Now,
	}
}

// WithClock replaces the time source used for CreatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func newDB() *db {
	return &db{
		users:        make(map[int64]core.User),
		categories:   make(map[int64]core.Category),
		accounts:     make(map[int64]core.Account),
		transactions: make(map[int64]core.Transaction),
		bots:         make(map[int64]core.BotConfig),
		sessions:     make(map[string]core.Session),
	}
}

func (d *db) clone() *db {
	c := &db{
		users:        make(map[int64]core.User, len(d.users)),
		categories:   make(map[int64]core.Category, len(d.categories)),
		accounts:     make(map[int64]core.Account, len(d.accounts)),
		transactions: make(map[int64]core.Transaction, len(d.transactions)),
		bots:         make(map[int64]core.BotConfig, len(d.bots)),
		sessions:     make(map[string]core.Session, len(d.sessions)),
		seq:          d.seq,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.bots {
		c.bots[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	return c
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

// Atomic holds the store lock for the whole of fn. On error every write made
// through the view is discarded.
func (s *Store) Atomic(ctx context.Context, fn func(store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.db.clone()
	view := &Store{mu: noLock{}, db: s.db, now: s.now}
	if err := fn(view); err != nil {
		*s.db = *snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Users

func (s *Store) GetUser(ctx context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, store.ErrNotFound
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, store.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByID(s.db.users, func(u core.User) int64 { return u.ID }), nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.checkUserUnique(0, u.Username, u.Email); err != nil {
		return core.User{}, err
	}
	s.db.seq.user++
	u.ID = s.db.seq.user
	u.CreatedAt = s.stamp()
	u.BotID = cloneString(u.BotID)
	s.db.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, p core.UserPatch) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	p.Apply(&u)
	if err := s.db.checkUserUnique(id, u.Username, u.Email); err != nil {
		return core.User{}, err
	}
	u.BotID = cloneString(u.BotID)
	s.db.users[id] = u
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.db.users[id]; !ok {
		return false, nil
	}
	delete(s.db.users, id)
	for token, sess := range s.db.sessions {
		if sess.UserID == id {
			delete(s.db.sessions, token)
		}
	}
	return true, nil
}

func (d *db) checkUserUnique(id int64, username, email string) error {
	for _, u := range d.users {
		if u.ID == id {
			continue
		}
		if u.Username == username || u.Email == email {
			return core.ErrConflict
		}
	}
	return nil
}

// Categories

func (s *Store) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.db.categories[id]
	if !ok {
		return core.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByID(s.db.categories, func(c core.Category) int64 { return c.ID }), nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.seq.category++
	c.ID = s.db.seq.category
	c.CreatedAt = s.stamp()
	s.db.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.db.categories[id]
	if !ok {
		return core.Category{}, store.ErrNotFound
	}
	p.Apply(&c)
	s.db.categories[id] = c
	return c, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.db.categories[id]; !ok {
		return false, nil
	}
	delete(s.db.categories, id)
	return true, nil
}

// Accounts

func (s *Store) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.db.accounts[id]
	if !ok {
		return core.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByID(s.db.accounts, func(a core.Account) int64 { return a.ID }), nil
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID int64) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := sortedByID(s.db.accounts, func(a core.Account) int64 { return a.ID })
	out := all[:0]
	for _, a := range all {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.seq.account++
	a.ID = s.db.seq.account
	a.CreatedAt = s.stamp()
	s.db.accounts[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id int64, p core.AccountPatch) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.db.accounts[id]
	if !ok {
		return core.Account{}, store.ErrNotFound
	}
	p.Apply(&a)
	s.db.accounts[id] = a
	return a, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.db.accounts[id]; !ok {
		return false, nil
	}
	delete(s.db.accounts, id)
	return true, nil
}

func (s *Store) AdjustBalance(ctx context.Context, id int64, delta core.Money) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.db.accounts[id]
	if !ok {
		return core.Account{}, store.ErrNotFound
	}
	a.Balance = a.Balance.Add(delta)
	s.db.accounts[id] = a
	return a, nil
}

// Transactions

func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.db.transactions[id]
	if !ok {
		return core.Transaction{}, store.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.filterTransactions(func(core.Transaction) bool { return true }), nil
}

func (s *Store) ListTransactionsByUser(ctx context.Context, userID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.filterTransactions(func(t core.Transaction) bool { return t.UserID == userID }), nil
}

func (s *Store) ListTransactionsByDateRange(ctx context.Context, userID int64, start, end core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to := start.StartOfDay(), end.StartOfDay().AddDate(0, 0, 1)
	return s.db.filterTransactions(func(t core.Transaction) bool {
		d := t.TransactionDate.Time
		return t.UserID == userID && !d.Before(from) && d.Before(to)
	}), nil
}

func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.seq.transaction++
	t.ID = s.db.seq.transaction
	t.CreatedAt = s.stamp()
	t.CategoryID = cloneRef(t.CategoryID)
	t.AccountID = cloneRef(t.AccountID)
	t.PostedAccountID = cloneRef(t.PostedAccountID)
	s.db.transactions[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.db.transactions[id]
	if !ok {
		return core.Transaction{}, store.ErrNotFound
	}
	p.Apply(&t)
	t.CategoryID = cloneRef(t.CategoryID)
	t.AccountID = cloneRef(t.AccountID)
	t.PostedAccountID = cloneRef(t.PostedAccountID)
	s.db.transactions[id] = t
	return t, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.db.transactions[id]; !ok {
		return false, nil
	}
	delete(s.db.transactions, id)
	return true, nil
}

// filterTransactions returns matches newest business date first.
func (d *db) filterTransactions(keep func(core.Transaction) bool) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, t := range d.transactions {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.TransactionDate.Equal(b.TransactionDate.Time) {
			return a.TransactionDate.After(b.TransactionDate.Time)
		}
		return a.ID > b.ID
	})
	return out
}

// Bot configs

func (s *Store) GetActiveBotConfig(ctx context.Context) (core.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range sortedByID(s.db.bots, func(b core.BotConfig) int64 { return b.ID }) {
		if b.IsActive {
			return b, nil
		}
	}
	return core.BotConfig{}, store.ErrNotFound
}

func (s *Store) ListBotConfigs(ctx context.Context) ([]core.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByID(s.db.bots, func(b core.BotConfig) int64 { return b.ID }), nil
}

func (s *Store) CreateBotConfig(ctx context.Context, b core.BotConfig) (core.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.seq.bot++
	b.ID = s.db.seq.bot
	b.CreatedAt = s.stamp()
	s.db.bots[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBotConfig(ctx context.Context, id int64, p core.BotConfigPatch) (core.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.db.bots[id]
	if !ok {
		return core.BotConfig{}, store.ErrNotFound
	}
	p.Apply(&b)
	s.db.bots[id] = b
	return b, nil
}

func (s *Store) DeleteBotConfig(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.db.bots[id]; !ok {
		return false, nil
	}
	delete(s.db.bots, id)
	return true, nil
}

// Sessions

func (s *Store) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.db.sessions[token]; ok {
		return core.ErrConflict
	}
	s.db.sessions[token] = core.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: s.stamp(),
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.db.sessions[token]
	if !ok {
		return core.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.db.sessions[token]
	if !ok {
		return store.ErrNotFound
	}
	sess.ExpiresAt = expiresAt.UTC()
	s.db.sessions[token] = sess
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.db.sessions, token)
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, sess := range s.db.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.db.sessions, token)
			n++
		}
	}
	return n, nil
}

func sortedByID[T any](m map[int64]T, id func(T) int64) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func cloneRef(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
