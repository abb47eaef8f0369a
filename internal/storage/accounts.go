package storage

import (
	"context"

	"fintrack/internal/core"
)

const accountColumns = "id, name, type, balance_cents, bank_name, account_number, user_id, created_at"

func scanAccount(s scanner) (core.Account, error) {
	var (
		a     core.Account
		typ   string
		cents int64
	)
	if err := s.Scan(&a.ID, &a.Name, &typ, &cents, &a.BankName, &a.AccountNumber, &a.UserID, &a.CreatedAt); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.Balance = core.MoneyFromCents(cents)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func (r *Repository) listAccounts(ctx context.Context, where string, args ...any) ([]core.Account, error) {
	rows, err := r.query(ctx, "SELECT "+accountColumns+" FROM accounts "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, wrap("list accounts", err)
	}
	defer rows.Close()

	out := make([]core.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, wrap("scan account", err)
		}
		out = append(out, a)
	}
	return out, wrap("list accounts", rows.Err())
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := scanAccount(r.queryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id))
	if err != nil {
		return core.Account{}, wrap("get account", err)
	}
	return a, nil
}

func (r *Repository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return r.listAccounts(ctx, "")
}

func (r *Repository) ListAccountsByUser(ctx context.Context, userID int64) ([]core.Account, error) {
	return r.listAccounts(ctx, "WHERE user_id = ?", userID)
}

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	balance, err := cents("balance", a.Balance)
	if err != nil {
		return core.Account{}, err
	}
	a.CreatedAt = r.stamp()
	id, err := r.insert(ctx, "create account",
		`INSERT INTO accounts (name, type, balance_cents, bank_name, account_number, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Name, string(a.Type), balance, a.BankName, a.AccountNumber, a.UserID, a.CreatedAt)
	if err != nil {
		return core.Account{}, err
	}
	a.ID = id
	return a, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, id int64, p core.AccountPatch) (core.Account, error) {
	var set setList
	if p.Name.Set {
		set.add("name", p.Name.Value)
	}
	if p.Type.Set {
		set.add("type", string(p.Type.Value))
	}
	if p.Balance.Set {
		balance, err := cents("balance", p.Balance.Value)
		if err != nil {
			return core.Account{}, err
		}
		set.add("balance_cents", balance)
	}
	if p.BankName.Set {
		set.add("bank_name", p.BankName.Value)
	}
	if p.AccountNumber.Set {
		set.add("account_number", p.AccountNumber.Value)
	}
	if err := r.update(ctx, "update account", "accounts", id, &set); err != nil {
		return core.Account{}, err
	}
	return r.GetAccount(ctx, id)
}

func (r *Repository) DeleteAccount(ctx context.Context, id int64) (bool, error) {
	return r.deleteByID(ctx, "delete account", "accounts", id)
}

// AdjustBalance is a single UPDATE, so concurrent postings to one account
// never lose an increment.
func (r *Repository) AdjustBalance(ctx context.Context, id int64, delta core.Money) (core.Account, error) {
	d, err := cents("amount", delta)
	if err != nil {
		return core.Account{}, err
	}
	res, err := r.exec(ctx, "adjust balance",
		"UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?", d, id)
	if err != nil {
		return core.Account{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Account{}, wrap("adjust balance", err)
	}
	if n == 0 {
		return core.Account{}, core.ErrNotFound
	}
	return r.GetAccount(ctx, id)
}
