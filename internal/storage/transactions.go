package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

const transactionColumns = `id, type, amount_cents, description, third_party, category_id, account_id,
	payment_method, notes, user_id, created_at, transaction_date, posted_account_id`

const transactionOrder = " ORDER BY transaction_date DESC, id DESC"

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		typ        string
		cents      int64
		categoryID = nullInt(nil)
		accountID  = nullInt(nil)
		postedID   = nullInt(nil)
		date       time.Time
	)
	if err := s.Scan(&t.ID, &typ, &cents, &t.Description, &t.ThirdParty, &categoryID, &accountID,
		&t.PaymentMethod, &t.Notes, &t.UserID, &t.CreatedAt, &date, &postedID); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Amount = core.MoneyFromCents(cents)
	t.CategoryID = intPtr(categoryID)
	t.AccountID = intPtr(accountID)
	t.PostedAccountID = intPtr(postedID)
	t.CreatedAt = t.CreatedAt.UTC()
	t.TransactionDate = scanDate(date)
	return t, nil
}

func (r *Repository) listTransactions(ctx context.Context, where string, args ...any) ([]core.Transaction, error) {
	rows, err := r.query(ctx, "SELECT "+transactionColumns+" FROM transactions "+where+transactionOrder, args...)
	if err != nil {
		return nil, wrap("list transactions", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, wrap("scan transaction", err)
		}
		out = append(out, t)
	}
	return out, wrap("list transactions", rows.Err())
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.queryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if err != nil {
		return core.Transaction{}, wrap("get transaction", err)
	}
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return r.listTransactions(ctx, "")
}

func (r *Repository) ListTransactionsByUser(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return r.listTransactions(ctx, "WHERE user_id = ?", userID)
}

// ListTransactionsByDateRange compares against day boundaries so the stored
// time of day never matters.
func (r *Repository) ListTransactionsByDateRange(ctx context.Context, userID int64, start, end core.Date) ([]core.Transaction, error) {
	from := start.StartOfDay()
	to := end.StartOfDay().AddDate(0, 0, 1)
	return r.listTransactions(ctx,
		"WHERE user_id = ? AND transaction_date >= ? AND transaction_date < ?", userID, from, to)
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	amount, err := cents("amount", t.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CreatedAt = r.stamp()
	id, err := r.insert(ctx, "create transaction",
		`INSERT INTO transactions (type, amount_cents, description, third_party, category_id, account_id,
		   payment_method, notes, user_id, created_at, transaction_date, posted_account_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Type), amount, t.Description, t.ThirdParty, nullInt(t.CategoryID), nullInt(t.AccountID),
		t.PaymentMethod, t.Notes, t.UserID, t.CreatedAt, dateArg(t.TransactionDate), nullInt(t.PostedAccountID))
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = id
	return t, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error) {
	// Apply on the current row so trimming and defaults match the memory store.
	current, err := r.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	next := current
	p.Apply(&next)

	var set setList
	if p.Type.Set {
		set.add("type", string(next.Type))
	}
	if p.Amount.Set {
		amount, err := cents("amount", next.Amount)
		if err != nil {
			return core.Transaction{}, err
		}
		set.add("amount_cents", amount)
	}
	if p.Description.Set {
		set.add("description", next.Description)
	}
	if p.ThirdParty.Set {
		set.add("third_party", next.ThirdParty)
	}
	if p.CategoryID.Set {
		set.add("category_id", nullInt(next.CategoryID))
	}
	if p.AccountID.Set {
		set.add("account_id", nullInt(next.AccountID))
	}
	if p.PaymentMethod.Set {
		set.add("payment_method", next.PaymentMethod)
	}
	if p.Notes.Set {
		set.add("notes", next.Notes)
	}
	if p.TransactionDate.Set {
		set.add("transaction_date", dateArg(next.TransactionDate))
	}
	if p.PostedAccountID.Set {
		set.add("posted_account_id", nullInt(next.PostedAccountID))
	}
	if err := r.update(ctx, "update transaction", "transactions", id, &set); err != nil {
		return core.Transaction{}, err
	}
	return r.GetTransaction(ctx, id)
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	return r.deleteByID(ctx, "delete transaction", "transactions", id)
}
