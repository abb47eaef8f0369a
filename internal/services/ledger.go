package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

const eventPublishTimeout = 10 * time.Second

// PostingStatus describes what a write did to an account balance.
type PostingStatus string

const (
	// PostingNone means the transaction references no account.
	PostingNone PostingStatus = "none"
	// PostingApplied means the delta was added to the account balance.
	PostingApplied PostingStatus = "applied"
	// PostingAccountMissing means the referenced account does not exist or
	// belongs to someone else. The transaction row is still written.
	PostingAccountMissing PostingStatus = "account_missing"
)

// Posting is the balance effect of one write.
type Posting struct {
	Status    PostingStatus `json:"status"`
	AccountID *int64        `json:"accountId,omitempty"`
	Delta     core.Money    `json:"delta"`
	// Balance is the account balance after the posting, when applied.
	Balance *core.Money `json:"balance,omitempty"`
}

type PostingResult struct {
	Transaction core.Transaction `json:"transaction"`
	Posting     Posting          `json:"posting"`
}

type UpdateResult struct {
	Transaction core.Transaction `json:"transaction"`
	Reversal    Posting          `json:"reversal"`
	Posting     Posting          `json:"posting"`
}

type DeleteResult struct {
	Reversal Posting `json:"reversal"`
}

// TransferRequest moves Amount from one owned account to another.
type TransferRequest struct {
	FromAccountID int64      `json:"fromAccountId"`
	ToAccountID   int64      `json:"toAccountId"`
	Amount        core.Money `json:"amount"`
	Date          core.Date  `json:"date"`
	Description   string     `json:"description"`
}

type TransferResult struct {
	Withdrawal PostingResult `json:"withdrawal"`
	Deposit    PostingResult `json:"deposit"`
}

// LoanPaymentRequest pays Amount from FromAccountID towards a loan or
// credit account.
type LoanPaymentRequest struct {
	FromAccountID int64      `json:"fromAccountId"`
	LoanAccountID int64      `json:"loanAccountId"`
	Amount        core.Money `json:"amount"`
	Date          core.Date  `json:"date"`
}

type LoanPaymentResult struct {
	Payment   PostingResult `json:"payment"`
	Reduction PostingResult `json:"reduction"`
}

// DateRange bounds a listing by business date. Zero bounds are open.
type DateRange struct {
	Start core.Date
	End   core.Date
}

// EventPublisher receives ledger events after their write committed.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService owns every write that moves money. Transactions and the
// balance postings they imply are written in one store unit.
type LedgerService struct {
	store  store.Store
	events EventPublisher
	logger *log.Logger
	now    func() time.Time
}

// NewLedgerService returns a ledger over st. events may be nil.
func NewLedgerService(st store.Store, events EventPublisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:  st,
		events: events,
		logger: logger.WithComponent(log.ComponentLedger),
		now:    time.Now,
	}
}

// WithClock replaces the time source used to default business dates.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// GetTransaction returns the owner's transaction. Transactions of other
// users are reported as not found.
func (s *LedgerService) GetTransaction(ctx context.Context, owner, id int64) (core.Transaction, error) {
	return ownedTransaction(ctx, s.store, owner, id)
}

// ListTransactions returns the owner's transactions, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, owner int64, r DateRange) ([]core.Transaction, error) {
	if !r.Start.IsEmpty() && !r.End.IsEmpty() {
		if r.End.Before(r.Start.Time) {
			v := core.NewValidationError()
			v.Add("end", "end date must not be before start date")
			return nil, v
		}
		return s.store.ListTransactionsByDateRange(ctx, owner, r.Start, r.End)
	}

	txs, err := s.store.ListTransactionsByUser(ctx, owner)
	if err != nil || (r.Start.IsEmpty() && r.End.IsEmpty()) {
		return txs, err
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if !r.Start.IsEmpty() && t.TransactionDate.Before(r.Start.Time) {
			continue
		}
		if !r.End.IsEmpty() && t.TransactionDate.After(r.End.Time) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// CreateTransaction records the draft and posts its signed amount to the
// referenced account.
func (s *LedgerService) CreateTransaction(ctx context.Context, owner int64, d core.TransactionDraft) (PostingResult, error) {
	t := d.Transaction(owner, s.now())
	if err := t.Validate(); err != nil {
		return PostingResult{}, err
	}

	var res PostingResult
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		res, err = s.createAndPost(ctx, tx, owner, t)
		return err
	})
	if err != nil {
		return PostingResult{}, wrapLedger("create transaction", err)
	}

	s.publish(ctx, amqp.EventTransactionCreated, res.Transaction, nil, res.Posting.Status)
	return res, nil
}

// UpdateTransaction patches the owner's transaction. When the type, amount
// or account changes, the old posting is reversed and the new one applied
// so balances stay consistent with the stored rows.
func (s *LedgerService) UpdateTransaction(ctx context.Context, owner, id int64, p core.TransactionPatch) (UpdateResult, error) {
	var (
		res  UpdateResult
		prev core.Transaction
	)
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := ownedTransaction(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		prev = cur

		next := cur
		p.Apply(&next)
		if err := next.Validate(); err != nil {
			return err
		}

		res.Reversal = Posting{Status: PostingNone, Delta: core.Zero}
		res.Posting = Posting{Status: PostingNone, Delta: core.Zero}
		if p.TouchesPosting() && postingChanged(cur, next) {
			if res.Reversal, err = s.reverse(ctx, tx, owner, cur); err != nil {
				return err
			}
			if res.Posting, err = s.post(ctx, tx, owner, cur.ID, next.AccountID, next.SignedAmount()); err != nil {
				return err
			}
			p.PostedAccountID = core.Some(postedTo(res.Posting))
		}

		res.Transaction, err = tx.UpdateTransaction(ctx, id, p)
		return err
	})
	if err != nil {
		return UpdateResult{}, wrapLedger("update transaction", err)
	}

	s.publish(ctx, amqp.EventTransactionUpdated, res.Transaction, &prev, res.Posting.Status)
	return res, nil
}

// DeleteTransaction reverses the posting of the owner's transaction and
// removes it. found is false when no such transaction exists.
func (s *LedgerService) DeleteTransaction(ctx context.Context, owner, id int64) (DeleteResult, bool, error) {
	var (
		res  DeleteResult
		gone core.Transaction
	)
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := ownedTransaction(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		gone = cur

		if res.Reversal, err = s.reverse(ctx, tx, owner, cur); err != nil {
			return err
		}
		ok, err := tx.DeleteTransaction(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return core.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, core.ErrNotFound) {
		return DeleteResult{}, false, nil
	}
	if err != nil {
		return DeleteResult{}, false, fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, amqp.EventTransactionDeleted, gone, nil, res.Reversal.Status)
	return res, true, nil
}

// Transfer withdraws from one owned account and deposits into another.
// Both legs carry the transfer marker so analytics ignore them.
func (s *LedgerService) Transfer(ctx context.Context, owner int64, r TransferRequest) (TransferResult, error) {
	v := core.NewValidationError()
	v.Check("amount", r.Amount.Validate())
	if r.FromAccountID == r.ToAccountID {
		v.Add("toAccountId", "source and destination accounts must differ")
	}
	if err := v.OrNil(); err != nil {
		return TransferResult{}, err
	}
	date := s.dateOrToday(r.Date)

	var res TransferResult
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		from, err := ownedAccount(ctx, tx, owner, r.FromAccountID, "fromAccountId")
		if err != nil {
			return err
		}
		to, err := ownedAccount(ctx, tx, owner, r.ToAccountID, "toAccountId")
		if err != nil {
			return err
		}

		outDesc, inDesc := "Transferencia a "+to.Name, "Transferencia desde "+from.Name
		if r.Description != "" {
			outDesc, inDesc = r.Description, r.Description
		}

		if res.Withdrawal, err = s.createAndPost(ctx, tx, owner, core.Transaction{
			Type:            core.Expense,
			Amount:          r.Amount,
			Description:     outDesc,
			ThirdParty:      core.TransferMarker,
			AccountID:       core.Ref(from.ID),
			UserID:          owner,
			TransactionDate: date,
		}); err != nil {
			return err
		}
		res.Deposit, err = s.createAndPost(ctx, tx, owner, core.Transaction{
			Type:            core.Income,
			Amount:          r.Amount,
			Description:     inDesc,
			ThirdParty:      core.TransferMarker,
			AccountID:       core.Ref(to.ID),
			UserID:          owner,
			TransactionDate: date,
		})
		return err
	})
	if err != nil {
		return TransferResult{}, wrapLedger(log.OpTransfer, err)
	}

	s.logger.InfoContext(ctx, "Transfer posted",
		log.FieldUserID, owner,
		"from_account_id", r.FromAccountID,
		"to_account_id", r.ToAccountID,
		log.FieldAmount, r.Amount.String())
	s.publish(ctx, amqp.EventTransactionCreated, res.Withdrawal.Transaction, nil, res.Withdrawal.Posting.Status)
	s.publish(ctx, amqp.EventTransactionCreated, res.Deposit.Transaction, nil, res.Deposit.Posting.Status)
	return res, nil
}

// PayLoan pays towards a loan or credit account: an expense leaves the
// paying account and an expense against the loan lowers the amount owed.
func (s *LedgerService) PayLoan(ctx context.Context, owner int64, r LoanPaymentRequest) (LoanPaymentResult, error) {
	v := core.NewValidationError()
	v.Check("amount", r.Amount.Validate())
	if r.FromAccountID == r.LoanAccountID {
		v.Add("loanAccountId", "paying and loan accounts must differ")
	}
	if err := v.OrNil(); err != nil {
		return LoanPaymentResult{}, err
	}
	date := s.dateOrToday(r.Date)

	var res LoanPaymentResult
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		from, err := ownedAccount(ctx, tx, owner, r.FromAccountID, "fromAccountId")
		if err != nil {
			return err
		}
		loan, err := ownedAccount(ctx, tx, owner, r.LoanAccountID, "loanAccountId")
		if err != nil {
			return err
		}
		if !loan.Type.IsDebt() {
			v := core.NewValidationError()
			v.Add("loanAccountId", "account is not a loan or credit account")
			return v
		}

		desc := core.LoanPaymentMarker + " - " + loan.Name
		if res.Payment, err = s.createAndPost(ctx, tx, owner, core.Transaction{
			Type:            core.Expense,
			Amount:          r.Amount,
			Description:     desc,
			ThirdParty:      loan.BankName,
			AccountID:       core.Ref(from.ID),
			UserID:          owner,
			TransactionDate: date,
		}); err != nil {
			return err
		}
		res.Reduction, err = s.createAndPost(ctx, tx, owner, core.Transaction{
			Type:            core.Expense,
			Amount:          r.Amount,
			Description:     desc,
			ThirdParty:      from.Name,
			AccountID:       core.Ref(loan.ID),
			UserID:          owner,
			TransactionDate: date,
		})
		return err
	})
	if err != nil {
		return LoanPaymentResult{}, wrapLedger(log.OpPayLoan, err)
	}

	s.logger.InfoContext(ctx, "Loan payment posted",
		log.FieldUserID, owner,
		"from_account_id", r.FromAccountID,
		"loan_account_id", r.LoanAccountID,
		log.FieldAmount, r.Amount.String())
	s.publish(ctx, amqp.EventTransactionCreated, res.Payment.Transaction, nil, res.Payment.Posting.Status)
	s.publish(ctx, amqp.EventTransactionCreated, res.Reduction.Transaction, nil, res.Reduction.Posting.Status)
	return res, nil
}

func (s *LedgerService) createAndPost(ctx context.Context, tx store.Store, owner int64, t core.Transaction) (PostingResult, error) {
	created, err := tx.CreateTransaction(ctx, t)
	if err != nil {
		return PostingResult{}, err
	}
	p, err := s.post(ctx, tx, owner, created.ID, created.AccountID, created.SignedAmount())
	if err != nil {
		return PostingResult{}, err
	}
	if p.Status == PostingApplied {
		patch := core.TransactionPatch{PostedAccountID: core.Some(postedTo(p))}
		if created, err = tx.UpdateTransaction(ctx, created.ID, patch); err != nil {
			return PostingResult{}, err
		}
	}
	return PostingResult{Transaction: created, Posting: p}, nil
}

// reverse undoes the posting recorded on t. A transaction whose account was
// missing when it was written moved no balance and reverses nothing, even if
// an account with that id exists now.
func (s *LedgerService) reverse(ctx context.Context, tx store.Store, owner int64, t core.Transaction) (Posting, error) {
	return s.post(ctx, tx, owner, t.ID, t.PostedAccountID, t.SignedAmount().Neg())
}

// post adds delta to the account when it exists and belongs to owner.
func (s *LedgerService) post(ctx context.Context, tx store.Store, owner, txID int64, accountID *int64, delta core.Money) (Posting, error) {
	if accountID == nil {
		return Posting{Status: PostingNone, Delta: core.Zero}, nil
	}
	p := Posting{AccountID: core.Ref(*accountID), Delta: delta}

	acc, err := tx.GetAccount(ctx, *accountID)
	if err == nil && acc.UserID == owner {
		if !acc.Balance.Add(delta).InRange() {
			v := core.NewValidationError()
			v.Add("amount", "resulting balance out of range (max 9999999999999.99)")
			return Posting{}, v
		}
		acc, err = tx.AdjustBalance(ctx, *accountID, delta)
	} else if err == nil {
		err = core.ErrNotFound
	}

	switch {
	case err == nil:
		p.Status = PostingApplied
		p.Balance = &acc.Balance
		s.logger.DebugContext(ctx, "Posting applied",
			log.NewFields().WithPosting(txID, *accountID, delta.String(), string(p.Status)).ToSlice()...)
		return p, nil
	case errors.Is(err, core.ErrNotFound):
		p.Status = PostingAccountMissing
		s.logger.WarnContext(ctx, "Posting skipped: account missing",
			log.NewFields().WithPosting(txID, *accountID, delta.String(), string(p.Status)).ToSlice()...)
		return p, nil
	default:
		return Posting{}, err
	}
}

// publish emits ev once the write committed. Failures are logged only; the
// write already succeeded.
func (s *LedgerService) publish(ctx context.Context, typ amqp.EventType, t core.Transaction, prev *core.Transaction, posting PostingStatus) {
	if s.events == nil {
		return
	}
	ev := amqp.NewLedgerEvent(typ, t, string(posting))
	ev.Previous = prev

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := s.events.PublishLedgerEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventID, ev.ID.String(),
			log.FieldTransactionID, t.ID,
			log.FieldError, err)
	}
}

func (s *LedgerService) dateOrToday(d core.Date) core.Date {
	if d.IsEmpty() {
		return core.DateOf(s.now().UTC())
	}
	return d
}

// postedTo is the account a posting moved, or nil when it moved none.
func postedTo(p Posting) *int64 {
	if p.Status != PostingApplied {
		return nil
	}
	return p.AccountID
}

func postingChanged(a, b core.Transaction) bool {
	return a.Type != b.Type || !a.Amount.Equal(b.Amount) || !core.SameRef(a.AccountID, b.AccountID)
}

func ownedTransaction(ctx context.Context, st store.TransactionStore, owner, id int64) (core.Transaction, error) {
	t, err := st.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.UserID != owner {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

// ownedAccount loads an account the owner may move money on. A missing or
// foreign account is a field error on field.
func ownedAccount(ctx context.Context, st store.AccountStore, owner, id int64, field string) (core.Account, error) {
	acc, err := st.GetAccount(ctx, id)
	if err == nil && acc.UserID != owner {
		err = core.ErrNotFound
	}
	if errors.Is(err, core.ErrNotFound) {
		v := core.NewValidationError()
		v.Add(field, "account not found")
		return core.Account{}, v
	}
	return acc, err
}

// wrapLedger keeps sentinel and validation errors recognizable while
// naming the failed operation.
func wrapLedger(op string, err error) error {
	var v *core.ValidationError
	if errors.As(err, &v) || errors.Is(err, core.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
