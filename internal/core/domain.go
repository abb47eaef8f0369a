package core

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

const (
	Checking AccountType = "checking"
	Savings  AccountType = "savings"
	Loan     AccountType = "loan"
	Credit   AccountType = "credit"
)

// Reserved markers for internal postings. Transactions carrying them move
// balances but are not business income or expense.
const (
	TransferMarker    = "Transferencia"
	LoanPaymentMarker = "Pago de préstamo"
)

const (
	maxDescription = 200
	maxName        = 100
	minUsername    = 3
	maxUsername    = 50
	minPassword    = 6

	// MaxPasswordBytes is the longest password bcrypt hashes without truncating.
	MaxPasswordBytes = 72
)

type (
	Role            string
	TransactionType string
	AccountType     string

	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		FullName     string    `json:"fullName"`
		Role         Role      `json:"role"`
		BotID        *string   `json:"botId"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	Category struct {
		ID        int64           `json:"id"`
		Name      string          `json:"name"`
		Color     string          `json:"color"`
		Type      TransactionType `json:"type"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	Account struct {
		ID            int64       `json:"id"`
		Name          string      `json:"name"`
		Type          AccountType `json:"type"`
		Balance       Money       `json:"balance"`
		BankName      string      `json:"bankName"`
		AccountNumber string      `json:"accountNumber"`
		UserID        int64       `json:"userId"`
		CreatedAt     time.Time   `json:"createdAt"`
	}

	Transaction struct {
		ID              int64           `json:"id"`
		Type            TransactionType `json:"type"`
		Amount          Money           `json:"amount"`
		Description     string          `json:"description"`
		ThirdParty      string          `json:"thirdParty"`
		CategoryID      *int64          `json:"categoryId"`
		AccountID       *int64          `json:"accountId"`
		PaymentMethod   string          `json:"paymentMethod"`
		Notes           string          `json:"notes"`
		UserID          int64           `json:"userId"`
		// PostedAccountID is the account whose balance currently carries this
		// transaction. It differs from AccountID when posting found no account.
		PostedAccountID *int64          `json:"postedAccountId"`
		CreatedAt       time.Time       `json:"createdAt"`
		TransactionDate Date            `json:"transactionDate"`
	}

	BotConfig struct {
		ID        int64     `json:"id"`
		BotToken  string    `json:"-"`
		IsActive  bool      `json:"isActive"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Session struct {
		Token     string
		UserID    int64
		ExpiresAt time.Time
		CreatedAt time.Time
	}
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

func (t AccountType) Valid() bool {
	switch t {
	case Checking, Savings, Loan, Credit:
		return true
	}
	return false
}

// IsDebt reports whether the balance of this account type is an amount owed.
func (t AccountType) IsDebt() bool {
	return t == Loan || t == Credit
}

// SignedAmount is the balance delta the transaction posts to its account.
func (t Transaction) SignedAmount() Money {
	if t.Type == Income {
		return t.Amount
	}
	return t.Amount.Neg()
}

// IsTransfer reports whether the transaction is one leg of an account transfer.
func (t Transaction) IsTransfer() bool {
	return t.ThirdParty == TransferMarker
}

// IsLoanPayment reports whether the transaction pays down a loan.
func (t Transaction) IsLoanPayment() bool {
	return strings.Contains(t.Description, LoanPaymentMarker)
}

// IsInternal reports whether the transaction is excluded from analytics.
func (t Transaction) IsInternal() bool {
	return t.IsTransfer() || t.IsLoanPayment()
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (c Category) Validate() error {
	v := NewValidationError()
	validateName(v, "name", c.Name)
	if !c.Type.Valid() {
		v.Add("type", ErrInvalidType.Error())
	}
	return v.OrNil()
}

func (a Account) Validate() error {
	v := NewValidationError()
	validateName(v, "name", a.Name)
	if !a.Type.Valid() {
		v.Add("type", ErrInvalidAccountType.Error())
	}
	if !a.Balance.InRange() {
		v.Add("balance", ErrAmountOutOfRange.Error())
	}
	return v.OrNil()
}

func (t Transaction) Validate() error {
	v := NewValidationError()
	if !t.Type.Valid() {
		v.Add("type", ErrInvalidType.Error())
	}
	v.Check("amount", t.Amount.Validate())
	if len(strings.TrimSpace(t.Description)) == 0 {
		v.Add("description", ErrEmptyDescription.Error())
	} else if utf8.RuneCountInString(t.Description) > maxDescription {
		v.Add("description", "description too long (max 200 characters)")
	}
	v.Check("transactionDate", t.TransactionDate.Validate())
	return v.OrNil()
}

func (u User) Validate() error {
	v := NewValidationError()
	validateUsername(v, u.Username)
	validateEmail(v, u.Email)
	if strings.TrimSpace(u.FullName) == "" {
		v.Add("fullName", "full name is required")
	}
	if !u.Role.Valid() {
		v.Add("role", ErrInvalidRole.Error())
	}
	return v.OrNil()
}

func validateName(v *ValidationError, field, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		v.Add(field, field+" is required")
	} else if utf8.RuneCountInString(name) > maxName {
		v.Add(field, field+" too long (max 100 characters)")
	}
}

func validateUsername(v *ValidationError, username string) {
	n := utf8.RuneCountInString(strings.TrimSpace(username))
	if n < minUsername || n > maxUsername {
		v.Add("username", "username must be 3-50 characters")
	}
}

func validateEmail(v *ValidationError, email string) {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		v.Add("email", "invalid email address")
	}
}
