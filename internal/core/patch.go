package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Registration is the payload of a new user. Password is plaintext and only
// lives long enough to be hashed.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

func (r Registration) Validate() error {
	v := NewValidationError()
	validateUsername(v, r.Username)
	validateEmail(v, r.Email)
	switch {
	case utf8.RuneCountInString(r.Password) < minPassword:
		v.Add("password", "password must be at least 6 characters")
	case len(r.Password) > MaxPasswordBytes:
		v.Add("password", "password must be at most 72 bytes")
	}
	if strings.TrimSpace(r.FullName) == "" {
		v.Add("fullName", "full name is required")
	}
	if r.Role != "" && !r.Role.Valid() {
		v.Add("role", ErrInvalidRole.Error())
	}
	return v.OrNil()
}

// TransactionDraft is the payload of a new transaction. A zero
// TransactionDate means today.
type TransactionDraft struct {
	Type            TransactionType `json:"type"`
	Amount          Money           `json:"amount"`
	Description     string          `json:"description"`
	ThirdParty      string          `json:"thirdParty"`
	CategoryID      *int64          `json:"categoryId"`
	AccountID       *int64          `json:"accountId"`
	PaymentMethod   string          `json:"paymentMethod"`
	Notes           string          `json:"notes"`
	TransactionDate Date            `json:"transactionDate"`
}

// Transaction builds the entity owned by userID, defaulting the business
// date to the calendar day of now.
func (d TransactionDraft) Transaction(userID int64, now time.Time) Transaction {
	date := d.TransactionDate
	if date.IsEmpty() {
		date = DateOf(now.UTC())
	}
	return Transaction{
		Type:            d.Type,
		Amount:          d.Amount,
		Description:     strings.TrimSpace(d.Description),
		ThirdParty:      strings.TrimSpace(d.ThirdParty),
		CategoryID:      d.CategoryID,
		AccountID:       d.AccountID,
		PaymentMethod:   d.PaymentMethod,
		Notes:           d.Notes,
		UserID:          userID,
		TransactionDate: date,
	}
}

// AccountDraft is the payload of a new account. Balance defaults to zero.
type AccountDraft struct {
	Name          string      `json:"name"`
	Type          AccountType `json:"type"`
	Balance       Money       `json:"balance"`
	BankName      string      `json:"bankName"`
	AccountNumber string      `json:"accountNumber"`
}

func (d AccountDraft) Account(userID int64) Account {
	return Account{
		Name:          strings.TrimSpace(d.Name),
		Type:          d.Type,
		Balance:       d.Balance,
		BankName:      strings.TrimSpace(d.BankName),
		AccountNumber: strings.TrimSpace(d.AccountNumber),
		UserID:        userID,
	}
}

type CategoryDraft struct {
	Name  string          `json:"name"`
	Color string          `json:"color"`
	Type  TransactionType `json:"type"`
}

func (d CategoryDraft) Category() Category {
	return Category{
		Name:  strings.TrimSpace(d.Name),
		Color: strings.TrimSpace(d.Color),
		Type:  d.Type,
	}
}

type UserPatch struct {
	Email        Optional[string]  `json:"email"`
	FullName     Optional[string]  `json:"fullName"`
	Role         Optional[Role]    `json:"role"`
	BotID        Optional[*string] `json:"botId"`
	PasswordHash Optional[string]  `json:"-"`
}

func (p UserPatch) Apply(u *User) {
	if p.Email.Set {
		u.Email = p.Email.Value
	}
	if p.FullName.Set {
		u.FullName = p.FullName.Value
	}
	if p.Role.Set {
		u.Role = p.Role.Value
	}
	if p.BotID.Set {
		u.BotID = p.BotID.Value
	}
	if p.PasswordHash.Set {
		u.PasswordHash = p.PasswordHash.Value
	}
}

type CategoryPatch struct {
	Name  Optional[string]          `json:"name"`
	Color Optional[string]          `json:"color"`
	Type  Optional[TransactionType] `json:"type"`
}

func (p CategoryPatch) Apply(c *Category) {
	if p.Name.Set {
		c.Name = p.Name.Value
	}
	if p.Color.Set {
		c.Color = p.Color.Value
	}
	if p.Type.Set {
		c.Type = p.Type.Value
	}
}

type AccountPatch struct {
	Name          Optional[string]      `json:"name"`
	Type          Optional[AccountType] `json:"type"`
	Balance       Optional[Money]       `json:"balance"`
	BankName      Optional[string]      `json:"bankName"`
	AccountNumber Optional[string]      `json:"accountNumber"`
}

func (p AccountPatch) Apply(a *Account) {
	if p.Name.Set {
		a.Name = p.Name.Value
	}
	if p.Type.Set {
		a.Type = p.Type.Value
	}
	if p.Balance.Set {
		a.Balance = p.Balance.Value
	}
	if p.BankName.Set {
		a.BankName = p.BankName.Value
	}
	if p.AccountNumber.Set {
		a.AccountNumber = p.AccountNumber.Value
	}
}

type TransactionPatch struct {
	Type            Optional[TransactionType] `json:"type"`
	Amount          Optional[Money]           `json:"amount"`
	Description     Optional[string]          `json:"description"`
	ThirdParty      Optional[string]          `json:"thirdParty"`
	CategoryID      Optional[*int64]          `json:"categoryId"`
	AccountID       Optional[*int64]          `json:"accountId"`
	PaymentMethod   Optional[string]          `json:"paymentMethod"`
	Notes           Optional[string]          `json:"notes"`
	TransactionDate Optional[Date]            `json:"transactionDate"`
	PostedAccountID Optional[*int64]          `json:"-"`
}

func (p TransactionPatch) Apply(t *Transaction) {
	if p.Type.Set {
		t.Type = p.Type.Value
	}
	if p.Amount.Set {
		t.Amount = p.Amount.Value
	}
	if p.Description.Set {
		t.Description = strings.TrimSpace(p.Description.Value)
	}
	if p.ThirdParty.Set {
		t.ThirdParty = strings.TrimSpace(p.ThirdParty.Value)
	}
	if p.CategoryID.Set {
		t.CategoryID = p.CategoryID.Value
	}
	if p.AccountID.Set {
		t.AccountID = p.AccountID.Value
	}
	if p.PaymentMethod.Set {
		t.PaymentMethod = p.PaymentMethod.Value
	}
	if p.Notes.Set {
		t.Notes = p.Notes.Value
	}
	if p.TransactionDate.Set {
		t.TransactionDate = p.TransactionDate.Value
	}
	if p.PostedAccountID.Set {
		t.PostedAccountID = p.PostedAccountID.Value
	}
}

// TouchesPosting reports whether the patch changes the balance effect of
// the transaction.
func (p TransactionPatch) TouchesPosting() bool {
	return p.Type.Set || p.Amount.Set || p.AccountID.Set
}

type BotConfigPatch struct {
	BotToken Optional[string] `json:"botToken"`
	IsActive Optional[bool]   `json:"isActive"`
}

func (p BotConfigPatch) Apply(b *BotConfig) {
	if p.BotToken.Set {
		b.BotToken = p.BotToken.Value
	}
	if p.IsActive.Set {
		b.IsActive = p.IsActive.Value
	}
}

// SameRef reports whether two optional id references point at the same row.
func SameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Ref returns a pointer to id, for optional references.
func Ref(id int64) *int64 {
	return &id
}
