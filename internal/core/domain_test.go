package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDateKeepsCalendarDay(t *testing.T) {
	cases := map[string]string{
		"2025-03-01":                "2025-03-01",
		"2025-03-01T00:30:00+02:00": "2025-03-01",
		"2025-03-01T23:59:00-05:00": "2025-03-01",
		"2024-02-29T12:00:00Z":      "2024-02-29",
	}
	for in, want := range cases {
		d, err := ParseDate(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if d.String() != want {
			t.Fatalf("%q expected %s, got %s", in, want, d)
		}
		if d.Hour() != 12 || d.Location() != time.UTC {
			t.Fatalf("%q expected noon UTC, got %v", in, d.Time)
		}
	}
	if _, err := ParseDate("01/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateMonthArithmetic(t *testing.T) {
	d := NewDate(2025, 3, 31)
	if got := d.AddMonths(-1).MonthKey(); got != "2025-02" {
		t.Fatalf("expected 2025-02, got %s", got)
	}
	if got := d.AddMonths(-3).MonthKey(); got != "2024-12" {
		t.Fatalf("expected 2024-12, got %s", got)
	}
	if got := NewDate(2024, 2, 10).LastOfMonth().String(); got != "2024-02-29" {
		t.Fatalf("expected 2024-02-29, got %s", got)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:            Expense,
		Amount:          MoneyFromCents(100),
		Description:     "ok",
		TransactionDate: NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	cases := []struct {
		field  string
		mutate func(*Transaction)
	}{
		{"type", func(tx *Transaction) { tx.Type = "transfer" }},
		{"amount", func(tx *Transaction) { tx.Amount = Zero }},
		{"amount", func(tx *Transaction) { tx.Amount = MaxMoney.Add(MoneyFromCents(1)) }},
		{"description", func(tx *Transaction) { tx.Description = string(long) }},
		{"transactionDate", func(tx *Transaction) { tx.TransactionDate = Date{} }},
	}
	for _, tc := range cases {
		tx := good
		tc.mutate(&tx)
		err := tx.Validate()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.field, err)
		}
		if _, ok := ve.Fields[tc.field]; !ok {
			t.Fatalf("%s: expected field in %v", tc.field, ve.Fields)
		}
	}
}

func TestLengthLimitsCountCharacters(t *testing.T) {
	// 200 two-byte runes is 400 bytes but still within the limit.
	tx := Transaction{
		Type:            Expense,
		Amount:          MoneyFromCents(100),
		Description:     strings.Repeat("ñ", 200),
		TransactionDate: NewDate(2025, 1, 1),
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("expected 200 characters to pass, got %v", err)
	}
	tx.Description += "ñ"
	if err := tx.Validate(); err == nil {
		t.Fatalf("expected 201 characters to fail")
	}

	cat := Category{Name: strings.Repeat("é", 100), Type: Expense}
	if err := cat.Validate(); err != nil {
		t.Fatalf("expected 100 characters to pass, got %v", err)
	}
	acc := Account{Name: strings.Repeat("€", 100), Type: Savings}
	if err := acc.Validate(); err != nil {
		t.Fatalf("expected 100 characters to pass, got %v", err)
	}
	acc.Name += "€"
	if err := acc.Validate(); err == nil {
		t.Fatalf("expected 101 characters to fail")
	}

	u := User{Username: strings.Repeat("ü", 50), Email: "u@example.com", FullName: "U", Role: RoleEmployee}
	if err := u.Validate(); err != nil {
		t.Fatalf("expected 50 character username to pass, got %v", err)
	}
}

func TestAccountBalanceRange(t *testing.T) {
	acc := Account{Name: "Caja", Type: Checking, Balance: MaxMoney.Neg()}
	if err := acc.Validate(); err != nil {
		t.Fatalf("expected max magnitude to pass, got %v", err)
	}
	acc.Balance = MaxMoney.Add(MoneyFromCents(1))
	var ve *ValidationError
	if !errors.As(acc.Validate(), &ve) {
		t.Fatalf("expected ValidationError")
	}
	if _, ok := ve.Fields["balance"]; !ok {
		t.Fatalf("expected balance to fail, got %v", ve.Fields)
	}
}

func TestRegistrationValidate(t *testing.T) {
	good := Registration{Username: "maria", Email: "maria@example.com", Password: "secret1", FullName: "María"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := Registration{Username: "ab", Email: "nope", Password: "123", Role: "owner"}
	var ve *ValidationError
	if !errors.As(bad.Validate(), &ve) {
		t.Fatalf("expected ValidationError")
	}
	for _, f := range []string{"username", "email", "password", "fullName", "role"} {
		if _, ok := ve.Fields[f]; !ok {
			t.Fatalf("expected %s to fail, got %v", f, ve.Fields)
		}
	}

	// bcrypt only reads the first 72 bytes of a password.
	long := good
	long.Password = strings.Repeat("x", 73)
	if !errors.As(long.Validate(), &ve) || ve.Fields["password"] != "password must be at most 72 bytes" {
		t.Fatalf("expected password length error, got %v", long.Validate())
	}
	long.Password = strings.Repeat("x", 72)
	if err := long.Validate(); err != nil {
		t.Fatalf("expected 72 bytes to pass, got %v", err)
	}
}

func TestTransactionMarkers(t *testing.T) {
	cases := []struct {
		tx       Transaction
		internal bool
	}{
		{Transaction{ThirdParty: TransferMarker}, true},
		{Transaction{Description: "Pago de préstamo - Banco"}, true},
		{Transaction{Description: "Pago de luz", ThirdParty: "Proveedor"}, false},
	}
	for i, tc := range cases {
		if got := tc.tx.IsInternal(); got != tc.internal {
			t.Fatalf("case %d expected %v, got %v", i, tc.internal, got)
		}
	}
}

func TestTransactionPatchDistinguishesNullFromAbsent(t *testing.T) {
	tx := Transaction{Description: "a", CategoryID: Ref(3), AccountID: Ref(7)}

	var p TransactionPatch
	if err := json.Unmarshal([]byte(`{"categoryId":null,"amount":"5.5"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p.Apply(&tx)

	if tx.CategoryID != nil {
		t.Fatalf("expected category cleared")
	}
	if tx.AccountID == nil || *tx.AccountID != 7 {
		t.Fatalf("expected account untouched")
	}
	if tx.Amount.String() != "5.50" {
		t.Fatalf("expected amount 5.50, got %s", tx.Amount)
	}
	if !p.TouchesPosting() {
		t.Fatalf("amount change must touch posting")
	}
}

func TestSignedAmount(t *testing.T) {
	in := Transaction{Type: Income, Amount: MoneyFromCents(2000)}
	out := Transaction{Type: Expense, Amount: MoneyFromCents(3000)}
	if mustCents(t, in.SignedAmount()) != 2000 || mustCents(t, out.SignedAmount()) != -3000 {
		t.Fatalf("unexpected signed amounts %s %s", in.SignedAmount(), out.SignedAmount())
	}
}
