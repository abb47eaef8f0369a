package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func mustCents(t *testing.T, m Money) int64 {
	t.Helper()
	c, err := m.Cents()
	if err != nil {
		t.Fatalf("cents of %s: %v", m, err)
	}
	return c
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{"12.345", 1235, true},
		{" 2.50 ", 250, true},
		{"-1.5", -150, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
		{"9999999999999.99", 999999999999999, true},
		{"-9999999999999.99", -999999999999999, true},
		{"10000000000000", 0, false},
		{"9999999999999.995", 0, false},
		{"92233720368547758.08", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q: %v", tc.in, err)
			}
			if c := mustCents(t, got); c != tc.out {
				t.Fatalf("%q expected %d cents, got %d", tc.in, tc.out, c)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[string]Money{
		"12.30":  MustParseMoney("12.3"),
		"0.00":   Zero,
		"-5.05":  MoneyFromCents(-505),
		"100.00": MoneyFromCents(10000),
	}
	for want, m := range cases {
		if got := m.String(); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestMoneyArithmeticHasNoFloatDrift(t *testing.T) {
	sum := Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(MustParseMoney("0.10"))
	}
	if !sum.Equal(MustParseMoney("1.00")) {
		t.Fatalf("expected 1.00, got %s", sum)
	}
	if got := MustParseMoney("100").Sub(MustParseMoney("30")).Add(MustParseMoney("20")); got.String() != "90.00" {
		t.Fatalf("expected 90.00, got %s", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := MoneyFromCents(1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := Zero.Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := MoneyFromCents(-1).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
	if err := MaxMoney.Validate(); err != nil {
		t.Fatalf("expected max to be valid, got %v", err)
	}
	if err := MaxMoney.Add(MoneyFromCents(1)).Validate(); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
}

func TestMoneyCentsFailsInsteadOfWrapping(t *testing.T) {
	if c := mustCents(t, MoneyFromCents(math.MaxInt64)); c != math.MaxInt64 {
		t.Fatalf("expected max int64, got %d", c)
	}
	if c := mustCents(t, MoneyFromCents(math.MinInt64)); c != math.MinInt64 {
		t.Fatalf("expected min int64, got %d", c)
	}
	over := MoneyFromCents(math.MaxInt64).Add(MoneyFromCents(1))
	if c, err := over.Cents(); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected out of range, got %d (err=%v)", c, err)
	}
	under := MoneyFromCents(math.MinInt64).Sub(MoneyFromCents(1))
	if c, err := under.Cents(); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected out of range, got %d (err=%v)", c, err)
	}
}

func TestMoneyJSON(t *testing.T) {
	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":"12.30","b":0.1}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if mustCents(t, v.A) != 1230 || mustCents(t, v.B) != 10 {
		t.Fatalf("unexpected values %s %s", v.A, v.B)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":"12.30","b":"0.10"}` {
		t.Fatalf("unexpected json %s", out)
	}
	if err := json.Unmarshal([]byte(`{"a":"x"}`), &v); err == nil {
		t.Fatalf("expected error for bad amount")
	}
}
