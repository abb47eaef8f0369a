package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "valid", body: `{"name":"Caja"}`},
		{name: "empty", body: ``, wantMsg: "request body is empty"},
		{name: "malformed", body: `{"name":`, wantMsg: "invalid JSON body"},
		{name: "trailing data", body: `{"name":"a"} {"name":"b"}`, wantMsg: "invalid JSON body"},
		{name: "too large", body: `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`, wantMsg: "request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var v struct{ Name string }
			err := decodeJSON(httptest.NewRecorder(), r, &v)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, "Caja", v.Name)
				return
			}
			var de *decodeError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, tt.wantMsg, de.msg)
		})
	}
}

func TestDecodeJSON_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{name: "amount", body: `{"amount":"abc","description":"x"}`, fields: []string{"amount"}},
		{name: "amount out of range", body: `{"amount":"10000000000000"}`, fields: []string{"amount"}},
		{name: "date", body: `{"amount":"1","transactionDate":"2024-13-45"}`, fields: []string{"transactionDate"}},
		{name: "wrong member type", body: `{"description":5,"accountId":"one"}`, fields: []string{"description", "accountId"}},
		{name: "several", body: `{"amount":"abc","transactionDate":"ayer"}`, fields: []string{"amount", "transactionDate"}},
		{name: "not an object", body: `["amount"]`, fields: []string{"body"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var d core.TransactionDraft
			err := decodeJSON(httptest.NewRecorder(), r, &d)
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			for _, f := range tt.fields {
				assert.Contains(t, ve.Fields, f)
			}
			assert.Len(t, ve.Fields, len(tt.fields))
		})
	}

	t.Run("patch fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"amount":"12,5,0","notes":"ok"}`))
		var p core.TransactionPatch
		err := decodeJSON(httptest.NewRecorder(), r, &p)
		var ve *core.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"amount"}, keys(ve.Fields))
		assert.Contains(t, ve.Fields["amount"], "invalid amount")
	})
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.SetPathValue("id", tt.raw)
			got, err := pathID(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDateRange(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?start=2024-01-01&end=2024-01-31", nil)
	rng, err := parseDateRange(r)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", rng.Start.String())
	assert.Equal(t, "2024-01-31", rng.End.String())

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	rng, err = parseDateRange(r)
	require.NoError(t, err)
	assert.True(t, rng.Start.IsEmpty())
	assert.True(t, rng.End.IsEmpty())

	r = httptest.NewRequest(http.MethodGet, "/?start=01/02/2024&end=2024-13-01", nil)
	_, err = parseDateRange(r)
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "start")
	assert.Contains(t, ve.Fields, "end")
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"Bearer ":     "",
		"":            "",
	}
	for header, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, bearerToken(r), "header %q", header)
	}
}
