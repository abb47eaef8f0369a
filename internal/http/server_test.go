package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/store/memory"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	st, err := memory.NewSeeded()
	require.NoError(t, err)

	logger := log.New(log.Config{Output: io.Discard})
	srv := NewServer(":0", Deps{
		Store:      st,
		Auth:       services.NewAuthService(st, services.AuthConfig{}, logger),
		Ledger:     services.NewLedgerService(st, nil, logger),
		Accounts:   services.NewAccountService(st, logger),
		Categories: services.NewCategoryService(st),
		Analytics:  services.NewAnalyticsService(st),
		Bot:        services.NewBotConfigService(st),
		Logger:     logger,
	}, opts)
	t.Cleanup(srv.limiter.Stop)
	return srv
}

// do sends a request through the full middleware chain. token, when set,
// goes in a Bearer header.
func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func login(t *testing.T, srv *Server, username, password string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/auth/login", "", loginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[sessionResponse](t, rec).Token
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])

	rec = do(t, srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rec)["status"])
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestLoginSetsSessionCookie(t *testing.T) {
	srv := newTestServer(t, Options{CookieSecure: true})

	rec := do(t, srv, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "admin", Password: "admin123"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[sessionResponse](t, rec)
	assert.Equal(t, "admin", resp.User.Username)
	assert.Len(t, resp.Token, 43)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Equal(t, resp.Token, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, int(services.DefaultSessionTTL.Seconds()), c.MaxAge)

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(c)
	me := httptest.NewRecorder()
	srv.Handler.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, core.RoleAdmin, decode[core.User](t, me).Role)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	srv := newTestServer(t, Options{})

	wrongPassword := do(t, srv, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "admin", Password: "nope"})
	unknownUser := do(t, srv, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "ghost", Password: "nope"})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestMeRequiresSession(t *testing.T) {
	srv := newTestServer(t, Options{})

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/auth/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/auth/me", "bogus", nil).Code)

	token := login(t, srv, "admin", "admin123")
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/auth/me", token, nil).Code)
}

func TestStaleCookieIsCleared(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired-or-unknown"})
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, "admin", "admin123")

	rec := do(t, srv, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/auth/me", token, nil).Code)

	// logging out twice is harmless
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPost, "/api/auth/logout", token, nil).Code)
}

func TestRegisterRoles(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/auth/register", "", core.Registration{
		Username: "maria", Email: "maria@example.com", Password: "secret1", FullName: "María López",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, core.RoleEmployee, decode[core.User](t, rec).Role)

	rec = do(t, srv, http.MethodPost, "/api/auth/register", "", core.Registration{
		Username: "maria", Email: "other@example.com", Password: "secret1", FullName: "Otra",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	anonAdmin := core.Registration{
		Username: "boss", Email: "boss@example.com", Password: "secret1", FullName: "Boss", Role: core.RoleAdmin,
	}
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPost, "/api/auth/register", "", anonAdmin).Code)

	token := login(t, srv, "admin", "admin123")
	rec = do(t, srv, http.MethodPost, "/api/auth/register", token, anonAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, core.RoleAdmin, decode[core.User](t, rec).Role)

	rec = do(t, srv, http.MethodPost, "/api/auth/register", "", core.Registration{Username: "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorBody](t, rec)
	assert.Equal(t, "validation failed", body.Error)
	assert.Contains(t, body.Fields, "email")
	assert.Contains(t, body.Fields, "password")
}

func TestUsersRequireAdmin(t *testing.T) {
	srv := newTestServer(t, Options{})
	do(t, srv, http.MethodPost, "/api/auth/register", "", core.Registration{
		Username: "maria", Email: "maria@example.com", Password: "secret1", FullName: "María López",
	})

	employee := login(t, srv, "maria", "secret1")
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodGet, "/api/users", employee, nil).Code)

	admin := login(t, srv, "admin", "admin123")
	rec := do(t, srv, http.MethodGet, "/api/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.User](t, rec), 2)
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, "admin", "admin123")

	accounts := decode[[]core.Account](t, do(t, srv, http.MethodGet, "/api/accounts", token, nil))
	require.NotEmpty(t, accounts)
	checking := accounts[0]
	require.Equal(t, "15000.00", checking.Balance.String())

	rec := do(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"type":            "expense",
		"amount":          "100.50",
		"description":     "Papelería",
		"accountId":       checking.ID,
		"transactionDate": "2024-03-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[services.PostingResult](t, rec)
	assert.Equal(t, services.PostingApplied, created.Posting.Status)
	require.NotNil(t, created.Posting.Balance)
	assert.Equal(t, "14899.50", created.Posting.Balance.String())

	path := "/api/transactions/" + strconv.FormatInt(created.Transaction.ID, 10)

	rec = do(t, srv, http.MethodPatch, path, token, map[string]any{"amount": "50.00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[services.UpdateResult](t, rec)
	assert.Equal(t, "50.00", updated.Transaction.Amount.String())
	assert.Equal(t, services.PostingApplied, updated.Posting.Status)

	acc := decode[core.Account](t, do(t, srv, http.MethodGet, "/api/accounts/"+strconv.FormatInt(checking.ID, 10), token, nil))
	assert.Equal(t, "14950.00", acc.Balance.String())

	rec = do(t, srv, http.MethodGet, "/api/transactions?start=2024-03-01&end=2024-03-31", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Transaction](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/transactions?start=2024-04-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]core.Transaction](t, rec))

	rec = do(t, srv, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.PostingApplied, decode[services.DeleteResult](t, rec).Reversal.Status)

	acc = decode[core.Account](t, do(t, srv, http.MethodGet, "/api/accounts/"+strconv.FormatInt(checking.ID, 10), token, nil))
	assert.Equal(t, "15000.00", acc.Balance.String())

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, path, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, path, token, nil).Code)
}

func TestTransactionWithMissingAccount(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, "admin", "admin123")

	var nextID int64
	for _, a := range decode[[]core.Account](t, do(t, srv, http.MethodGet, "/api/accounts", token, nil)) {
		nextID = max(nextID, a.ID)
	}
	nextID++

	rec := do(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"type":        "income",
		"amount":      "10",
		"description": "Venta",
		"accountId":   nextID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[services.PostingResult](t, rec)
	assert.Equal(t, services.PostingAccountMissing, created.Posting.Status)
	assert.Nil(t, created.Transaction.PostedAccountID)

	// An account that reuses the id later must not absorb the reversal.
	rec = do(t, srv, http.MethodPost, "/api/accounts", token, map[string]any{"name": "Nueva", "type": "checking", "balance": "100.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	acc := decode[core.Account](t, rec)
	require.Equal(t, nextID, acc.ID)

	rec = do(t, srv, http.MethodDelete, "/api/transactions/"+strconv.FormatInt(created.Transaction.ID, 10), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.PostingNone, decode[services.DeleteResult](t, rec).Reversal.Status)

	acc = decode[core.Account](t, do(t, srv, http.MethodGet, "/api/accounts/"+strconv.FormatInt(nextID, 10), token, nil))
	assert.Equal(t, "100.00", acc.Balance.String())
}

func TestTransactionsAreOwnerScoped(t *testing.T) {
	srv := newTestServer(t, Options{})
	admin := login(t, srv, "admin", "admin123")

	created := decode[services.PostingResult](t, do(t, srv, http.MethodPost, "/api/transactions", admin, map[string]any{
		"type": "income", "amount": "10", "description": "Venta",
	}))

	do(t, srv, http.MethodPost, "/api/auth/register", "", core.Registration{
		Username: "maria", Email: "maria@example.com", Password: "secret1", FullName: "María López",
	})
	employee := login(t, srv, "maria", "secret1")

	path := "/api/transactions/" + strconv.FormatInt(created.Transaction.ID, 10)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, path, employee, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, path, employee, nil).Code)
	assert.Empty(t, decode[[]core.Account](t, do(t, srv, http.MethodGet, "/api/accounts", employee, nil)))
}

func TestTransferAndLoanPayment(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, "admin", "admin123")

	accounts := decode[[]core.Account](t, do(t, srv, http.MethodGet, "/api/accounts", token, nil))
	require.Len(t, accounts, 2)
	var checking, loan core.Account
	for _, a := range accounts {
		if a.Type.IsDebt() {
			loan = a
		} else {
			checking = a
		}
	}

	savings := decode[core.Account](t, do(t, srv, http.MethodPost, "/api/accounts", token, core.AccountDraft{
		Name: "Ahorros", Type: core.Savings,
	}))

	rec := do(t, srv, http.MethodPost, "/api/transfers", token, map[string]any{
		"fromAccountId": checking.ID, "toAccountId": savings.ID, "amount": "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tr := decode[services.TransferResult](t, rec)
	assert.Equal(t, "14000.00", tr.Withdrawal.Posting.Balance.String())
	assert.Equal(t, "1000.00", tr.Deposit.Posting.Balance.String())

	rec = do(t, srv, http.MethodPost, "/api/loan-payments", token, map[string]any{
		"fromAccountId": checking.ID, "loanAccountId": loan.ID, "amount": "500",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	lp := decode[services.LoanPaymentResult](t, rec)
	assert.Equal(t, "13500.00", lp.Payment.Posting.Balance.String())
	assert.Equal(t, "49500.00", lp.Reduction.Posting.Balance.String())

	rec = do(t, srv, http.MethodPost, "/api/transfers", token, map[string]any{
		"fromAccountId": checking.ID, "toAccountId": checking.ID, "amount": "1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// internal movements stay out of the analytics
	rec = do(t, srv, http.MethodGet, "/api/analytics/expenses-by-category", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[core.CategoryTotals](t, rec))
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, "admin", "admin123")

	rec := do(t, srv, http.MethodGet, "/api/analytics/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[core.Summary](t, rec)
	assert.Equal(t, "50000.00", sum.PendingLoans.String())

	rec = do(t, srv, http.MethodGet, "/api/analytics/monthly-trends", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/analytics/summary", "", nil).Code)
}

func TestCategoryCRUD(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, "admin", "admin123")

	cats := decode[[]core.Category](t, do(t, srv, http.MethodGet, "/api/categories", token, nil))
	assert.Len(t, cats, 7)

	rec := do(t, srv, http.MethodPost, "/api/categories", token, core.CategoryDraft{Name: "Marketing", Color: "#000000", Type: core.Expense})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[core.Category](t, rec)
	path := "/api/categories/" + strconv.FormatInt(c.ID, 10)

	rec = do(t, srv, http.MethodPatch, path, token, map[string]any{"name": "Publicidad"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Publicidad", decode[core.Category](t, rec).Name)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, path, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, path, token, nil).Code)
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, "admin", "admin123")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		msg    string
		field  string
	}{
		{"malformed json", http.MethodPost, "/api/transactions", "{", http.StatusBadRequest, "invalid JSON body", ""},
		{"empty body", http.MethodPost, "/api/accounts", "", http.StatusBadRequest, "request body is empty", ""},
		{"bad id", http.MethodGet, "/api/accounts/abc", nil, http.StatusBadRequest, "invalid id", ""},
		{"bad date", http.MethodGet, "/api/transactions?start=yesterday", nil, http.StatusBadRequest, "validation failed", "start"},
		{"unknown route", http.MethodGet, "/api/nothing", nil, http.StatusNotFound, "not found", ""},
		{"invalid amount", http.MethodPost, "/api/transactions", map[string]any{"type": "expense", "amount": "-5", "description": "x"}, http.StatusBadRequest, "validation failed", "amount"},
		{"unparseable amount", http.MethodPost, "/api/transactions",
			`{"type":"expense","amount":"abc","description":"x"}`, http.StatusBadRequest, "validation failed", "amount"},
		{"unparseable date", http.MethodPost, "/api/transactions",
			`{"type":"expense","amount":"5","description":"x","transactionDate":"2024-13-45"}`, http.StatusBadRequest, "validation failed", "transactionDate"},
		{"amount beyond maximum", http.MethodPost, "/api/transactions",
			`{"type":"expense","amount":"10000000000000","description":"x"}`, http.StatusBadRequest, "validation failed", "amount"},
		{"balance beyond maximum", http.MethodPost, "/api/accounts",
			`{"name":"Caja","type":"checking","balance":"-10000000000000"}`, http.StatusBadRequest, "validation failed", "balance"},
		{"wrong member type", http.MethodPost, "/api/accounts",
			`{"name":5,"type":"checking"}`, http.StatusBadRequest, "validation failed", "name"},
		{"password over 72 bytes", http.MethodPost, "/api/auth/register", core.Registration{
			Username: "longpass", Email: "longpass@example.com", Password: strings.Repeat("p", 80), FullName: "L",
		}, http.StatusBadRequest, "validation failed", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[ErrorBody](t, rec)
			assert.Equal(t, tt.msg, body.Error)
			if tt.field != "" {
				assert.Contains(t, body.Fields, tt.field)
			}
		})
	}
}

func TestBotPlaceholder(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, "admin", "admin123")

	rec := do(t, srv, http.MethodPost, "/api/bot/webhook", "", map[string]any{"update_id": 1})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "ignored", decode[map[string]string](t, rec)["status"])

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/bot/config", token, nil).Code)

	rec = do(t, srv, http.MethodPut, "/api/bot/config", token, map[string]any{"botToken": "123456:ABCDEF"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "********CDEF", decode[services.BotConfigView](t, rec).TokenMasked)
	assert.NotContains(t, rec.Body.String(), "123456")

	rec = do(t, srv, http.MethodPost, "/api/bot/webhook", "", map[string]any{"update_id": 2})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rec := do(t, srv, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "admin", Password: "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(t, srv, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// reads are never limited
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "", nil).Code)
	}
}
