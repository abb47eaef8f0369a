package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// Deps are the services behind the routes.
type Deps struct {
	Store      store.Store
	Auth       *services.AuthService
	Ledger     *services.LedgerService
	Accounts   *services.AccountService
	Categories *services.CategoryService
	Analytics  *services.AnalyticsService
	Bot        *services.BotConfigService
	Logger     *log.Logger
}

type Options struct {
	// DevErrors includes the underlying error in 5xx responses.
	DevErrors          bool
	CookieSecure       bool
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	store      store.Store
	auth       *services.AuthService
	ledger     *services.LedgerService
	accounts   *services.AccountService
	categories *services.CategoryService
	analytics  *services.AnalyticsService
	bot        *services.BotConfigService
	logger     *log.Logger

	devErrors    bool
	cookieSecure bool

	started      time.Time
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Requests pass trace, logger, security headers and rate
// limiting before reaching the route.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		store:        deps.Store,
		auth:         deps.Auth,
		ledger:       deps.Ledger,
		accounts:     deps.Accounts,
		categories:   deps.Categories,
		analytics:    deps.Analytics,
		bot:          deps.Bot,
		logger:       logger.WithComponent(log.ComponentHTTP),
		started:      time.Now(),
		devErrors:    opts.DevErrors,
		cookieSecure: opts.CookieSecure,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:     security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.SafeMethod, s.onRateLimit)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(logger)(h)
	h = log.Middleware(logger, trace.RequestIDFromRequest)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/auth/register", s.optionalAuth(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("GET /api/users", s.requireAdmin(s.handleListUsers))

	mux.HandleFunc("GET /api/categories", s.requireAuth(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.requireAuth(s.handleCreateCategory))
	mux.HandleFunc("GET /api/categories/{id}", s.requireAuth(s.handleGetCategory))
	mux.HandleFunc("PATCH /api/categories/{id}", s.requireAuth(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.requireAuth(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/accounts", s.requireAuth(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.requireAuth(s.handleCreateAccount))
	mux.HandleFunc("GET /api/accounts/{id}", s.requireAuth(s.handleGetAccount))
	mux.HandleFunc("PATCH /api/accounts/{id}", s.requireAuth(s.handleUpdateAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.requireAuth(s.handleDeleteAccount))

	mux.HandleFunc("GET /api/transactions", s.requireAuth(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.requireAuth(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/{id}", s.requireAuth(s.handleGetTransaction))
	mux.HandleFunc("PATCH /api/transactions/{id}", s.requireAuth(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.requireAuth(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/transfers", s.requireAuth(s.handleTransfer))
	mux.HandleFunc("POST /api/loan-payments", s.requireAuth(s.handlePayLoan))

	mux.HandleFunc("GET /api/analytics/summary", s.requireAuth(s.handleSummary))
	mux.HandleFunc("GET /api/analytics/expenses-by-category", s.requireAuth(s.handleExpensesByCategory))
	mux.HandleFunc("GET /api/analytics/monthly-trends", s.requireAuth(s.handleMonthlyTrends))

	mux.HandleFunc("GET /api/bot/config", s.requireAdmin(s.handleGetBotConfig))
	mux.HandleFunc("PUT /api/bot/config", s.requireAdmin(s.handlePutBotConfig))
	mux.HandleFunc("POST /api/bot/webhook", s.handleBotWebhook)

	mux.HandleFunc("/api/", s.handleNotFound)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "rate limit exceeded"})
}

// Shutdown stops the rate limiter and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
