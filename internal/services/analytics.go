package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// AnalyticsService loads an owner's data and runs the aggregations over
// it. Nothing is cached; every call reads the store.
type AnalyticsService struct {
	store store.Store
	now   func() time.Time
}

func NewAnalyticsService(st store.Store) *AnalyticsService {
	return &AnalyticsService{store: st, now: time.Now}
}

// WithClock replaces the time source that decides the current month.
func (s *AnalyticsService) WithClock(now func() time.Time) *AnalyticsService {
	s.now = now
	return s
}

func (s *AnalyticsService) Summary(ctx context.Context, owner int64) (core.Summary, error) {
	var (
		accounts []core.Account
		txs      []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccountsByUser(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		txs, err = s.store.ListTransactionsByUser(gctx, owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}
	return analytics.Summary(accounts, txs, s.now()), nil
}

func (s *AnalyticsService) ExpensesByCategory(ctx context.Context, owner int64) (core.CategoryTotals, error) {
	var (
		txs  []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = s.store.ListTransactionsByUser(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		cats, err = s.store.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return analytics.ExpensesByCategory(txs, cats), nil
}

func (s *AnalyticsService) MonthlyTrends(ctx context.Context, owner int64) ([]core.MonthlyTrend, error) {
	txs, err := s.store.ListTransactionsByUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	return analytics.MonthlyTrends(txs), nil
}
