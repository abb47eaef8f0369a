package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/log"
)

// ExpiredSessionDeleter removes expired sessions and reports how many went.
type ExpiredSessionDeleter interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// SessionSweeperConfig holds configuration for the session sweeper
type SessionSweeperConfig struct {
	// Interval is how often expired sessions are deleted (default: 1h)
	Interval time.Duration
}

func DefaultSessionSweeperConfig() SessionSweeperConfig {
	return SessionSweeperConfig{Interval: time.Hour}
}

// SessionSweeper periodically deletes expired sessions from the store.
type SessionSweeper struct {
	sessions ExpiredSessionDeleter
	config   SessionSweeperConfig
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSessionSweeper(sessions ExpiredSessionDeleter, config SessionSweeperConfig, logger *log.Logger) *SessionSweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSessionSweeperConfig().Interval
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SessionSweeper{
		sessions: sessions,
		config:   config,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *SessionSweeper) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("session sweeper is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.logger.InfoContext(ctx, "Session sweeper started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
// After a timed-out Stop the sweeper still reports running; calling Stop
// again keeps waiting for the same loop.
func (p *SessionSweeper) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	doneCh := p.doneCh
	p.mu.Unlock()

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Session sweeper stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Session sweeper stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SessionSweeper) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SweepOnce deletes expired sessions a single time.
func (p *SessionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := p.sessions.SweepExpiredSessions(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to delete expired sessions", log.FieldError, err)
		return 0, err
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "Expired sessions deleted", "count", n)
	}
	return n, nil
}

func (p *SessionSweeper) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup
	_, _ = p.SweepOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.SweepOnce(ctx)
		}
	}
}
