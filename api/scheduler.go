/*
scheduler.go - Periodic accrual trigger

PURPOSE:
  Runs the accrual engine on a fixed interval. The ledger itself has no
  scheduler; this is an optional transport-side trigger enabled by
  ACCRUAL_SCHEDULER_ENABLED.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Every tick accrues with today's date as the reference date
  - Runs in idempotent mode, so a tick that lands in an already accrued
    period books nothing and only counts duplicates

USAGE:
  scheduler := NewAccrualScheduler(svc, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAccrual endpoint (manual trigger)
  - leave/accrual.go: Accrual engine
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// AccrualScheduler triggers accrual runs on an interval.
type AccrualScheduler struct {
	Service  *leave.Service
	Interval time.Duration
	Method   generic.AccrualMethod
	Rounding generic.Rounding
	Enabled  bool

	logger *slog.Logger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewAccrualScheduler(svc *leave.Service, logger *slog.Logger) *AccrualScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccrualScheduler{
		Service:  svc,
		Interval: 24 * time.Hour,
		Method:   generic.AccrualMonthly,
		Rounding: generic.RoundNone,
		Enabled:  true,
		logger:   logger.With("component", "accrual_scheduler"),
		now:      time.Now,
	}
}

// Start begins the scheduler. The first run happens immediately.
func (s *AccrualScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.logger.Info("scheduler started", "interval", s.Interval.String(), "method", s.Method)
}

// Stop stops the scheduler and waits for an in-flight run.
func (s *AccrualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("scheduler stopped")
}

func (s *AccrualScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	s.RunNow(ctx)
	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow performs one accrual run with today as the reference date.
func (s *AccrualScheduler) RunNow(ctx context.Context) (*leave.AccrualResult, error) {
	result, err := s.Service.RunAccrual(ctx, leave.AccrualInput{
		ReferenceDate: generic.DateOf(s.now()),
		Method:        s.Method,
		Rounding:      s.Rounding,
		Idempotent:    true,
		ActorID:       "scheduler",
	})
	if err != nil {
		s.logger.Error("scheduled accrual failed", "error", err)
		return nil, err
	}
	if result.Created > 0 || len(result.Failures) > 0 {
		s.logger.Info("scheduled accrual completed",
			"period", result.Period.String(),
			"created", result.Created,
			"duplicates", result.Duplicates,
			"failed", len(result.Failures),
		)
	}
	return result, nil
}
