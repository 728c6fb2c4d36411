package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"snapgrid/internal/observability"
	"snapgrid/internal/repository"
)

// CounterService repairs denormalized counters that drifted from their rows.
type CounterService struct {
	repo repository.CounterRepository
}

// CounterReport is the number of rows repaired per counter.
type CounterReport map[string]int64

// Total sums the repaired rows.
func (r CounterReport) Total() int64 {
	var n int64
	for _, v := range r {
		n += v
	}
	return n
}

// Counters returns the counter names in a stable order.
func (r CounterReport) Counters() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NewCounterService(repo repository.CounterRepository) *CounterService {
	return &CounterService{repo: repo}
}

// Reconcile recomputes every counter once and records what it fixed.
func (s *CounterService) Reconcile(ctx context.Context) (report CounterReport, err error) {
	const op = "counters.reconcile"
	ctx, span := observability.StartSpan(ctx, "counters", "reconcile")
	started := observability.LogAsyncOperationStart(ctx, op)
	defer func() {
		span.End(err)
		observability.LogAsyncOperationEnd(ctx, op, started, err, slog.Int64("repaired", report.Total()))
	}()

	repaired, err := s.repo.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	report = CounterReport(repaired)
	for name, n := range report {
		if n > 0 {
			observability.CounterDriftRepaired.WithLabelValues(name).Add(float64(n))
		}
	}
	return report, nil
}

// Run reconciles every interval until ctx is done. Failed runs are logged
// and retried on the next tick.
func (s *CounterService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Reconcile(ctx)
		}
	}
}
