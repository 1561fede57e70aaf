package scheduler

import (
	"context"
	"time"

	"SentimentScanner/internal/ports"
)

// TickerScheduler is the built-in run driver: it fires the job once at
// startup and then on a fixed interval. Production deployments usually
// trigger runs through an external cron hitting the ops endpoint instead.
type TickerScheduler struct {
	interval time.Duration
	location *time.Location
	stop     chan struct{}
}

var _ ports.Scheduler = (*TickerScheduler)(nil)

// NewTickerScheduler builds a scheduler firing every interval, reporting
// trigger times in the given location.
func NewTickerScheduler(interval time.Duration, location *time.Location) *TickerScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if location == nil {
		location = time.UTC
	}
	return &TickerScheduler{interval: interval, location: location}
}

// Start launches the ticking goroutine. Idempotent while running.
func (s *TickerScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if s.stop != nil {
		return nil
	}

	// The goroutine selects on a captured copy so Stop can clear the
	// field without racing the ticking loop.
	stop := make(chan struct{})
	s.stop = stop
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		job(time.Now().In(s.location))
		for {
			select {
			case t := <-ticker.C:
				job(t.In(s.location))
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (s *TickerScheduler) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}
