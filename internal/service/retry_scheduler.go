package service

import (
	"context"
	"errors"
	"time"

	"github.com/customs-screening-pipeline/internal/models"
)

// StartScheduler retries due failures on every tick until ctx is cancelled
// or StopScheduler is called. It blocks, so callers run it in a goroutine.
func (s *failureService) StartScheduler(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	interval := s.cfg.SchedulerInterval
	if interval <= 0 {
		interval = time.Minute
	}

	s.log.Info().Dur("interval", interval).Int("workers", cap(s.sem)).Msg("Retry scheduler started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Retry scheduler stopping")
			return
		case <-ticker.C:
			s.retryDue()
		}
	}
}

// StopScheduler stops the scheduler and waits for retries in flight
func (s *failureService) StopScheduler() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Retry scheduler stopped")
}

// retryDue retries one batch of pending failures whose backoff has elapsed
func (s *failureService) retryDue() {
	due, err := s.failures.ListDue(s.ctx, s.now(), s.cfg.SchedulerBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list due failures")
		return
	}
	if len(due) > 0 {
		s.log.Debug().Int("due", len(due)).Msg("Retrying due failures")
	}

	for _, f := range due {
		// backpressure: wait for a free worker
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return
		}
		// select picks randomly when both are ready
		if s.ctx.Err() != nil {
			<-s.sem
			return
		}

		s.wg.Add(1)
		go func(f *models.FailureRecord) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("failure_id", f.ID).
						Msg("Scheduled retry panicked - recovered")
				}
			}()

			if _, err := s.Retry(s.ctx, f.ID); err != nil &&
				!errors.Is(err, ErrNotRetriable) && !errors.Is(err, ErrRetryInFlight) {
				s.log.Error().Err(err).Str("failure_id", f.ID).Msg("Scheduled retry failed")
			}
		}(f)
	}
}
