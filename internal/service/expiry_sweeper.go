package service

import (
	"context"
	"time"

	"github.com/vaporchat/vapor-backend/internal/domain"
	"github.com/vaporchat/vapor-backend/internal/metrics"
	"github.com/vaporchat/vapor-backend/internal/repository"
	pkglogger "github.com/vaporchat/vapor-backend/pkg/logger"
)

const (
	sweepBatchLimit   = 500
	sweepQueryRetries = 3
)

// ExpirySweeper finds messages past their TTL deadline and hands each one
// to the deletion coordinator, independent of delivery state. The sweep is
// at-least-once: a restart mid-sweep is safe because re-discovered messages
// no-op on the idempotent delete.
type ExpirySweeper struct {
	repo     repository.MessageRepository
	deletion DeletionService
	now      func() time.Time
}

// NewExpirySweeper creates a new ExpirySweeper
func NewExpirySweeper(repo repository.MessageRepository, deletion DeletionService) *ExpirySweeper {
	return &ExpirySweeper{
		repo:     repo,
		deletion: deletion,
		now:      time.Now,
	}
}

// Sweep runs one cycle. The expiry query is retried with backoff on
// transient store failure; per-message deletion failures are logged and
// skipped so one bad row never aborts the rest of the cycle.
func (s *ExpirySweeper) Sweep() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, err := s.findExpiredWithRetry(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, msg := range expired {
		if err := s.deletion.Delete(ctx, msg.ChatID, msg.ID, domain.DeletionReasonExpired); err != nil {
			failed++
			metrics.SweepItemErrors.Inc()
			pkglogger.WithMessage(msg.ChatID, msg.ID).Error().
				Err(err).
				Msg("expiry deletion failed, skipping until next sweep")
		}
	}

	metrics.SweepCycles.Inc()
	if len(expired) > 0 {
		pkglogger.GetLogger().Info().
			Int("expired", len(expired)).
			Int("failed", failed).
			Msg("expiry sweep cycle finished")
	}
	return nil
}

func (s *ExpirySweeper) findExpiredWithRetry(ctx context.Context) ([]*domain.Message, error) {
	backoff := time.Second
	var lastErr error

	for attempt := 0; attempt < sweepQueryRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		expired, err := s.repo.FindExpired(s.now(), sweepBatchLimit)
		if err == nil {
			return expired, nil
		}
		lastErr = err
		pkglogger.GetLogger().Warn().
			Err(err).
			Int("attempt", attempt+1).
			Msg("expiry query failed")
	}
	return nil, lastErr
}
