package service

import (
	"context"
	"time"

	"github.com/vaporchat/vapor-backend/internal/domain"
	"github.com/vaporchat/vapor-backend/internal/metrics"
	"github.com/vaporchat/vapor-backend/internal/repository"
	"github.com/vaporchat/vapor-backend/internal/scheduler"
	pkgcache "github.com/vaporchat/vapor-backend/pkg/cache"
	pkglogger "github.com/vaporchat/vapor-backend/pkg/logger"
)

// MediaStore is the blob-storage collaborator. The coordinator only ever
// deletes by reference; the store owns the bytes.
type MediaStore interface {
	Delete(ctx context.Context, key string) error
}

// DeletionService is the single removal path shared by the completion
// detector and the expiry sweeper. Both racing triggers converge on the
// idempotent Delete below, so no distributed lock is needed.
type DeletionService interface {
	// Delete removes the media blob (best effort) and then marks the
	// message record terminally deleted in one atomic write. Deleting an
	// already-deleted message is a successful no-op regardless of reason.
	Delete(ctx context.Context, chatID, messageID string, reason domain.DeletionReason) error

	// ScheduleAfterCompletion queues a grace-delayed deletion for a fully
	// delivered message. Duplicate detections queue at most one job per
	// message: in-process via the scheduler key, across instances via a
	// Redis SETNX claim.
	ScheduleAfterCompletion(ctx context.Context, chatID, messageID string)
}

type deletionService struct {
	repo     repository.MessageRepository
	media    MediaStore
	cache    pkgcache.Service
	notifier Notifier
	sched    *scheduler.Scheduler
	grace    time.Duration
}

// NewDeletionService creates a new DeletionService
func NewDeletionService(
	repo repository.MessageRepository,
	media MediaStore,
	cache pkgcache.Service,
	notifier Notifier,
	sched *scheduler.Scheduler,
	grace time.Duration,
) DeletionService {
	return &deletionService{
		repo:     repo,
		media:    media,
		cache:    cache,
		notifier: notifier,
		sched:    sched,
		grace:    grace,
	}
}

func (s *deletionService) Delete(ctx context.Context, chatID, messageID string, reason domain.DeletionReason) error {
	msg, err := s.repo.FindWithReceipts(chatID, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		// Terminal already; retries and racing triggers land here.
		return nil
	}

	// Media first, record second. A failed blob delete is logged and
	// swallowed: a leaked blob costs storage, a message that can never be
	// cleaned up costs correctness.
	if msg.MediaKey != "" && s.media != nil {
		if err := s.media.Delete(ctx, msg.MediaKey); err != nil {
			metrics.MediaDeleteFailures.Inc()
			pkglogger.WithMessage(chatID, messageID).Error().
				Err(err).
				Str("media_key", msg.MediaKey).
				Msg("media delete failed, continuing with record deletion")
		}
	}

	if err := s.repo.MarkDeleted(chatID, messageID, reason, time.Now()); err != nil {
		return err
	}

	metrics.MessagesDeleted.WithLabelValues(string(reason)).Inc()
	pkglogger.WithMessage(chatID, messageID).Info().
		Str("reason", string(reason)).
		Msg("message deleted")

	// Fire-and-forget: everyone who could still hold the message learns it
	// is gone so clients drop their local copies too.
	if s.notifier != nil {
		s.notifier.NotifyMessageDeleted(msg.SenderID, chatID, messageID)
		for _, r := range msg.Receipts {
			s.notifier.NotifyMessageDeleted(r.RecipientID, chatID, messageID)
		}
	}
	return nil
}

func (s *deletionService) ScheduleAfterCompletion(ctx context.Context, chatID, messageID string) {
	key := "grace-deletion:" + messageID
	if s.sched.Pending(key) {
		return
	}

	if s.cache != nil {
		// Claim TTL outlives the grace delay so the key cannot expire
		// before the job fires; the fired job releases it.
		acquired, err := s.cache.AcquirePendingDeletion(ctx, messageID, s.grace+time.Minute)
		if err != nil {
			pkglogger.WithMessage(chatID, messageID).Error().
				Err(err).
				Msg("pending-deletion claim failed, falling back to local dedup")
		} else if !acquired {
			return
		}
	}

	queued := s.sched.ScheduleOnce(key, s.grace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.Delete(ctx, chatID, messageID, domain.DeletionReasonAllReceived); err != nil {
			pkglogger.WithMessage(chatID, messageID).Error().
				Err(err).
				Msg("grace-delayed deletion failed")
		}
		if s.cache != nil {
			_ = s.cache.ReleasePendingDeletion(ctx, messageID)
		}
	})
	if queued {
		metrics.DeletionJobsScheduled.Inc()
		pkglogger.WithMessage(chatID, messageID).Info().
			Dur("grace_delay", s.grace).
			Msg("deletion scheduled after full delivery")
	}
}
