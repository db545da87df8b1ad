package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
	"github.com/vaporchat/vapor-backend/internal/scheduler"
)

func liveMessage(mediaKey string) *domain.Message {
	return &domain.Message{
		ID:       "m1",
		ChatID:   "c1",
		MediaKey: mediaKey,
	}
}

func TestDeleteRemovesMediaThenRecord(t *testing.T) {
	repo := new(MockMessageRepository)
	media := &fakeMediaStore{}
	svc := NewDeletionService(repo, media, nil, nil, scheduler.New(time.Second), 30*time.Second)

	repo.On("FindWithReceipts", "c1", "m1").Return(liveMessage("media/key.jpg"), nil)
	repo.On("MarkDeleted", "c1", "m1", domain.DeletionReasonExpired, mock.Anything).Return(nil)

	err := svc.Delete(context.Background(), "c1", "m1", domain.DeletionReasonExpired)
	assert.NoError(t, err)
	assert.Equal(t, []string{"media/key.jpg"}, media.deletes())
	repo.AssertExpectations(t)
}

func TestDeleteAlreadyDeletedIsNoOp(t *testing.T) {
	repo := new(MockMessageRepository)
	media := &fakeMediaStore{}
	svc := NewDeletionService(repo, media, nil, nil, scheduler.New(time.Second), 30*time.Second)

	msg := liveMessage("media/key.jpg")
	msg.IsDeleted = true
	repo.On("FindWithReceipts", "c1", "m1").Return(msg, nil)

	// Second delete with any reason: success, no media call, no write.
	err := svc.Delete(context.Background(), "c1", "m1", domain.DeletionReasonAllReceived)
	assert.NoError(t, err)
	assert.Empty(t, media.deletes())
	repo.AssertNotCalled(t, "MarkDeleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteSwallowsMediaFailure(t *testing.T) {
	repo := new(MockMessageRepository)
	media := &fakeMediaStore{err: errors.New("bucket unreachable")}
	svc := NewDeletionService(repo, media, nil, nil, scheduler.New(time.Second), 30*time.Second)

	repo.On("FindWithReceipts", "c1", "m1").Return(liveMessage("media/key.jpg"), nil)
	repo.On("MarkDeleted", "c1", "m1", domain.DeletionReasonExpired, mock.Anything).Return(nil)

	// A stuck blob must never block the record deletion.
	err := svc.Delete(context.Background(), "c1", "m1", domain.DeletionReasonExpired)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestDeleteWithoutMediaSkipsStore(t *testing.T) {
	repo := new(MockMessageRepository)
	media := &fakeMediaStore{}
	svc := NewDeletionService(repo, media, nil, nil, scheduler.New(time.Second), 30*time.Second)

	repo.On("FindWithReceipts", "c1", "m1").Return(liveMessage(""), nil)
	repo.On("MarkDeleted", "c1", "m1", domain.DeletionReasonExpired, mock.Anything).Return(nil)

	assert.NoError(t, svc.Delete(context.Background(), "c1", "m1", domain.DeletionReasonExpired))
	assert.Empty(t, media.deletes())
}

func TestDeleteUnknownMessage(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewDeletionService(repo, nil, nil, nil, scheduler.New(time.Second), 30*time.Second)

	repo.On("FindWithReceipts", "c1", "ghost").Return(nil, common.ErrMessageNotFound)

	err := svc.Delete(context.Background(), "c1", "ghost", domain.DeletionReasonExpired)
	assert.ErrorIs(t, err, common.ErrMessageNotFound)
}

func TestScheduleAfterCompletionDedups(t *testing.T) {
	repo := new(MockMessageRepository)
	sched := scheduler.New(10 * time.Millisecond)
	sched.Start()
	defer sched.Stop()

	svc := NewDeletionService(repo, nil, nil, nil, sched, 50*time.Millisecond)

	repo.On("FindWithReceipts", "c1", "m1").Return(liveMessage(""), nil).Once()
	repo.On("MarkDeleted", "c1", "m1", domain.DeletionReasonAllReceived, mock.Anything).Return(nil).Once()

	// Duplicate completion detections before the grace delay elapses must
	// queue exactly one job.
	svc.ScheduleAfterCompletion(context.Background(), "c1", "m1")
	svc.ScheduleAfterCompletion(context.Background(), "c1", "m1")
	svc.ScheduleAfterCompletion(context.Background(), "c1", "m1")

	assert.Eventually(t, func() bool {
		return repo.AssertExpectations(&testing.T{})
	}, time.Second, 10*time.Millisecond)

	repo.AssertNumberOfCalls(t, "MarkDeleted", 1)
}

func TestGraceDelayedJobNoOpsAfterSweeperWon(t *testing.T) {
	repo := new(MockMessageRepository)
	media := &fakeMediaStore{}
	sched := scheduler.New(10 * time.Millisecond)
	sched.Start()
	defer sched.Stop()

	svc := NewDeletionService(repo, media, nil, nil, sched, 30*time.Millisecond)

	// By the time the grace job fires, the sweeper has already deleted the
	// message; the job must land on the idempotent no-op path.
	deleted := liveMessage("media/k")
	deleted.IsDeleted = true
	repo.On("FindWithReceipts", "c1", "m1").Return(deleted, nil)

	svc.ScheduleAfterCompletion(context.Background(), "c1", "m1")

	assert.Eventually(t, func() bool {
		return len(repo.Calls) > 0
	}, time.Second, 10*time.Millisecond)

	repo.AssertNotCalled(t, "MarkDeleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, media.deletes())
}

func TestDeleteNotifiesSenderAndRecipients(t *testing.T) {
	repo := new(MockMessageRepository)
	notifier := &fakeNotifier{}
	svc := NewDeletionService(repo, nil, nil, notifier, scheduler.New(time.Second), 30*time.Second)

	msg := liveMessage("")
	msg.SenderID = "sender"
	msg.Receipts = []domain.DeliveryReceipt{
		{RecipientID: "alice"},
		{RecipientID: "bob"},
	}
	repo.On("FindWithReceipts", "c1", "m1").Return(msg, nil)
	repo.On("MarkDeleted", "c1", "m1", domain.DeletionReasonAllReceived, mock.Anything).Return(nil)

	assert.NoError(t, svc.Delete(context.Background(), "c1", "m1", domain.DeletionReasonAllReceived))
	assert.ElementsMatch(t, []string{"sender", "alice", "bob"}, notifier.deletedTargets())
}
