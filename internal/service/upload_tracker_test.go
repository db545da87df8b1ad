package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
)

func drain(ch <-chan float64) []float64 {
	var got []float64
	for p := range ch {
		got = append(got, p)
	}
	return got
}

func TestUploadLifecycle(t *testing.T) {
	tracker := NewUploadTracker()

	assert.NoError(t, tracker.StartTracking("u1", nil))
	assert.ErrorIs(t, tracker.StartTracking("u1", nil), common.ErrAlreadyExists)

	task, err := tracker.Get("u1")
	assert.NoError(t, err)
	assert.Equal(t, domain.UploadStatusInProgress, task.Status)

	assert.NoError(t, tracker.UpdateProgress("u1", 0.4))
	assert.NoError(t, tracker.MarkCompleted("u1"))

	task, err = tracker.Get("u1")
	assert.NoError(t, err)
	assert.Equal(t, domain.UploadStatusCompleted, task.Status)
	assert.Equal(t, 1.0, task.Progress)
}

func TestProgressStreamEndsAtTerminalState(t *testing.T) {
	tracker := NewUploadTracker()
	assert.NoError(t, tracker.StartTracking("u1", nil))

	stream, err := tracker.Stream("u1")
	assert.NoError(t, err)

	assert.NoError(t, tracker.UpdateProgress("u1", 0.25))
	assert.NoError(t, tracker.UpdateProgress("u1", 0.5))
	assert.NoError(t, tracker.MarkCompleted("u1"))

	got := drain(stream)
	assert.Equal(t, []float64{0.25, 0.5, 1}, got)
}

func TestProgressStreamIsSingleUse(t *testing.T) {
	tracker := NewUploadTracker()
	assert.NoError(t, tracker.StartTracking("u1", nil))

	_, err := tracker.Stream("u1")
	assert.NoError(t, err)

	_, err = tracker.Stream("u1")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestTerminalStateIsFinal(t *testing.T) {
	tracker := NewUploadTracker()
	assert.NoError(t, tracker.StartTracking("u1", nil))
	assert.NoError(t, tracker.MarkCompleted("u1"))

	assert.ErrorIs(t, tracker.UpdateProgress("u1", 0.9), common.ErrUploadFinished)
	assert.ErrorIs(t, tracker.MarkFailed("u1", errors.New("late")), common.ErrUploadFinished)
	assert.ErrorIs(t, tracker.Cancel("u1"), common.ErrUploadFinished)
}

func TestProgressIsClamped(t *testing.T) {
	tracker := NewUploadTracker()
	assert.NoError(t, tracker.StartTracking("u1", nil))

	assert.NoError(t, tracker.UpdateProgress("u1", 1.7))
	task, _ := tracker.Get("u1")
	assert.Equal(t, 1.0, task.Progress)

	assert.NoError(t, tracker.UpdateProgress("u1", -0.3))
	task, _ = tracker.Get("u1")
	assert.Equal(t, 0.0, task.Progress)
}

func TestCancelInvokesTransferCancel(t *testing.T) {
	tracker := NewUploadTracker()
	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, tracker.StartTracking("u1", cancel))

	assert.NoError(t, tracker.Cancel("u1"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// The transfer's error path is responsible for the failed transition.
	task, err := tracker.Get("u1")
	assert.NoError(t, err)
	assert.Equal(t, domain.UploadStatusInProgress, task.Status)
}

func TestCancelWithoutTransferFailsTask(t *testing.T) {
	tracker := NewUploadTracker()
	assert.NoError(t, tracker.StartTracking("u1", nil))

	assert.NoError(t, tracker.Cancel("u1"))

	task, err := tracker.Get("u1")
	assert.NoError(t, err)
	assert.Equal(t, domain.UploadStatusFailed, task.Status)
	assert.Equal(t, common.ErrUploadCancelled.Error(), task.Error)
}

func TestFailureRecordsCause(t *testing.T) {
	tracker := NewUploadTracker()
	assert.NoError(t, tracker.StartTracking("u1", nil))

	stream, err := tracker.Stream("u1")
	assert.NoError(t, err)

	assert.NoError(t, tracker.UpdateProgress("u1", 0.6))
	assert.NoError(t, tracker.MarkFailed("u1", errors.New("connection reset")))

	// No terminal 1.0 on failure, only the stream closing.
	assert.Equal(t, []float64{0.6}, drain(stream))

	task, _ := tracker.Get("u1")
	assert.Equal(t, domain.UploadStatusFailed, task.Status)
	assert.Equal(t, "connection reset", task.Error)
}

func TestRemoveRefusesInProgress(t *testing.T) {
	tracker := NewUploadTracker()
	assert.NoError(t, tracker.StartTracking("u1", nil))

	assert.ErrorIs(t, tracker.Remove("u1"), common.ErrInvalidInput)

	assert.NoError(t, tracker.MarkCompleted("u1"))
	assert.NoError(t, tracker.Remove("u1"))

	_, err := tracker.Get("u1")
	assert.ErrorIs(t, err, common.ErrUploadNotFound)
}

func TestUnknownUpload(t *testing.T) {
	tracker := NewUploadTracker()

	assert.ErrorIs(t, tracker.UpdateProgress("nope", 0.5), common.ErrUploadNotFound)
	assert.ErrorIs(t, tracker.MarkCompleted("nope"), common.ErrUploadNotFound)
	assert.ErrorIs(t, tracker.Cancel("nope"), common.ErrUploadNotFound)
	_, err := tracker.Stream("nope")
	assert.ErrorIs(t, err, common.ErrUploadNotFound)
}
