package service

import (
	"context"
	"sync"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
)

const progressBuffer = 16

// UploadTracker tracks in-flight blob transfers and exposes each one's
// progress as a finite stream. A task reaches exactly one terminal state
// (completed or failed); its stream closes there and cannot be restarted.
type UploadTracker struct {
	mu    sync.Mutex
	tasks map[string]*uploadEntry
}

type uploadEntry struct {
	task     domain.UploadTask
	progress chan float64
	cancel   context.CancelFunc
	streamed bool
	done     bool
}

// NewUploadTracker creates a new UploadTracker
func NewUploadTracker() *UploadTracker {
	return &UploadTracker{tasks: make(map[string]*uploadEntry)}
}

// StartTracking registers a new upload task in in_progress state.
// cancel may be nil for transfers that cannot be aborted.
func (t *UploadTracker) StartTracking(uploadID string, cancel context.CancelFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tasks[uploadID]; exists {
		return common.ErrAlreadyExists
	}

	t.tasks[uploadID] = &uploadEntry{
		task: domain.UploadTask{
			ID:     uploadID,
			Status: domain.UploadStatusInProgress,
		},
		progress: make(chan float64, progressBuffer),
		cancel:   cancel,
	}
	return nil
}

// UpdateProgress records transfer progress in [0,1] and pushes it to the
// stream. The push never blocks: a slow consumer just misses samples, the
// terminal value always arrives via channel close.
func (t *UploadTracker) UpdateProgress(uploadID string, p float64) error {
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tasks[uploadID]
	if !ok {
		return common.ErrUploadNotFound
	}
	if entry.done {
		return common.ErrUploadFinished
	}

	entry.task.Progress = p
	select {
	case entry.progress <- p:
	default:
	}
	return nil
}

// MarkCompleted transitions the task to completed and ends its stream
func (t *UploadTracker) MarkCompleted(uploadID string) error {
	return t.finish(uploadID, domain.UploadStatusCompleted, nil)
}

// MarkFailed transitions the task to failed and ends its stream
func (t *UploadTracker) MarkFailed(uploadID string, cause error) error {
	return t.finish(uploadID, domain.UploadStatusFailed, cause)
}

func (t *UploadTracker) finish(uploadID string, status domain.UploadStatus, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tasks[uploadID]
	if !ok {
		return common.ErrUploadNotFound
	}
	if entry.done {
		return common.ErrUploadFinished
	}

	entry.done = true
	entry.task.Status = status
	if status == domain.UploadStatusCompleted {
		entry.task.Progress = 1
		select {
		case entry.progress <- 1:
		default:
		}
	}
	if cause != nil {
		entry.task.Error = cause.Error()
	}
	close(entry.progress)
	return nil
}

// Cancel aborts an in-flight transfer. The transfer's own error path then
// marks the task failed with common.ErrUploadCancelled, distinct from a
// network failure.
func (t *UploadTracker) Cancel(uploadID string) error {
	t.mu.Lock()
	entry, ok := t.tasks[uploadID]
	if !ok {
		t.mu.Unlock()
		return common.ErrUploadNotFound
	}
	if entry.done {
		t.mu.Unlock()
		return common.ErrUploadFinished
	}
	cancel := entry.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		return nil
	}
	// No cancelable transfer attached: fail the task directly.
	return t.MarkFailed(uploadID, common.ErrUploadCancelled)
}

// Get returns a snapshot of the task state
func (t *UploadTracker) Get(uploadID string) (domain.UploadTask, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tasks[uploadID]
	if !ok {
		return domain.UploadTask{}, common.ErrUploadNotFound
	}
	return entry.task, nil
}

// Stream hands out the task's progress channel. It is finite (closed on
// completion or failure) and single-use: a second call fails because the
// first consumer owns the sequence.
func (t *UploadTracker) Stream(uploadID string) (<-chan float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tasks[uploadID]
	if !ok {
		return nil, common.ErrUploadNotFound
	}
	if entry.streamed {
		return nil, common.ErrAlreadyExists
	}
	entry.streamed = true
	return entry.progress, nil
}

// Remove drops a finished task. The caller acknowledges the terminal state
// by calling this; removing an in-progress task is refused.
func (t *UploadTracker) Remove(uploadID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tasks[uploadID]
	if !ok {
		return common.ErrUploadNotFound
	}
	if !entry.done {
		return common.ErrInvalidInput
	}
	delete(t.tasks, uploadID)
	return nil
}
