package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
	"github.com/vaporchat/vapor-backend/pkg/storage"
)

// fakeBlobStore stands in for S3. It reports progress in two halves and
// can fail, block until canceled, or succeed.
type fakeBlobStore struct {
	err       error
	waitOnCtx bool
}

func (f *fakeBlobStore) Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64, onProgress storage.ProgressFunc) (*storage.UploadResult, error) {
	if f.waitOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if onProgress != nil {
		onProgress(size / 2)
		onProgress(size)
	}
	return &storage.UploadResult{
		Key:  key,
		URL:  "https://blobs.example.com/" + key,
		Size: size,
	}, nil
}

func (f *fakeBlobStore) GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://blobs.example.com/" + key + "?signed=1", nil
}

func waitForStatus(t *testing.T, tracker *UploadTracker, uploadID string, want domain.UploadStatus) {
	t.Helper()
	assert.Eventually(t, func() bool {
		task, err := tracker.Get(uploadID)
		return err == nil && task.Status == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartUploadCompletes(t *testing.T) {
	tracker := NewUploadTracker()
	svc := NewMediaService(&fakeBlobStore{}, tracker)

	uploadID, err := svc.StartUpload("photo.png", []byte("not really a png"))
	assert.NoError(t, err)

	waitForStatus(t, tracker, uploadID, domain.UploadStatusCompleted)

	result, err := svc.Result(uploadID)
	assert.NoError(t, err)
	assert.Contains(t, result.Key, "media/")
	assert.Equal(t, int64(len("not really a png")), result.Size)
}

func TestStartUploadRejectsUnsupportedType(t *testing.T) {
	svc := NewMediaService(&fakeBlobStore{}, NewUploadTracker())

	_, err := svc.StartUpload("payload.exe", []byte("MZ"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestStartUploadRejectsOversizedFile(t *testing.T) {
	tracker := NewUploadTracker()
	svc := NewMediaService(&fakeBlobStore{}, tracker)
	svc.maxSize = 8

	_, err := svc.StartUpload("big.png", []byte("way past the limit"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestTransferFailureMarksTaskFailed(t *testing.T) {
	tracker := NewUploadTracker()
	svc := NewMediaService(&fakeBlobStore{err: errors.New("connection reset")}, tracker)

	uploadID, err := svc.StartUpload("clip.mp4", []byte("frames"))
	assert.NoError(t, err)

	waitForStatus(t, tracker, uploadID, domain.UploadStatusFailed)

	task, _ := tracker.Get(uploadID)
	assert.Equal(t, "connection reset", task.Error)

	_, err = svc.Result(uploadID)
	assert.ErrorIs(t, err, common.ErrUploadNotFound)
}

func TestCancelDistinctFromNetworkFailure(t *testing.T) {
	tracker := NewUploadTracker()
	svc := NewMediaService(&fakeBlobStore{waitOnCtx: true}, tracker)

	uploadID, err := svc.StartUpload("doc.pdf", []byte("pages"))
	assert.NoError(t, err)

	assert.NoError(t, svc.Cancel(uploadID))

	waitForStatus(t, tracker, uploadID, domain.UploadStatusFailed)

	task, _ := tracker.Get(uploadID)
	assert.Equal(t, common.ErrUploadCancelled.Error(), task.Error)
}

func TestProgressReachesStream(t *testing.T) {
	tracker := NewUploadTracker()
	svc := NewMediaService(&fakeBlobStore{}, tracker)

	uploadID, err := svc.StartUpload("song.mp3", []byte("0123456789"))
	assert.NoError(t, err)

	stream, err := tracker.Stream(uploadID)
	assert.NoError(t, err)

	var last float64
	for p := range stream {
		assert.GreaterOrEqual(t, p, last-0.001)
		last = p
	}
	assert.Equal(t, 1.0, last)
}

func TestDownloadURLIsSigned(t *testing.T) {
	tracker := NewUploadTracker()
	svc := NewMediaService(&fakeBlobStore{}, tracker)

	url, err := svc.DownloadURL(context.Background(), "media/2026/08/30/photo_1.png")
	assert.NoError(t, err)
	assert.Contains(t, url, "signed=1")
}
