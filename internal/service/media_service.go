package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
	pkglogger "github.com/vaporchat/vapor-backend/pkg/logger"
	"github.com/vaporchat/vapor-backend/pkg/storage"
)

// BlobStore uploads blobs with progress reporting and signs download URLs.
// *storage.S3Client satisfies this.
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64, onProgress storage.ProgressFunc) (*storage.UploadResult, error)
	GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

const downloadURLExpiry = 15 * time.Minute

// MediaService runs media uploads in the background with live progress in
// the UploadTracker. Callers get an upload ID back immediately and follow
// the transfer via the tracker's stream.
type MediaService struct {
	store   BlobStore
	tracker *UploadTracker

	maxSize   int64
	allowExts []string

	mu      sync.Mutex
	results map[string]*domain.UploadResponse
}

// NewMediaService creates a new MediaService
func NewMediaService(store BlobStore, tracker *UploadTracker) *MediaService {
	return &MediaService{
		store:   store,
		tracker: tracker,
		maxSize: 50 * 1024 * 1024, // 50MB
		allowExts: []string{
			".jpg", ".jpeg", ".png", ".gif", ".webp",
			".mp4", ".webm", ".mov",
			".mp3", ".ogg", ".m4a",
			".pdf", ".txt", ".zip",
		},
		results: make(map[string]*domain.UploadResponse),
	}
}

// MaxSize returns the upload size cap in bytes. Handlers check the declared
// multipart size against it before buffering the body.
func (s *MediaService) MaxSize() int64 {
	return s.maxSize
}

// StartUpload validates the file and launches the transfer. The returned
// upload ID is immediately valid for progress streaming and cancellation.
func (s *MediaService) StartUpload(filename string, data []byte) (string, error) {
	if int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("%w: file too large (max %dMB)", common.ErrInvalidInput, s.maxSize/(1024*1024))
	}

	ext := strings.ToLower(path.Ext(filename))
	if !s.extAllowed(ext) {
		return "", fmt.Errorf("%w: unsupported file type %s", common.ErrInvalidInput, ext)
	}

	uploadID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	if err := s.tracker.StartTracking(uploadID, cancel); err != nil {
		cancel()
		return "", err
	}

	contentType := http.DetectContentType(data)
	key := storage.GenerateKey("media", filename)
	size := int64(len(data))

	go s.transfer(ctx, uploadID, key, contentType, data, size)

	return uploadID, nil
}

func (s *MediaService) transfer(ctx context.Context, uploadID, key, contentType string, data []byte, size int64) {
	onProgress := func(transferred int64) {
		_ = s.tracker.UpdateProgress(uploadID, float64(transferred)/float64(size))
	}

	result, err := s.store.Upload(ctx, key, bytes.NewReader(data), contentType, size, onProgress)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			_ = s.tracker.MarkFailed(uploadID, common.ErrUploadCancelled)
		} else {
			_ = s.tracker.MarkFailed(uploadID, err)
		}
		pkglogger.GetLogger().Warn().
			Err(err).
			Str("upload_id", uploadID).
			Msg("media upload did not complete")
		return
	}

	s.mu.Lock()
	s.results[uploadID] = &domain.UploadResponse{
		UploadID: uploadID,
		Key:      result.Key,
		URL:      result.URL,
		CDNURL:   result.CDNURL,
		Size:     result.Size,
	}
	s.mu.Unlock()

	_ = s.tracker.MarkCompleted(uploadID)
}

// Result returns the upload outcome once the transfer completed
func (s *MediaService) Result(uploadID string) (*domain.UploadResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.results[uploadID]
	if !ok {
		return nil, common.ErrUploadNotFound
	}
	return result, nil
}

// Cancel aborts an in-flight upload via the tracker
func (s *MediaService) Cancel(uploadID string) error {
	return s.tracker.Cancel(uploadID)
}

// DownloadURL signs a short-lived direct download URL for a stored blob
func (s *MediaService) DownloadURL(ctx context.Context, key string) (string, error) {
	return s.store.GetPresignedURL(ctx, key, downloadURLExpiry)
}

func (s *MediaService) extAllowed(ext string) bool {
	for _, allowed := range s.allowExts {
		if ext == allowed {
			return true
		}
	}
	return false
}
