package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/vaporchat/vapor-backend/internal/service"
	"github.com/vaporchat/vapor-backend/pkg/storage"
)

type stubBlobStore struct{}

func (stubBlobStore) Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64, onProgress storage.ProgressFunc) (*storage.UploadResult, error) {
	return &storage.UploadResult{Key: key, ContentType: contentType, Size: size}, nil
}

func (stubBlobStore) GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://blob.test/" + key, nil
}

func multipartFile(t *testing.T, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", name)
	assert.NoError(t, err)
	_, err = fw.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestUploadRejectsOversizedFileUpfront(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tracker := service.NewUploadTracker()
	media := service.NewMediaService(stubBlobStore{}, tracker)
	h := NewUploadHandler(media, tracker)

	body, contentType := multipartFile(t, "huge.png",
		bytes.Repeat([]byte("x"), int(media.MaxSize())+1))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/media", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Set("userID", "alice")

	h.Upload(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUploadAcceptsFileWithinLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tracker := service.NewUploadTracker()
	media := service.NewMediaService(stubBlobStore{}, tracker)
	h := NewUploadHandler(media, tracker)

	body, contentType := multipartFile(t, "pic.png", []byte("tiny"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/media", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Set("userID", "alice")

	h.Upload(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
}
