package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
	"github.com/vaporchat/vapor-backend/internal/middleware"
	"github.com/vaporchat/vapor-backend/internal/service"
)

// UploadHandler handles media upload HTTP requests
type UploadHandler struct {
	media   *service.MediaService
	tracker *service.UploadTracker
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(media *service.MediaService, tracker *service.UploadTracker) *UploadHandler {
	return &UploadHandler{media: media, tracker: tracker}
}

// Upload handles POST /media
// @Summary Start a media upload
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Media file"
// @Success 202 {object} common.APIResponse
// @Router /media [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	if h.media == nil {
		common.ErrorResponse(c, http.StatusServiceUnavailable, "media storage not configured", nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "missing file field", err)
		return
	}

	// Reject oversized files before buffering anything.
	if fileHeader.Size > h.media.MaxSize() {
		common.ErrorResponse(c, http.StatusRequestEntityTooLarge, "file too large", nil)
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "cannot read file", err)
		return
	}
	defer src.Close()

	// Buffer the whole file: the transfer outlives this request, and the
	// multipart temp file does not.
	data, err := io.ReadAll(src)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "cannot read file", err)
		return
	}

	uploadID, err := h.media.StartUpload(fileHeader.Filename, data)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, common.APIResponse{Data: gin.H{"upload_id": uploadID}})
}

// Progress handles GET /media/:upload_id/progress
// @Summary Stream upload progress as server-sent events
// @Tags media
// @Produce text/event-stream
// @Param upload_id path string true "Upload ID"
// @Success 200
// @Router /media/{upload_id}/progress [get]
func (h *UploadHandler) Progress(c *gin.Context) {
	uploadID := c.Param("upload_id")

	stream, err := h.tracker.Stream(uploadID)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			common.ErrorResponse(c, http.StatusConflict, "progress stream already consumed", err)
			return
		}
		respondUploadError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	// One event per progress sample; the channel closes on the terminal
	// state, then a final status event ends the stream.
	c.Stream(func(w io.Writer) bool {
		p, ok := <-stream
		if !ok {
			task, err := h.tracker.Get(uploadID)
			if err == nil {
				c.SSEvent("status", task)
			}
			return false
		}
		c.SSEvent("progress", gin.H{"progress": p})
		return true
	})
}

// Status handles GET /media/:upload_id
// @Summary Get upload task state (and result when completed)
// @Tags media
// @Produce json
// @Param upload_id path string true "Upload ID"
// @Success 200 {object} common.APIResponse{data=domain.UploadTask}
// @Router /media/{upload_id} [get]
func (h *UploadHandler) Status(c *gin.Context) {
	uploadID := c.Param("upload_id")

	task, err := h.tracker.Get(uploadID)
	if err != nil {
		respondUploadError(c, err)
		return
	}

	if h.media != nil && task.Status == domain.UploadStatusCompleted {
		if result, err := h.media.Result(uploadID); err == nil {
			c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{"task": task, "result": result}})
			return
		}
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: task})
}

// Cancel handles DELETE /media/:upload_id
// @Summary Cancel an in-flight upload
// @Tags media
// @Produce json
// @Param upload_id path string true "Upload ID"
// @Success 204
// @Router /media/{upload_id} [delete]
func (h *UploadHandler) Cancel(c *gin.Context) {
	if err := h.tracker.Cancel(c.Param("upload_id")); err != nil {
		respondUploadError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func respondUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrUploadNotFound):
		common.ErrorResponse(c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, common.ErrUploadFinished):
		common.ErrorResponse(c, http.StatusConflict, err.Error(), err)
	case errors.Is(err, common.ErrInvalidInput):
		common.ErrorResponse(c, http.StatusBadRequest, err.Error(), err)
	default:
		common.ErrorResponse(c, http.StatusInternalServerError, "internal error", err)
	}
}
