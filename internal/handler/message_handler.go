package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
	"github.com/vaporchat/vapor-backend/internal/middleware"
	"github.com/vaporchat/vapor-backend/internal/service"
)

// MessageHandler handles message HTTP requests
type MessageHandler struct {
	service service.MessageService
	media   *service.MediaService
}

// NewMessageHandler creates a new MessageHandler. media may be nil when no
// blob storage is configured.
func NewMessageHandler(svc service.MessageService, media *service.MediaService) *MessageHandler {
	return &MessageHandler{service: svc, media: media}
}

// Send handles POST /chats/:chat_id/messages
// @Summary Send a message into a chat
// @Tags messages
// @Accept json
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param request body domain.SendMessageRequest true "Message payload"
// @Success 200 {object} common.APIResponse{data=domain.MessageResponse}
// @Router /chats/{chat_id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.service.Send(c.Request.Context(), c.Param("chat_id"), userID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: result})
}

// List handles GET /chats/:chat_id/messages
// @Summary List live messages of a chat
// @Tags messages
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} common.APIResponse{data=[]domain.MessageResponse}
// @Router /chats/{chat_id}/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	limit := 50
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	messages, meta, err := h.service.ListChat(c.Request.Context(), c.Param("chat_id"), userID, page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: messages, Meta: meta})
}

// Get handles GET /chats/:chat_id/messages/:message_id
// @Summary Get a single message
// @Tags messages
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param message_id path string true "Message ID"
// @Success 200 {object} common.APIResponse{data=domain.MessageResponse}
// @Router /chats/{chat_id}/messages/{message_id} [get]
func (h *MessageHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	msg, err := h.service.Get(c.Request.Context(), c.Param("chat_id"), c.Param("message_id"), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: msg})
}

// AckDelivered handles POST /chats/:chat_id/messages/:message_id/delivered
// @Summary Acknowledge delivery of a message
// @Tags messages
// @Accept json
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param message_id path string true "Message ID"
// @Param request body domain.AckRequest false "Optional client timestamp"
// @Success 204
// @Router /chats/{chat_id}/messages/{message_id}/delivered [post]
func (h *MessageHandler) AckDelivered(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	at := ackTime(c)
	err := h.service.AckDelivered(c.Request.Context(), c.Param("chat_id"), c.Param("message_id"), userID, at)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AckRead handles POST /chats/:chat_id/messages/:message_id/read
// @Summary Acknowledge read of a message
// @Tags messages
// @Accept json
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param message_id path string true "Message ID"
// @Param request body domain.AckRequest false "Optional client timestamp"
// @Success 204
// @Router /chats/{chat_id}/messages/{message_id}/read [post]
func (h *MessageHandler) AckRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	at := ackTime(c)
	err := h.service.AckRead(c.Request.Context(), c.Param("chat_id"), c.Param("message_id"), userID, at)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeliveryStatus handles GET /chats/:chat_id/messages/:message_id/status
// @Summary Per-recipient delivery status (sender only)
// @Tags messages
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param message_id path string true "Message ID"
// @Success 200 {object} common.APIResponse{data=domain.DeliveryStatusResponse}
// @Router /chats/{chat_id}/messages/{message_id}/status [get]
func (h *MessageHandler) DeliveryStatus(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	status, err := h.service.GetDeliveryStatus(c.Request.Context(), c.Param("chat_id"), c.Param("message_id"), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: status})
}

// MediaURL handles GET /chats/:chat_id/messages/:message_id/media
// @Summary Short-lived download URL for a message's media attachment
// @Tags messages
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param message_id path string true "Message ID"
// @Success 200 {object} common.APIResponse
// @Router /chats/{chat_id}/messages/{message_id}/media [get]
func (h *MessageHandler) MediaURL(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}
	if h.media == nil {
		common.ErrorResponse(c, http.StatusServiceUnavailable, "media storage not configured", nil)
		return
	}

	msg, err := h.service.Get(c.Request.Context(), c.Param("chat_id"), c.Param("message_id"), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if msg.MediaKey == "" {
		common.ErrorResponse(c, http.StatusNotFound, "message has no media attachment", nil)
		return
	}

	url, err := h.media.DownloadURL(c.Request.Context(), msg.MediaKey)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to sign download url", err)
		return
	}

	common.SuccessResponse(c, gin.H{"url": url}, nil)
}

// ackTime reads the optional client timestamp, defaulting to server time
func ackTime(c *gin.Context) time.Time {
	var req domain.AckRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.At != nil {
		return *req.At
	}
	return time.Now()
}

// respondServiceError maps service errors onto HTTP statuses
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrMessageNotFound),
		errors.Is(err, common.ErrRecipientNotFound),
		errors.Is(err, common.ErrChatNotFound),
		errors.Is(err, common.ErrNotFound):
		common.ErrorResponse(c, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, common.ErrForbidden):
		common.ErrorResponse(c, http.StatusForbidden, err.Error(), err)
	case errors.Is(err, common.ErrAlreadyExists):
		common.ErrorResponse(c, http.StatusConflict, err.Error(), err)
	case errors.Is(err, common.ErrInvalidInput):
		common.ErrorResponse(c, http.StatusBadRequest, err.Error(), err)
	default:
		common.ErrorResponse(c, http.StatusInternalServerError, "internal error", err)
	}
}
