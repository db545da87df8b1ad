package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
	"github.com/vaporchat/vapor-backend/internal/middleware"
	"github.com/vaporchat/vapor-backend/internal/repository"
	"github.com/vaporchat/vapor-backend/pkg/cache"
)

// CreateChatRequest carries the initial membership of a new chat
type CreateChatRequest struct {
	Title     string   `json:"title"`
	MemberIDs []string `json:"member_ids" binding:"required,min=1"`
}

// AddMemberRequest names the user joining a chat
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ChatHandler handles chat membership HTTP requests. Chats are glue for
// the message lifecycle: membership defines recipient sets at send time.
type ChatHandler struct {
	repo  repository.ChatRepository
	cache cache.Service
}

// NewChatHandler creates a new ChatHandler. cache may be nil.
func NewChatHandler(repo repository.ChatRepository, cacheService cache.Service) *ChatHandler {
	return &ChatHandler{repo: repo, cache: cacheService}
}

// Create handles POST /chats
// @Summary Create a chat with an initial member set
// @Tags chats
// @Accept json
// @Produce json
// @Param request body CreateChatRequest true "Chat members"
// @Success 200 {object} common.APIResponse{data=domain.Chat}
// @Router /chats [post]
func (h *ChatHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	members := req.MemberIDs
	if !contains(members, userID) {
		members = append(members, userID)
	}

	chat := &domain.Chat{
		ID:        uuid.New().String(),
		Title:     req.Title,
		CreatedAt: time.Now(),
	}

	if err := h.repo.Create(chat, members); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: chat})
}

// Get handles GET /chats/:chat_id
// @Summary Get chat metadata
// @Tags chats
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} common.APIResponse{data=domain.Chat}
// @Router /chats/{chat_id} [get]
func (h *ChatHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	chatID := c.Param("chat_id")
	member, err := h.repo.IsMember(chatID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !member {
		common.ErrorResponse(c, http.StatusForbidden, "not a chat member", nil)
		return
	}

	chat, err := h.repo.FindByID(chatID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: chat})
}

// AddMember handles POST /chats/:chat_id/members
// @Summary Add a member to a chat
// @Tags chats
// @Accept json
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param request body AddMemberRequest true "User to add"
// @Success 200 {object} common.APIResponse
// @Router /chats/{chat_id}/members [post]
func (h *ChatHandler) AddMember(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	chatID := c.Param("chat_id")
	member, err := h.repo.IsMember(chatID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !member {
		common.ErrorResponse(c, http.StatusForbidden, "not a chat member", nil)
		return
	}

	if err := h.repo.AddMember(chatID, req.UserID); err != nil {
		respondServiceError(c, err)
		return
	}

	// Drop the cached member set so the next send sees the new member.
	if h.cache != nil {
		if err := h.cache.InvalidateRecipients(c.Request.Context(), chatID); err != nil {
			common.ErrorResponse(c, http.StatusInternalServerError, "failed to refresh member cache", err)
			return
		}
	}

	common.SuccessResponse(c, gin.H{"chat_id": chatID, "user_id": req.UserID}, nil)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
