package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/vaporchat/vapor-backend/internal/handler"
	"github.com/vaporchat/vapor-backend/internal/middleware"
	"github.com/vaporchat/vapor-backend/pkg/jwt"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	chatHandler *handler.ChatHandler,
	messageHandler *handler.MessageHandler,
	uploadHandler *handler.UploadHandler,
	wsHandler *handler.WSHandler,
	jwtManager *jwt.Manager,
) {
	api := router.Group("/api/v1", middleware.JWTAuth(jwtManager))

	chats := api.Group("/chats")
	chats.POST("", chatHandler.Create)
	chats.GET("/:chat_id", chatHandler.Get)
	chats.POST("/:chat_id/members", chatHandler.AddMember)

	chats.POST("/:chat_id/messages", messageHandler.Send)
	chats.GET("/:chat_id/messages", messageHandler.List)
	chats.GET("/:chat_id/messages/:message_id", messageHandler.Get)
	chats.POST("/:chat_id/messages/:message_id/delivered", messageHandler.AckDelivered)
	chats.POST("/:chat_id/messages/:message_id/read", messageHandler.AckRead)
	chats.GET("/:chat_id/messages/:message_id/status", messageHandler.DeliveryStatus)
	chats.GET("/:chat_id/messages/:message_id/media", messageHandler.MediaURL)

	media := api.Group("/media")
	media.POST("", uploadHandler.Upload)
	media.GET("/:upload_id", uploadHandler.Status)
	media.GET("/:upload_id/progress", uploadHandler.Progress)
	media.DELETE("/:upload_id", uploadHandler.Cancel)

	router.GET("/ws/events", middleware.JWTAuth(jwtManager), wsHandler.Connect)
}
