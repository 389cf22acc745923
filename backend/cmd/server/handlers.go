package main

import (
	"net/http"
	"strconv"

	"campusnet/backend/internal/chat"
	"campusnet/backend/internal/realtime"
	"campusnet/backend/internal/social"
	apperrors "campusnet/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type api struct {
	friends         *social.FriendshipService
	suggestions     *social.SuggestionEngine
	catalog         *social.CatalogAdapter
	messages        *chat.Service
	hub             *realtime.Hub
	suggestionLimit int
	upgrader        websocket.Upgrader
	log             *zap.Logger
}

func newAPI(
	friends *social.FriendshipService,
	suggestions *social.SuggestionEngine,
	catalog *social.CatalogAdapter,
	messages *chat.Service,
	hub *realtime.Hub,
	suggestionLimit int,
	log *zap.Logger,
) *api {
	return &api{
		friends:         friends,
		suggestions:     suggestions,
		catalog:         catalog,
		messages:        messages,
		hub:             hub,
		suggestionLimit: suggestionLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (a *api) registerRoutes(router *gin.Engine) {
	router.GET("/ws", a.handleWebSocket)

	group := router.Group("/api")
	{
		group.POST("/friends/requests", a.handleSendFriendRequest)
		group.POST("/friends/requests/accept", a.handleAcceptFriendRequest)
		group.POST("/friends/requests/reject", a.handleRejectFriendRequest)
		group.DELETE("/friends", a.handleRemoveFriend)
		group.GET("/users/:id/friends", a.handleListFriends)
		group.GET("/users/:id/requests", a.handleListPendingRequests)
		group.GET("/users/:id/suggestions", a.handleSuggestFriends)

		group.POST("/messages", a.handleSendMessage)
		group.GET("/messages/history", a.handleGetHistory)
		group.GET("/users/:id/conversations", a.handleListConversations)
		group.POST("/conversations/read", a.handleMarkRead)

		group.POST("/courses/:id/interactions", a.handleCourseInteraction)
	}
}

type pairRequest struct {
	FromID string `json:"from_id" binding:"required"`
	ToID   string `json:"to_id" binding:"required"`
}

func (a *api) handleSendFriendRequest(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.friends.SendRequest(c.Request.Context(), req.FromID, req.ToID); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *api) handleAcceptFriendRequest(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.friends.AcceptRequest(c.Request.Context(), req.FromID, req.ToID); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *api) handleRejectFriendRequest(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.friends.RejectRequest(c.Request.Context(), req.FromID, req.ToID); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *api) handleRemoveFriend(c *gin.Context) {
	var req struct {
		UserID   string `json:"user_id" binding:"required"`
		FriendID string `json:"friend_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.friends.RemoveFriend(c.Request.Context(), req.UserID, req.FriendID); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *api) handleListFriends(c *gin.Context) {
	friends, err := a.friends.ListFriends(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (a *api) handleListPendingRequests(c *gin.Context) {
	requests, err := a.friends.ListPendingRequests(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (a *api) handleSuggestFriends(c *gin.Context) {
	limit := a.suggestionLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	suggestions, err := a.suggestions.Suggest(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (a *api) handleSendMessage(c *gin.Context) {
	var req struct {
		FromID  string `json:"from_id" binding:"required"`
		ToID    string `json:"to_id" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := a.messages.Send(c.Request.Context(), req.FromID, req.ToID, req.Content)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (a *api) handleGetHistory(c *gin.Context) {
	userA := c.Query("user_a")
	userB := c.Query("user_b")

	history, err := a.messages.History(c.Request.Context(), userA, userB)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": history})
}

func (a *api) handleListConversations(c *gin.Context) {
	conversations, err := a.messages.Conversations(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (a *api) handleMarkRead(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		PeerID string `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.messages.MarkRead(c.Request.Context(), req.UserID, req.PeerID); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *api) handleCourseInteraction(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enrolled, err := a.catalog.EnsureEnrolled(c.Request.Context(), req.UserID, c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "newly_enrolled": enrolled})
}

func (a *api) handleWebSocket(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := realtime.NewClient(a.hub, conn, a.messages, userID)
	a.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (a *api) writeError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperrors.IsType(err, apperrors.ErrorTypeTransient):
		a.log.Error("Graph store unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store temporarily unavailable"})
	default:
		a.log.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
