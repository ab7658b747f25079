package handler

import (
	"net/http"

	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// GetMessagesHandler handles GET /messages
func (h *BiddingHandler) GetMessagesHandler(c *gin.Context) {
	h.listMessages(c, "GetMessagesHandler", false)
}

// GetUnreadMessagesHandler handles GET /messages/unread
func (h *BiddingHandler) GetUnreadMessagesHandler(c *gin.Context) {
	h.listMessages(c, "GetUnreadMessagesHandler", true)
}

func (h *BiddingHandler) listMessages(c *gin.Context, handlerName string, unreadOnly bool) {
	caller, ok := requireCaller(c, handlerName)
	if !ok {
		return
	}

	var (
		msgs []model.Message
		err  error
	)
	if unreadOnly {
		msgs, err = h.service.GetUnreadMessages(c.Request.Context(), caller.UserID)
	} else {
		msgs, err = h.service.GetMessages(c.Request.Context(), caller.UserID)
	}
	if err != nil {
		helpers.HandleServiceError(c, handlerName, err, map[string]any{"user_id": caller.UserID})
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	utils.JSONResponse(c, http.StatusOK, msgs, "messages retrieved successfully")
}

// MarkMessageReadHandler handles PUT /messages/:id/read
func (h *BiddingHandler) MarkMessageReadHandler(c *gin.Context) {
	caller, ok := requireCaller(c, "MarkMessageReadHandler")
	if !ok {
		return
	}

	messageID := c.Param("id")
	msg, err := h.service.MarkMessageRead(c.Request.Context(), messageID, caller.UserID)
	if err != nil {
		helpers.HandleServiceError(c, "MarkMessageReadHandler", err, map[string]any{
			"message_id": messageID,
			"user_id":    caller.UserID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, msg, "message marked as read")
}

// SendMessageHandler handles POST /messages
func (h *BiddingHandler) SendMessageHandler(c *gin.Context) {
	caller, ok := requireCaller(c, "SendMessageHandler")
	if !ok {
		return
	}

	var req helpers.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "SendMessageHandler", err)
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), caller.UserID, model.NewMessage{
		RecipientID: req.RecipientID,
		Content:     req.Content,
		AuctionID:   req.AuctionID,
		Type:        model.MessageType(req.Type),
	}, h.now())
	if err != nil {
		helpers.HandleServiceError(c, "SendMessageHandler", err, map[string]any{
			"sender_id":    caller.UserID,
			"recipient_id": req.RecipientID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, msg, "message sent successfully")
	helpers.LogSuccess("SendMessageHandler", "message sent successfully", map[string]any{
		"message_id":   msg.MessageID,
		"recipient_id": msg.RecipientID,
	})
}
