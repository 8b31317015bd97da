package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mk-Guvi/at-chatbot-backend/config"
	"github.com/mk-Guvi/at-chatbot-backend/logic"
	"github.com/mk-Guvi/at-chatbot-backend/models"
)

// ChatbotController handles HTTP requests for the conversation flow
type ChatbotController struct {
	engine       *logic.ConversationEngine
	convoLogic   *logic.ConversationLogic
	messageLogic *logic.MessageLogic
	userLogic    *logic.UserLogic
}

func NewChatbotController(
	engine *logic.ConversationEngine,
	convoLogic *logic.ConversationLogic,
	messageLogic *logic.MessageLogic,
	userLogic *logic.UserLogic,
) *ChatbotController {
	return &ChatbotController{
		engine:       engine,
		convoLogic:   convoLogic,
		messageLogic: messageLogic,
		userLogic:    userLogic,
	}
}

// CreateChat handles POST /chatbot/create_chat
func (ctl *ChatbotController) CreateChat(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apiResponse{Type: "error", Message: err.Error()})
		return
	}

	type Request struct {
		Context string `json:"context"`
	}
	var req Request
	_ = c.ShouldBindJSON(&req)
	if req.Context == "" {
		req.Context = config.GlobalConfig.Chatbot.DefaultContext
	}

	result, err := ctl.convoLogic.CreateChat(c.Request.Context(), userID, req.Context)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// GetResponse handles POST /chatbot/get_response/:chat_id
func (ctl *ChatbotController) GetResponse(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apiResponse{Type: "error", Message: err.Error()})
		return
	}

	type Request struct {
		Context string `json:"context" binding:"required"`
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	bot, err := ctl.userLogic.GetChatbotUser(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := ctl.engine.Respond(ctx, c.Param("chat_id"), req.Context, bot.UserID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	populated, err := ctl.convoLogic.Populate(ctx, result.Appended)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"chats": populated, "has_next": result.HasNext})
}

// AddChatMessage handles POST /chatbot/add_chat/:chat_id
func (ctl *ChatbotController) AddChatMessage(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apiResponse{Type: "error", Message: err.Error()})
		return
	}

	type Request struct {
		Context       string             `json:"context" binding:"required"`
		Message       models.MessageBody `json:"message" binding:"required"`
		FromMessageID string             `json:"from_message_id"`
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var fromMessageID *uuid.UUID
	if req.FromMessageID != "" {
		parsed, err := uuid.Parse(req.FromMessageID)
		if err != nil {
			respondBadRequest(c, "Invalid from_message_id")
			return
		}
		fromMessageID = &parsed
	}

	msg, err := ctl.messageLogic.AddChatMessage(c.Request.Context(), c.Param("chat_id"), userID, req.Context, req.Message, fromMessageID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, msg)
}

// UpdateChatMessage handles PUT /chatbot/update_chat_message/:chat_id
func (ctl *ChatbotController) UpdateChatMessage(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apiResponse{Type: "error", Message: err.Error()})
		return
	}

	type Request struct {
		MessageID string             `json:"message_id" binding:"required"`
		Context   string             `json:"context" binding:"required"`
		Message   models.MessageBody `json:"message" binding:"required"`
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		respondBadRequest(c, "Invalid message_id")
		return
	}

	updated, err := ctl.engine.EditMessage(c.Request.Context(), c.Param("chat_id"), messageID, req.Context, req.Message, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, updated)
}

// DeleteChatMessage handles DELETE /chatbot/delete_chat_message/:chat_id
func (ctl *ChatbotController) DeleteChatMessage(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apiResponse{Type: "error", Message: err.Error()})
		return
	}

	type Request struct {
		MessageID string `json:"message_id" binding:"required"`
		Context   string `json:"context" binding:"required"`
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		respondBadRequest(c, "Invalid message_id")
		return
	}

	if err := ctl.engine.DeleteMessage(c.Request.Context(), c.Param("chat_id"), messageID, req.Context, userID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// GetAllChatMessages handles GET /chatbot/:chat_id
func (ctl *ChatbotController) GetAllChatMessages(c *gin.Context) {
	if _, err := currentUserID(c); err != nil {
		c.JSON(http.StatusUnauthorized, apiResponse{Type: "error", Message: err.Error()})
		return
	}

	chats, err := ctl.convoLogic.GetAllChatMessages(c.Request.Context(), c.Param("chat_id"), c.Query("context"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"chats": chats})
}

// GetUserChats handles GET /chatbot/
func (ctl *ChatbotController) GetUserChats(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apiResponse{Type: "error", Message: err.Error()})
		return
	}

	convos, err := ctl.convoLogic.GetUserChats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, convos)
}
