package controller

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mk-Guvi/at-chatbot-backend/logic"
)

// UserController handles user-profile HTTP requests
type UserController struct {
	userLogic *logic.UserLogic
}

func NewUserController(userLogic *logic.UserLogic) *UserController {
	return &UserController{userLogic: userLogic}
}

// Login handles POST /user/login
func (ctl *UserController) Login(c *gin.Context) {
	type Request struct {
		UserID string `json:"user_id" binding:"required"`
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondBadRequest(c, "Invalid user_id")
		return
	}

	user, token, expireAt, err := ctl.userLogic.Login(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"user":      user,
		"token":     token,
		"expire_at": expireAt.Format(time.RFC3339),
	})
}

// CreateUser handles POST /user/
func (ctl *UserController) CreateUser(c *gin.Context) {
	type Request struct {
		Name         string `json:"name" binding:"required"`
		ProfileImage string `json:"profile_image"`
		IsBot        bool   `json:"is_bot"`
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	user, err := ctl.userLogic.CreateUser(c.Request.Context(), req.Name, req.ProfileImage, req.IsBot)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}

// GetUser handles GET /user/:user_id
func (ctl *UserController) GetUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		respondBadRequest(c, "Invalid user_id")
		return
	}

	user, err := ctl.userLogic.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}

// GetAllUsers handles GET /user/
func (ctl *UserController) GetAllUsers(c *gin.Context) {
	users, err := ctl.userLogic.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, users)
}

// GetChatbotUser handles GET /user/chatbot
func (ctl *UserController) GetChatbotUser(c *gin.Context) {
	user, err := ctl.userLogic.GetChatbotUser(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}
