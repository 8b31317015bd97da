package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mk-Guvi/at-chatbot-backend/logic"
)

// apiResponse is the envelope every endpoint returns.
type apiResponse struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, apiResponse{Type: "success", Data: data})
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if kind, ok := logic.KindOf(err); ok {
		switch kind {
		case logic.KindNotFound:
			status = http.StatusNotFound
		case logic.KindInvalidContext, logic.KindInvalidArgument:
			status = http.StatusBadRequest
		case logic.KindForbidden:
			status = http.StatusForbidden
		case logic.KindConversationEnded, logic.KindInvalidState:
			status = http.StatusConflict
		case logic.KindStorageFault:
			status = http.StatusInternalServerError
		}
	}
	c.JSON(status, apiResponse{Type: "error", Message: err.Error()})
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, apiResponse{Type: "error", Message: msg})
}

// currentUserID resolves the authenticated user from the claims the auth
// middleware stored.
func currentUserID(c *gin.Context) (uuid.UUID, error) {
	userClaims, exists := c.Get("user")
	if !exists {
		return uuid.Nil, errors.New("user not found in context")
	}
	claims, ok := userClaims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid user claims")
	}
	raw, ok := claims["user_id"].(string)
	if !ok || raw == "" {
		return uuid.Nil, errors.New("user_id not found in token")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("user_id is not a valid uuid")
	}
	return userID, nil
}
