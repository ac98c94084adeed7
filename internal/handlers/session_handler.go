package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cupgame-wallet/internal/services"
	"cupgame-wallet/pkg/common"
)

type SessionHandler struct {
	Sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{Sessions: sessions}
}

type OpenSessionRequest struct {
	UserId   int    `json:"user_id" binding:"required,min=1"`
	GameName string `json:"game_name" binding:"required,max=64"`
}

type RedeemLaunchRequest struct {
	LaunchToken string `json:"launch_token" binding:"required"`
}

func (h *SessionHandler) Open(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	opened, err := h.Sessions.OpenSession(c.Request.Context(), req.UserId, req.GameName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponseWithStatus(opened, "Session opened", http.StatusCreated))
}

// Launch redeems a launch token for the session token the game client connects with.
func (h *SessionHandler) Launch(c *gin.Context) {
	var req RedeemLaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.Sessions.RedeemLaunchToken(c.Request.Context(), req.LaunchToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{
		"session_id":    session.ID,
		"session_token": session.SessionToken,
		"game_name":     session.GameName,
	}, "Launch token redeemed"))
}
