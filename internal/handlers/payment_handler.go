package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cupgame-wallet/internal/services"
	"cupgame-wallet/pkg/common"
)

type PaymentHandler struct {
	Wallets *services.WalletService
}

func NewPaymentHandler(wallets *services.WalletService) *PaymentHandler {
	return &PaymentHandler{Wallets: wallets}
}

type PaymentCallbackRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=128"`
	Status         string `json:"status" binding:"required,oneof=success failed"`
}

// Callback receives the provider's verdict on an external deposit.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var req PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Wallets.ConfirmExternalDeposit(c.Request.Context(), req.IdempotencyKey, req.Status == "success")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(res, "Callback processed"))
}
