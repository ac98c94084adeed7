package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/services"
	"cupgame-wallet/pkg/common"
)

const IdempotencyHeader = "Idempotency-Key"

type WalletHandler struct {
	Wallets *services.WalletService
}

func NewWalletHandler(wallets *services.WalletService) *WalletHandler {
	return &WalletHandler{Wallets: wallets}
}

type CreateWalletRequest struct {
	UserId int `json:"user_id" binding:"required,min=1"`
}

type AmountRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" binding:"max=255"`
}

type ExternalDepositBody struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"max=255"`
	WalletHint  string          `json:"wallet_hint" binding:"max=64"`
}

type FreezeRequest struct {
	Frozen *bool `json:"frozen" binding:"required"`
}

func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	wallet, err := h.Wallets.CreateWallet(c.Request.Context(), req.UserId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponseWithStatus(wallet, "Wallet created", http.StatusCreated))
}

func (h *WalletHandler) GetWallet(c *gin.Context) {
	wallet, err := h.Wallets.GetWallet(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(wallet, "Wallet fetched"))
}

func (h *WalletHandler) GetTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(common.DefaultPageSize)))

	result, err := h.Wallets.ListTransactions(c.Request.Context(), c.Param("address"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *WalletHandler) ReplayBalance(c *gin.Context) {
	address := c.Param("address")
	wallet, err := h.Wallets.GetWallet(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}
	replayed, err := h.Wallets.ReplayBalance(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{
		"balance":  wallet.Balance,
		"replayed": replayed,
		"matches":  wallet.Balance.Equal(replayed),
	}, "Ledger replayed"))
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Wallets.Deposit(c.Request.Context(), c.Param("address"), req.Amount, req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(res, "Deposit successful"))
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Wallets.Withdraw(c.Request.Context(), c.Param("address"), req.Amount, req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(res, "Withdrawal successful"))
}

// DepositExternal answers 202 while the deposit is pending at the provider.
func (h *WalletHandler) DepositExternal(c *gin.Context) {
	var req ExternalDepositBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Wallets.DepositExternal(c.Request.Context(), services.ExternalDepositRequest{
		WalletAddress:  c.Param("address"),
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
		WalletHint:     req.WalletHint,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Status == models.StatusPending {
		status = http.StatusAccepted
	}
	c.JSON(status, common.NewSuccessResponseWithStatus(res, "Deposit initiated", status))
}

func (h *WalletHandler) SetFrozen(c *gin.Context) {
	var req FreezeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.Wallets.SetFrozen(c.Request.Context(), c.Param("address"), *req.Frozen); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"frozen": *req.Frozen}, "Wallet updated"))
}
