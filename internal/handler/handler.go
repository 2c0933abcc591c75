package handler

import (
	"encoding/json"
	"fmt"
	"strconv"

	"casino/internal/errs"
	"casino/internal/game"
	"casino/internal/service"
	"casino/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const defaultPageSize = 20

// Handler translates HTTP requests into service calls. Identity arrives as
// user_id; authenticating it is the caller's concern.
type Handler struct {
	accounts *service.AccountService
	games    *service.GameService
	history  *service.HistoryService
}

func NewHandler(accounts *service.AccountService, games *service.GameService, history *service.HistoryService) *Handler {
	return &Handler{accounts: accounts, games: games, history: history}
}

func queryUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.ParamError(c, "invalid user_id")
		return 0, false
	}
	return userID, true
}

// parseAmount decodes a JSON number or numeric string. The amount is kept raw
// while binding so a malformed value is rejected as an invalid bet rather
// than as a malformed body.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, fmt.Errorf("amount is required: %w", errs.ErrInvalidBet)
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, fmt.Errorf("amount %s is not a number: %w", raw, errs.ErrInvalidBet)
	}
	return amount, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// ============================================================
// Account
// ============================================================

type OpenAccountRequest struct {
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Credential string `json:"credential"`
}

// OpenAccount POST /api/v1/account/open
func (h *Handler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.accounts.OpenAccount(c.Request.Context(), req.Username, req.Email, req.Credential)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

// GetBalance GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	balance, err := h.accounts.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance.StringFixed(game.MoneyPlaces),
	})
}

type AmountRequest struct {
	UserID int64           `json:"user_id" binding:"required"`
	Amount json.RawMessage `json:"amount"`
	Remark string          `json:"remark"`
}

// Deposit POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.FromError(c, err)
		return
	}
	trans, err := h.accounts.Deposit(c.Request.Context(), req.UserID, amount, req.Remark)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, trans)
}

// Withdraw POST /api/v1/account/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.FromError(c, err)
		return
	}
	trans, err := h.accounts.Withdraw(c.Request.Context(), req.UserID, amount, req.Remark)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, trans)
}

type DepositRequest struct {
	UserID      int64           `json:"user_id" binding:"required"`
	Amount      json.RawMessage `json:"amount"`
	ExternalRef string          `json:"external_ref" binding:"required"`
}

// RequestDeposit POST /api/v1/account/deposit/request
func (h *Handler) RequestDeposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.FromError(c, err)
		return
	}
	trans, err := h.accounts.RequestDeposit(c.Request.Context(), req.UserID, amount, req.ExternalRef)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, trans)
}

type TransactionRequest struct {
	TransactionNo string `json:"transaction_no" binding:"required"`
	Reason        string `json:"reason"`
}

// ConfirmDeposit POST /api/v1/account/deposit/confirm
func (h *Handler) ConfirmDeposit(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	trans, err := h.accounts.ConfirmTransaction(c.Request.Context(), req.TransactionNo)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, trans)
}

// FailDeposit POST /api/v1/account/deposit/fail
func (h *Handler) FailDeposit(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	if err := h.accounts.FailTransaction(c.Request.Context(), req.TransactionNo, req.Reason); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"transaction_no": req.TransactionNo})
}

// ============================================================
// Games
// ============================================================

type PlayRequest struct {
	UserID int64           `json:"user_id" binding:"required"`
	Amount json.RawMessage `json:"amount"`
	Color  string          `json:"color"`
}

// ListGames GET /api/v1/games
func (h *Handler) ListGames(c *gin.Context) {
	games, err := h.games.ListGames(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, games)
}

// PlayBlackjack POST /api/v1/games/blackjack/play
func (h *Handler) PlayBlackjack(c *gin.Context) {
	h.play(c, game.TypeBlackjack)
}

// BetRoulette POST /api/v1/games/roulette/bet
func (h *Handler) BetRoulette(c *gin.Context) {
	h.play(c, game.TypeRoulette)
}

// SpinSlots POST /api/v1/games/slots/spin
func (h *Handler) SpinSlots(c *gin.Context) {
	h.play(c, game.TypeSlots)
}

func (h *Handler) play(c *gin.Context, gt game.Type) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.FromError(c, err)
		return
	}
	var params game.Params
	if gt == game.TypeRoulette {
		color, err := game.ParseColor(req.Color)
		if err != nil {
			response.FromError(c, err)
			return
		}
		params.Color = color
	}

	settlement, err := h.games.Play(c.Request.Context(), service.PlayRequest{
		UserID: req.UserID,
		Game:   gt,
		Amount: amount,
		Params: params,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, settlement)
}

// ============================================================
// History
// ============================================================

// ListBets GET /api/v1/history/bets?user_id=xxx&page=1&page_size=20
func (h *Handler) ListBets(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	page, err := h.history.ListBets(c.Request.Context(), userID, queryInt(c, "page", 1), queryInt(c, "page_size", defaultPageSize))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, page)
}

// ListTransactions GET /api/v1/history/transactions?user_id=xxx&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	page, err := h.history.ListTransactions(c.Request.Context(), userID, queryInt(c, "page", 1), queryInt(c, "page_size", defaultPageSize))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, page)
}

// Audit GET /api/v1/admin/audit
func (h *Handler) Audit(c *gin.Context) {
	report, err := h.accounts.Audit(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, report)
}
