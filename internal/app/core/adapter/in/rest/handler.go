// Package rest 提供 JSON over HTTP 介面 (gin)。
// handler 只負責讀取 body、呼叫帳務引擎與輸出回應，欄位驗證完全交給引擎。
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// maxBodyBytes 單一請求 body 上限
const maxBodyBytes = 1 << 20

// Ledger REST handler 需要的帳務操作
type Ledger interface {
	CreateAccount(ctx context.Context, raw []byte) (domain.Snapshot, error)
	Authenticate(ctx context.Context, raw []byte) (string, error)
	Deposit(ctx context.Context, raw []byte) (domain.Snapshot, error)
	Withdraw(ctx context.Context, raw []byte) (domain.Snapshot, error)
	Transfer(ctx context.Context, raw []byte) (domain.Snapshot, domain.Snapshot, error)
	GetAccount(ctx context.Context, id int64) (domain.Snapshot, error)
}

// TokenIssuer 發行 access token
type TokenIssuer interface {
	Issue(name string) (string, error)
}

type Handler struct {
	core   Ledger
	tokens TokenIssuer
	logger *zap.Logger
}

func NewHandler(core Ledger, tokens TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{
		core:   core,
		tokens: tokens,
		logger: logger,
	}
}

// accountResponse 對外的帳戶格式，balance 輸出為 JSON number
type accountResponse struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Balance json.Number `json:"balance"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func toResponse(acc domain.Snapshot) accountResponse {
	return accountResponse{
		ID:      acc.ID,
		Name:    acc.Name,
		Balance: json.Number(acc.Balance.String()),
	}
}

// CreateAccount POST /create_account
func (h *Handler) CreateAccount(c *gin.Context) {
	raw, ok := h.body(c)
	if !ok {
		return
	}
	acc, err := h.core.CreateAccount(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(acc))
}

// Login POST /login
func (h *Handler) Login(c *gin.Context) {
	raw, ok := h.body(c)
	if !ok {
		return
	}
	name, err := h.core.Authenticate(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	token, err := h.tokens.Issue(name)
	if err != nil {
		h.fail(c, domain.Internal(err))
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer"})
}

// Deposit POST /deposit
func (h *Handler) Deposit(c *gin.Context) {
	raw, ok := h.body(c)
	if !ok {
		return
	}
	acc, err := h.core.Deposit(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(acc))
}

// Withdraw POST /withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	raw, ok := h.body(c)
	if !ok {
		return
	}
	acc, err := h.core.Withdraw(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(acc))
}

// Transfer POST /transfer，回傳 [轉出帳戶, 轉入帳戶]
func (h *Handler) Transfer(c *gin.Context) {
	raw, ok := h.body(c)
	if !ok {
		return
	}
	src, dst, err := h.core.Transfer(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, []accountResponse{toResponse(src), toResponse(dst)})
}

// GetAccount GET /accounts/:id
func (h *Handler) GetAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.fail(c, domain.InvalidData("", domain.Violation{Field: "account_id", Message: "must be an integer"}))
		return
	}
	acc, err := h.core.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(acc))
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// body 讀取原始 body，JSON 解析交給引擎處理
func (h *Handler) body(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	raw, err := c.GetRawData()
	if err != nil {
		h.fail(c, domain.InvalidData("request body is unreadable or too large"))
		return nil, false
	}
	return raw, true
}
