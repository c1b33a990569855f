package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// errorResponse 統一的錯誤格式
type errorResponse struct {
	Error   string             `json:"error"`
	Details []domain.Violation `json:"details,omitempty"`
}

// statusFor 錯誤種類對應的 HTTP 狀態碼
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidData, domain.KindInsufficientFunds:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAuthenticationFailed:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail 輸出錯誤回應，內部錯誤的原因只寫入 log
func (h *Handler) fail(c *gin.Context, err error) {
	var e *domain.Error
	if !errors.As(err, &e) {
		e = domain.Internal(err)
	}
	if e.Kind == domain.KindInternal {
		h.logger.Error("ledger internal error",
			zap.String("path", c.FullPath()),
			zap.NamedError("cause", e.Unwrap()),
		)
	}
	abort(c, statusFor(e.Kind), errorResponse{Error: e.Error(), Details: e.Violations})
}

func abort(c *gin.Context, code int, body errorResponse) {
	c.AbortWithStatusJSON(code, body)
}
