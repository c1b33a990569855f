package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// principalKey gin context 中已驗證的帳戶名稱
const principalKey = "account_name"

// TokenVerifier 驗證 access token，回傳帳戶名稱
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthMiddleware 檢查 Authorization: Bearer <token>
func AuthMiddleware(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, errorResponse{Error: "authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, errorResponse{Error: "invalid authorization header format"})
			return
		}

		name, err := tokens.Verify(parts[1])
		if err != nil {
			abort(c, http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
			return
		}
		c.Set(principalKey, name)
		c.Next()
	}
}

// Principal 取得已驗證的帳戶名稱
func Principal(c *gin.Context) (string, bool) {
	name := c.GetString(principalKey)
	return name, name != ""
}

// Logger 以 zap 記錄每個請求
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if name, ok := Principal(c); ok {
			fields = append(fields, zap.String("account", name))
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}

// Recovery panic 時回傳 500 並記錄 log
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("http handler panic",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
		)
		abort(c, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	})
}
