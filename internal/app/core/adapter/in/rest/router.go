package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter 註冊所有路由，create_account、login 與 health 不需要 token
func NewRouter(h *Handler, tokens TokenVerifier, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(Logger(logger), Recovery(logger))

	r.GET("/health", h.Health)
	r.POST("/create_account", h.CreateAccount)
	r.POST("/login", h.Login)

	authed := r.Group("", AuthMiddleware(tokens))
	authed.POST("/deposit", h.Deposit)
	authed.POST("/withdraw", h.Withdraw)
	authed.POST("/transfer", h.Transfer)
	authed.GET("/accounts/:id", h.GetAccount)

	r.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, errorResponse{Error: "route not found"})
	})
	return r
}
