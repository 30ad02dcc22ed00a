// Package httpapi exposes the auth core over HTTP using gin.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Dependencies struct {
	Users        UserService
	Tokens       TokenVerifier
	Logger       logging.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Health       func(ctx context.Context) error
	RefreshTTL   time.Duration
	CookieSecure bool
}

func NewRouter(deps Dependencies) *gin.Engine {
	registerValidators()

	router := gin.New()
	_ = router.SetTrustedProxies(nil)
	router.Use(RequestID())
	router.Use(Logger(deps.Logger))
	router.Use(Metrics(deps.Metrics))
	router.Use(gin.Recovery())

	h := NewUserHandler(deps.Users, deps.RefreshTTL, deps.CookieSecure, deps.Logger)

	router.GET("/healthz", Health(deps.Health))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	users := router.Group("/users")
	{
		users.POST("/signup", h.Signup)
		users.POST("/login", h.Login)
		users.POST("/refresh-token", h.RefreshToken)
		users.POST("/forget-password", h.ForgetPassword)
		users.POST("/reset-password/:token", h.ResetPassword)
		users.GET("/profile", AccessGuard(deps.Tokens, deps.Users, deps.Logger), h.Profile)
	}

	return router
}
