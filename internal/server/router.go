package server

import (
	"net/http"

	"roomchat/internal/auth"
	"roomchat/internal/config"
	"roomchat/internal/metrics"
	"roomchat/internal/mw"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SetupRouter 统一初始化 Gin 中间件与 REST API。所有 /api 路由都经过鉴权中间件。
func SetupRouter(cfg config.Config, h *Handler, am *auth.Middleware, limiter *mw.RL, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.CORS(cfg.Env, cfg.DevOrigin))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	framework := func(fn gin.HandlerFunc) gin.HandlerFunc {
		return am.Wrap(auth.Framework(fn)).Gin()
	}
	fetch := func(fn auth.FetchHandler) gin.HandlerFunc {
		return am.Wrap(auth.Fetch(fn)).Gin()
	}

	api := r.Group("/api")

	// 邀请码只有 9 位，按 IP+路由限速防止枚举。
	api.Any("/room/:id", mw.RateLimit(limiter), framework(h.RoomCode))

	api.GET("/room/:id/messages", framework(h.ListMessages))
	api.POST("/room/:id/messages", framework(h.PostMessage))

	api.GET("/rooms", framework(h.ListRooms))
	api.POST("/rooms", framework(h.CreateRoom))
	api.DELETE("/rooms/:id", framework(h.DeleteRoom))

	api.GET("/users", fetch(h.GetUsers))
	api.GET("/users/:email", fetch(h.GetUserByEmail))

	return r
}
