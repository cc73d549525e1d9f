package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS 只在 dev 环境为前端开发服务器放开跨域，生产环境前后端同源。
func CORS(env, devOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if env != "dev" || origin == "" || devOrigin == "" || origin != devOrigin {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", devOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
