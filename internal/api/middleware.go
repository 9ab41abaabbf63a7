package api

import "github.com/gin-gonic/gin"

// securityHeaders mirrors tarsy's pkg/api/middleware.go securityHeaders,
// translated from an echo.MiddlewareFunc to a gin.HandlerFunc.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}
