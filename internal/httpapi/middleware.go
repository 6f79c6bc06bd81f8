// Package httpapi implements the HTTP Surface (C10): the login and
// token-issuance endpoints a desktop client calls before ever opening a
// WebSocket, plus the ambient CORS/logging/recovery middleware the rest of
// the router shares with the WebSocket upgrade routes.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwvaartjes/dental-relay/internal/auth"
	"github.com/jwvaartjes/dental-relay/pkg/Logger"
)

// AuthMiddleware validates a desktop session's bearer token and sets its
// claims in the gin context for downstream handlers.
func AuthMiddleware(tokens *auth.Service, logger *Logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.Verify(tokenString)
		if err != nil {
			logger.Debugf("token validation failed: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}
		if claims.Role != auth.RoleDesktop {
			c.JSON(http.StatusForbidden, gin.H{"error": "desktop token required"})
			c.Abort()
			return
		}

		c.Set("principalID", claims.PrincipalID)
		c.Set("claims", claims)
		c.Next()
	}
}

// CORSMiddleware handles CORS headers for the desktop app's browser-hosted
// builds.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, origin")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// RequestLoggerMiddleware logs each request through the shared zap logger
// instead of gin's default writer.
func RequestLoggerMiddleware(logger *Logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		logger.Infof("[%s] %s %s %d %s %s",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
			param.ClientIP,
		)
		return ""
	})
}

// ErrorHandlerMiddleware recovers panics into a 500 instead of tearing down
// the whole server.
func ErrorHandlerMiddleware(logger *Logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Errorf("panic recovered: %v", recovered)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
