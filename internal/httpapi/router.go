package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwvaartjes/dental-relay/internal/asr"
	"github.com/jwvaartjes/dental-relay/internal/auth"
	"github.com/jwvaartjes/dental-relay/internal/lexicon"
	"github.com/jwvaartjes/dental-relay/internal/normalize"
	"github.com/jwvaartjes/dental-relay/internal/pairing"
	"github.com/jwvaartjes/dental-relay/internal/scheduler"
	"github.com/jwvaartjes/dental-relay/pkg/Logger"
)

// NewRouter builds the gin engine for the HTTP Surface (C10): ambient
// middleware, a health check, and the auth/lexicon/ai route groups. The
// WebSocket upgrade routes are registered separately by wsrelay.Handler
// against the same engine.
func NewRouter(logger *Logger.Logger, tokens *auth.Service, admins auth.AdminStore, reg *pairing.Registry, loader *lexicon.Loader, adapter asr.Adapter, normalizer *normalize.Normalizer, sched *scheduler.Scheduler) *gin.Engine {
	r := gin.New()
	r.Use(RequestLoggerMiddleware(logger), ErrorHandlerMiddleware(logger), CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandlers := NewAuthHandlers(logger, tokens, admins, reg)
	authHandlers.RegisterRoutes(r)

	authMW := AuthMiddleware(tokens, logger)

	lexiconHandlers := NewLexiconHandlers(logger, loader)
	lexiconHandlers.RegisterRoutes(r, authMW)

	aiHandlers := NewAIHandlers(logger, adapter, normalizer, loader, sched)
	aiHandlers.RegisterRoutes(r, authMW)

	return r
}
