package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
	"github.com/jwvaartjes/dental-relay/pkg/Logger"
)

// LexiconHandlers exposes the admin-facing C1 lexicon management surface:
// reading the current config/lexicon and adding canonical terms or
// variants. All routes require a desktop bearer token; an admin only ever
// edits their own lexicon, keyed off the authenticated principal id.
type LexiconHandlers struct {
	logger *Logger.Logger
	loader *lexicon.Loader
}

func NewLexiconHandlers(logger *Logger.Logger, loader *lexicon.Loader) *LexiconHandlers {
	return &LexiconHandlers{logger: logger, loader: loader}
}

func (h *LexiconHandlers) RegisterRoutes(router gin.IRouter, auth gin.HandlerFunc) {
	g := router.Group("/api/lexicon", auth)
	{
		g.GET("/config", h.GetConfig)
		g.PUT("/config", h.PutConfig)
		g.GET("", h.GetLexicon)
		g.POST("/terms", h.AddCanonicalTerm)
		g.DELETE("/terms/:term", h.RemoveCanonicalTerm)
		g.POST("/variants", h.AddVariant)
	}
}

func principalID(c *gin.Context) string {
	id, _ := c.Get("principalID")
	s, _ := id.(string)
	return s
}

func (h *LexiconHandlers) GetConfig(c *gin.Context) {
	cfg, err := h.loader.GetConfig(principalID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load config"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type putConfigRequest struct {
	DefaultLanguage        string  `json:"default_language"`
	MinSimilarityThreshold float64 `json:"min_similarity_threshold"`
	SmallThresholdBytes    int     `json:"small_threshold_bytes"`
	AccumulateCount        int     `json:"accumulate_count"`
	MaxDurationMs          int     `json:"max_duration_ms"`
	AsrPrompt              string  `json:"asr_prompt"`
}

func (h *LexiconHandlers) PutConfig(c *gin.Context) {
	var req putConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config body"})
		return
	}
	adminID := principalID(c)
	cfg := lexicon.Config{
		AdminID:                adminID,
		DefaultLanguage:        req.DefaultLanguage,
		MinSimilarityThreshold: req.MinSimilarityThreshold,
		SmallThresholdBytes:    req.SmallThresholdBytes,
		AccumulateCount:        req.AccumulateCount,
		MaxDurationMs:          req.MaxDurationMs,
		AsrPrompt:              req.AsrPrompt,
	}
	if err := h.loader.SaveConfig(adminID, cfg); err != nil {
		h.logger.Errorf("save config failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save config"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LexiconHandlers) GetLexicon(c *gin.Context) {
	snap, err := h.loader.GetLexicon(principalID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load lexicon"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

type addTermRequest struct {
	Category string `json:"category" binding:"required"`
	Term     string `json:"term" binding:"required"`
}

func (h *LexiconHandlers) AddCanonicalTerm(c *gin.Context) {
	var req addTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category and term are required"})
		return
	}
	if err := h.loader.AddCanonicalTerm(principalID(c), req.Category, req.Term); err != nil {
		if errors.Is(err, lexicon.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("add canonical term failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add term"})
		return
	}
	c.Status(http.StatusCreated)
}

func (h *LexiconHandlers) RemoveCanonicalTerm(c *gin.Context) {
	term := c.Param("term")
	if err := h.loader.RemoveCanonicalTerm(principalID(c), term); err != nil {
		if errors.Is(err, lexicon.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("remove canonical term failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove term"})
		return
	}
	c.Status(http.StatusNoContent)
}

type addVariantRequest struct {
	Category  string `json:"category" binding:"required"`
	Variant   string `json:"variant" binding:"required"`
	Canonical string `json:"canonical" binding:"required"`
}

func (h *LexiconHandlers) AddVariant(c *gin.Context) {
	var req addVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category, variant, and canonical are required"})
		return
	}
	if err := h.loader.AddVariant(principalID(c), req.Category, req.Variant, req.Canonical); err != nil {
		h.logger.Errorf("add variant failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add variant"})
		return
	}
	c.Status(http.StatusCreated)
}
