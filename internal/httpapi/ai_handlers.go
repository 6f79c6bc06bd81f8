package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwvaartjes/dental-relay/internal/asr"
	"github.com/jwvaartjes/dental-relay/internal/lexicon"
	"github.com/jwvaartjes/dental-relay/internal/normalize"
	"github.com/jwvaartjes/dental-relay/internal/scheduler"
	"github.com/jwvaartjes/dental-relay/pkg/Logger"
)

// AIHandlers serves the synchronous transcribe-by-upload path and the
// operational status/config endpoints (C4/C2 surfaced over HTTP, plus C5
// metrics and the C1 config document). This is distinct from the WebSocket
// path: a desktop or integration can transcribe one clip without pairing a
// session at all.
type AIHandlers struct {
	logger     *Logger.Logger
	asr        asr.Adapter
	normalizer *normalize.Normalizer
	loader     *lexicon.Loader
	scheduler  *scheduler.Scheduler
}

func NewAIHandlers(logger *Logger.Logger, adapter asr.Adapter, normalizer *normalize.Normalizer, loader *lexicon.Loader, sched *scheduler.Scheduler) *AIHandlers {
	return &AIHandlers{logger: logger, asr: adapter, normalizer: normalizer, loader: loader, scheduler: sched}
}

func (h *AIHandlers) RegisterRoutes(router gin.IRouter, auth gin.HandlerFunc) {
	g := router.Group("/api/ai", auth)
	{
		g.POST("/transcribe", h.Transcribe)
		g.POST("/transcribe-file", h.TranscribeFile)
		g.GET("/status", h.Status)
		g.GET("/normalization/config", h.NormalizationConfig)
		g.POST("/config/save", h.ConfigSave)
		g.GET("/config/backup", h.ConfigBackup)
		g.POST("/config/restore", h.ConfigRestore)
	}
}

type transcribeRequest struct {
	AudioData string `json:"audio_data" binding:"required"`
	Language  string `json:"language"`
	Prompt    string `json:"prompt"`
	Format    string `json:"format"`
}

type transcribeResponse struct {
	Text       string            `json:"text"`
	Raw        string            `json:"raw"`
	Normalized string            `json:"normalized"`
	Segments   []any             `json:"segments"`
	Language   string            `json:"language"`
	Duration   float64           `json:"duration"`
	Metadata   map[string]string `json:"metadata"`
}

// Transcribe decodes a base64 audio payload and runs it synchronously
// through the ASR adapter and normalizer — the C4/C2 path, without going
// through the scheduler's queue, for one-shot transcription requests.
func (h *AIHandlers) Transcribe(c *gin.Context) {
	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio_data is required"})
		return
	}

	audioBytes, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio_data must be base64"})
		return
	}

	h.doTranscribe(c, audioBytes, req.Language, req.Prompt)
}

// TranscribeFile is the multipart-upload counterpart of Transcribe, for
// clients that would rather stream a file than base64-encode it.
func (h *AIHandlers) TranscribeFile(c *gin.Context) {
	file, _, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	defer file.Close()

	audioBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read audio file"})
		return
	}

	h.doTranscribe(c, audioBytes, c.PostForm("language"), c.PostForm("prompt"))
}

// doTranscribe is the shared body of Transcribe/TranscribeFile: resolve the
// admin's defaults, call the adapter, normalize the result, respond with
// the §6 transcribe response shape. Segment-level timestamps aren't part
// of the asr.Adapter contract, so segments is always empty here — this
// surfaces the whole-utterance transcript the same way the adapter does.
func (h *AIHandlers) doTranscribe(c *gin.Context, audioBytes []byte, language, prompt string) {
	adminID := principalID(c)

	cfg, err := h.loader.GetConfig(adminID)
	if err != nil {
		h.logger.Errorf("load config failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load config"})
		return
	}
	if language == "" {
		language = cfg.DefaultLanguage
	}
	if language == "" {
		language = "nl"
	}
	if prompt == "" {
		prompt = cfg.AsrPrompt
	}

	result, err := h.asr.Transcribe(c.Request.Context(), audioBytes, language, prompt)
	if err != nil {
		c.JSON(transcribeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	snap, err := h.loader.GetLexicon(adminID)
	if err != nil {
		h.logger.Errorf("load lexicon failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load lexicon"})
		return
	}
	normalized := h.normalizer.Normalize(result.Text, snap, cfg.MinSimilarityThreshold)

	c.JSON(http.StatusOK, transcribeResponse{
		Text:       normalized,
		Raw:        result.Text,
		Normalized: normalized,
		Segments:   []any{},
		Language:   result.Language,
		Duration:   result.Duration.Seconds(),
		Metadata:   h.asr.Info(),
	})
}

// transcribeErrorStatus maps the asr package's error classes (the same ones
// the scheduler dispatches on) to the HTTP status codes §6 specifies: 503
// when the provider is down, 429 when rate limited, 401 on auth failure,
// 400 for invalid audio.
func transcribeErrorStatus(err error) int {
	switch {
	case errors.Is(err, asr.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, asr.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, asr.ErrInvalidAudio):
		return http.StatusBadRequest
	case errors.Is(err, asr.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Status reports the C5 scheduler's circuit breaker state and throughput
// counters, per §7: "the circuit-state is visible via /api/ai/status".
func (h *AIHandlers) Status(c *gin.Context) {
	snap := h.scheduler.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"circuit_breaker_state": snap.CircuitBreakerState,
		"circuit_breaker_fails": snap.CircuitBreakerFails,
		"processed":             snap.Processed,
		"dropped":               snap.Dropped,
		"queue_full_events":     snap.QueueFullEvents,
		"batches_run":           snap.BatchesRun,
		"avg_queue_depth":       snap.AvgQueueDepth,
		"avg_processing_time_ms": snap.AvgProcessingTimeMs,
	})
}

// NormalizationConfig returns the admin's current normalizer/scheduler
// tunables — a read-only view distinct from /api/lexicon/config in that it
// is scoped under the ai surface alongside transcribe/status.
func (h *AIHandlers) NormalizationConfig(c *gin.Context) {
	cfg, err := h.loader.GetConfig(principalID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load config"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ConfigSave persists the admin's config document, the same write
// /api/lexicon/config exposes, offered here too for clients that treat
// config save/backup/restore as one group of operations.
func (h *AIHandlers) ConfigSave(c *gin.Context) {
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

type configBackup struct {
	Config  lexicon.Config          `json:"config"`
	Lexicon lexicon.LexiconSnapshot `json:"lexicon"`
}

// ConfigBackup bundles the admin's config and lexicon into one document a
// client can store and later hand back to ConfigRestore.
func (h *AIHandlers) ConfigBackup(c *gin.Context) {
	adminID := principalID(c)

	cfg, err := h.loader.GetConfig(adminID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load config"})
		return
	}
	snap, err := h.loader.GetLexicon(adminID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load lexicon"})
		return
	}
	c.JSON(http.StatusOK, configBackup{Config: cfg, Lexicon: snap})
}

// ConfigRestore replaces the admin's config and lexicon wholesale from a
// previously captured ConfigBackup document.
func (h *AIHandlers) ConfigRestore(c *gin.Context) {
	var req configBackup
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid backup document"})
		return
	}

	adminID := principalID(c)
	req.Config.AdminID = adminID
	if err := h.loader.SaveConfig(adminID, req.Config); err != nil {
		h.logger.Errorf("restore config failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not restore config"})
		return
	}
	if err := h.loader.ReplaceLexicon(adminID, req.Lexicon); err != nil {
		h.logger.Errorf("restore lexicon failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not restore lexicon"})
		return
	}
	c.Status(http.StatusNoContent)
}
