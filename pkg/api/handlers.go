package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/engine"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/export"
)

// CredentialHeader carries the YouTube API key on advance calls
const CredentialHeader = "X-YouTube-Key"

type Handler struct {
	tasks   TaskService
	results ResultService
	health  HealthChecker
	logger  *logrus.Logger
}

func NewHandler(tasks TaskService, results ResultService, health HealthChecker, logger *logrus.Logger) *Handler {
	return &Handler{
		tasks:   tasks,
		results: results,
		health:  health,
		logger:  logger,
	}
}

// SearchRequest creates a task. Omitted thresholds take the engine defaults.
type SearchRequest struct {
	ProductName    string `json:"productName"`
	APIKey         string `json:"apiKey"`
	MinSubscribers *int64 `json:"minSubscribers"`
	MinViews       *int64 `json:"minViews"`
	MaxResults     *int   `json:"maxResults"`
}

func (r SearchRequest) thresholds() engine.Thresholds {
	t := engine.DefaultThresholds()
	if r.MinSubscribers != nil {
		t.MinSubscribers = *r.MinSubscribers
	}
	if r.MinViews != nil {
		t.MinViews = *r.MinViews
	}
	if r.MaxResults != nil {
		t.MaxResults = *r.MaxResults
	}
	return t
}

// CreateSearch handles POST /api/search
func (h *Handler) CreateSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.tasks.CreateTask(c.Request.Context(), engine.CreateTaskRequest{
		ProductName: req.ProductName,
		Credential:  req.APIKey,
		Thresholds:  req.thresholds(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":   result.TaskID,
		"keywords": result.Keywords,
		"status":   result.Task.Status,
		"progress": result.Task.Progress,
	})
}

// AdvanceStatus handles GET /api/status/:task_id. Each call processes at
// most one keyword. Failed tasks are still a 200 with the error in the body.
func (h *Handler) AdvanceStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	credential := strings.TrimSpace(c.GetHeader(CredentialHeader))

	view, err := h.tasks.AdvanceTask(c.Request.Context(), taskID, credential)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetTask handles GET /api/tasks/:task_id without advancing the task
func (h *Handler) GetTask(c *gin.Context) {
	view, err := h.tasks.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Results handles GET /api/results/:task_id
func (h *Handler) Results(c *gin.Context) {
	report, err := h.results.Report(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Download handles GET /api/download/:task_id
func (h *Handler) Download(c *gin.Context) {
	taskID := c.Param("task_id")
	rows, err := h.results.Rows(c.Request.Context(), taskID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(taskID)+`"`)
	c.Data(http.StatusOK, export.ContentType, []byte(export.ToCSV(rows)))
}

// History handles GET /api/history?limit=N
func (h *Handler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	views, err := h.tasks.RecentTasks(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views})
}

type keywordsRequest struct {
	ProductName string `json:"productName"`
}

// PreviewKeywords handles POST /api/keywords
func (h *Handler) PreviewKeywords(c *gin.Context) {
	var req keywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	queries, err := h.tasks.PreviewKeywords(req.ProductName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keywords": queries})
}

type validateKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// ValidateKey handles POST /api/validate-key. A rejected key is reported as
// {valid: false} with the provider's reason.
func (h *Handler) ValidateKey(c *gin.Context) {
	var req validateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.APIKey) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "apiKey is required"})
		return
	}

	if err := h.tasks.ValidateCredential(c.Request.Context(), req.APIKey); err != nil {
		h.logger.WithError(err).Debug("API key validation failed")
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Ping(c.Request.Context()); err != nil {
			h.logger.WithError(err).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "ok"})
}
