package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/taskerr"
)

// Thresholds filter which (channel, video) pairs are kept. MaxResults caps
// the search page requested per keyword.
type Thresholds struct {
	MinSubscribers int64 `json:"minSubscribers"`
	MinViews       int64 `json:"minViews"`
	MaxResults     int   `json:"maxResults"`
}

// DefaultThresholds returns the thresholds used when a caller supplies none
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSubscribers: DefaultMinSubscribers,
		MinViews:       DefaultMinViews,
		MaxResults:     DefaultMaxResults,
	}
}

func (t Thresholds) validate() error {
	if t.MinSubscribers < 0 {
		return taskerr.InvalidInput(taskerr.CodeInvalidThreshold, "minSubscribers cannot be negative")
	}
	if t.MinViews < 0 {
		return taskerr.InvalidInput(taskerr.CodeInvalidThreshold, "minViews cannot be negative")
	}
	if t.MaxResults < 1 {
		return taskerr.InvalidInput(taskerr.CodeInvalidThreshold, "maxResults must be at least 1")
	}
	return nil
}

type CreateTaskRequest struct {
	ProductName string
	Credential  string
	Thresholds  Thresholds
}

type CreateTaskResult struct {
	TaskID   string    `json:"taskId"`
	Keywords []string  `json:"keywords"`
	Task     *TaskView `json:"task"`
}

// CreateTask generates the keyword list and persists a running task with
// progress 0. Nothing is persisted when validation or generation fails.
func (e *Engine) CreateTask(ctx context.Context, req CreateTaskRequest) (*CreateTaskResult, error) {
	if strings.TrimSpace(req.ProductName) == "" {
		return nil, taskerr.InvalidInput(taskerr.CodeMissingField, "productName is required")
	}
	credential := strings.TrimSpace(req.Credential)
	if credential == "" {
		return nil, taskerr.InvalidInput(taskerr.CodeMissingField, "credential is required")
	}
	if err := req.Thresholds.validate(); err != nil {
		return nil, err
	}

	queries := e.generate(req.ProductName)
	if len(queries) == 0 {
		return nil, taskerr.InvalidInput(taskerr.CodeNoKeywords, "product name produced no search keywords")
	}

	now := e.now()
	task := &models.Task{
		ID:             uuid.NewString(),
		ProductName:    strings.TrimSpace(req.ProductName),
		CredentialHash: HashCredential(credential),
		MinSubscribers: req.Thresholds.MinSubscribers,
		MinViews:       req.Thresholds.MinViews,
		MaxResults:     req.Thresholds.MaxResults,
		Status:         models.StatusRunning,
		Progress:       0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.store.CreateTaskWithKeywords(ctx, task, queries); err != nil {
		return nil, taskerr.StoreFailure(task.ID, "failed to persist task", err)
	}

	e.metrics.IncTasksCreated()
	e.logger.WithFields(logrus.Fields{
		"task_id":         task.ID,
		"product":         task.ProductName,
		"keywords":        len(queries),
		"min_subscribers": task.MinSubscribers,
		"min_views":       task.MinViews,
		"max_results":     task.MaxResults,
	}).Info("Search task created")

	return &CreateTaskResult{
		TaskID:   task.ID,
		Keywords: queries,
		Task:     viewOf(task),
	}, nil
}
