// Package engine implements the stepwise search task engine. A task is
// created with a fixed list of keywords and advanced one keyword per call;
// all state lives in the durable store so any process can continue a task.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/keywords"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/monitoring"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/provider"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/store"
)

// Threshold defaults applied by callers that let users omit them
const (
	DefaultMinSubscribers = 10000
	DefaultMinViews       = 5000
	DefaultMaxResults     = 50

	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

// TaskStore is the persistence the engine needs
type TaskStore interface {
	CreateTaskWithKeywords(ctx context.Context, task *models.Task, queries []string) error
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ListRecentTasks(ctx context.Context, limit int) ([]models.Task, error)
	ClaimNextKeyword(ctx context.Context, taskID string) (*models.Keyword, error)
	ReleaseKeyword(ctx context.Context, keywordID uint64) error
	CountKeywords(ctx context.Context, taskID string) (store.KeywordCounts, error)
	InsertInfluencers(ctx context.Context, rows []models.Influencer) (int64, error)
	UpdateProgress(ctx context.Context, taskID string, progress int, status models.TaskStatus) (bool, error)
	FailTask(ctx context.Context, taskID, message string) (bool, error)
}

// KeywordGenerator expands a product name into search queries
type KeywordGenerator func(productName string) []string

type Config struct {
	Store     TaskStore
	Provider  provider.SearchProvider
	Generator KeywordGenerator
	Metrics   *monitoring.MetricsCollector
	Logger    *logrus.Logger
	Now       func() time.Time
}

type Engine struct {
	store    TaskStore
	provider provider.SearchProvider
	generate KeywordGenerator
	metrics  *monitoring.MetricsCollector
	logger   *logrus.Logger
	now      func() time.Time
	inflight singleflight.Group
}

func New(config Config) (*Engine, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if config.Provider == nil {
		return nil, fmt.Errorf("search provider is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.Generator == nil {
		config.Generator = keywords.Generate
	}
	if config.Now == nil {
		config.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		store:    config.Store,
		provider: config.Provider,
		generate: config.Generator,
		metrics:  config.Metrics,
		logger:   config.Logger,
		now:      config.Now,
	}, nil
}

// TaskView is the externally visible state of a task
type TaskView struct {
	ID          string            `json:"id"`
	Status      models.TaskStatus `json:"status"`
	Progress    int               `json:"progress"`
	ProductName string            `json:"productName"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func viewOf(task *models.Task) *TaskView {
	return &TaskView{
		ID:          task.ID,
		Status:      task.Status,
		Progress:    task.Progress,
		ProductName: task.ProductName,
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.CompletedAt,
		Error:       task.ErrorMessage,
	}
}

// computeProgress is round(100 * processed / total), half up; an empty
// keyword set counts as done.
func computeProgress(counts store.KeywordCounts) int {
	if counts.Total <= 0 {
		return 100
	}
	processed := counts.Processed
	if processed > counts.Total {
		processed = counts.Total
	}
	return int((200*processed + counts.Total) / (2 * counts.Total))
}
