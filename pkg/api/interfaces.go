package api

import (
	"context"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/engine"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/results"
)

type TaskService interface {
	CreateTask(ctx context.Context, req engine.CreateTaskRequest) (*engine.CreateTaskResult, error)
	AdvanceTask(ctx context.Context, taskID, credential string) (*engine.TaskView, error)
	GetTask(ctx context.Context, taskID string) (*engine.TaskView, error)
	RecentTasks(ctx context.Context, limit int) ([]engine.TaskView, error)
	PreviewKeywords(productName string) ([]string, error)
	ValidateCredential(ctx context.Context, credential string) error
}

type ResultService interface {
	Report(ctx context.Context, taskID string) (*results.Report, error)
	Rows(ctx context.Context, taskID string) ([]models.Influencer, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}
