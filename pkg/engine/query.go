package engine

import (
	"context"
	"strings"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/taskerr"
)

// GetTask returns the current view of a task without advancing it
func (e *Engine) GetTask(ctx context.Context, taskID string) (*TaskView, error) {
	task, err := e.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return viewOf(task), nil
}

// RecentTasks lists tasks newest first. limit is clamped to
// [1, MaxRecentLimit]; zero or less means DefaultRecentLimit.
func (e *Engine) RecentTasks(ctx context.Context, limit int) ([]TaskView, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	tasks, err := e.store.ListRecentTasks(ctx, limit)
	if err != nil {
		return nil, taskerr.StoreFailure("", "failed to list tasks", err)
	}

	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, *viewOf(&tasks[i]))
	}
	return views, nil
}

// PreviewKeywords returns the queries a task for productName would run
func (e *Engine) PreviewKeywords(productName string) ([]string, error) {
	if strings.TrimSpace(productName) == "" {
		return nil, taskerr.InvalidInput(taskerr.CodeMissingField, "productName is required")
	}
	return e.generate(productName), nil
}

// ValidateCredential checks a credential against the provider with a
// minimal request.
func (e *Engine) ValidateCredential(ctx context.Context, credential string) error {
	if strings.TrimSpace(credential) == "" {
		return taskerr.InvalidInput(taskerr.CodeMissingField, "credential is required")
	}
	if err := e.provider.ValidateCredential(ctx, credential); err != nil {
		return taskerr.ProviderFailure(taskerr.CodeInvalidCredential, "credential rejected by provider", err)
	}
	return nil
}
