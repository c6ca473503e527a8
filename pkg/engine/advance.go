package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/monitoring"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/provider"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/store"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/taskerr"
)

// AdvanceTask processes at most one keyword of a running task and returns
// the resulting view. Terminal tasks are returned unchanged. A provider
// failure fails the task and is reported in the view, not as an error.
//
// Concurrent calls for the same task and credential within this process
// share one execution. Once started, a step runs to completion even if the
// caller goes away, so a dropped request cannot fail its task.
func (e *Engine) AdvanceTask(ctx context.Context, taskID, credential string) (*TaskView, error) {
	key := taskID + "|" + HashCredential(credential)
	v, err, _ := e.inflight.Do(key, func() (interface{}, error) {
		return e.advance(context.WithoutCancel(ctx), taskID, credential)
	})
	if err != nil {
		return nil, err
	}
	view := *v.(*TaskView)
	return &view, nil
}

func (e *Engine) advance(ctx context.Context, taskID, credential string) (*TaskView, error) {
	start := time.Now()

	task, err := e.loadTask(ctx, taskID)
	if err != nil {
		e.metrics.ObserveStep(monitoring.OutcomeError, time.Since(start))
		return nil, err
	}
	if task.Status.IsTerminal() {
		e.metrics.ObserveStep(monitoring.OutcomeTerminal, 0)
		return viewOf(task), nil
	}
	if credential == "" {
		return nil, taskerr.MissingCredential(taskID)
	}

	keyword, err := e.store.ClaimNextKeyword(ctx, taskID)
	if err != nil {
		e.metrics.ObserveStep(monitoring.OutcomeError, time.Since(start))
		return nil, taskerr.StoreFailure(taskID, "failed to claim keyword", err)
	}
	if keyword == nil {
		view, err := e.complete(ctx, task)
		if err == nil {
			e.metrics.ObserveStep(monitoring.OutcomeCompleted, time.Since(start))
		}
		return view, err
	}

	log := e.logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"keyword": keyword.Query,
	})

	rows, filtered, err := e.searchKeyword(ctx, task, keyword, credential)
	if err != nil {
		view, failErr := e.fail(ctx, task, keyword, err)
		if failErr == nil {
			e.metrics.ObserveStep(monitoring.OutcomeFailed, time.Since(start))
		}
		return view, failErr
	}
	e.metrics.AddCandidatesFiltered(filtered)

	inserted, err := e.store.InsertInfluencers(ctx, rows)
	if err != nil {
		if releaseErr := e.store.ReleaseKeyword(ctx, keyword.ID); releaseErr != nil {
			log.WithError(releaseErr).Error("Failed to release keyword after store failure")
		}
		e.metrics.ObserveStep(monitoring.OutcomeError, time.Since(start))
		return nil, taskerr.StoreFailure(taskID, "failed to store influencers", err)
	}
	e.metrics.AddInfluencersStored(inserted)

	counts, err := e.store.CountKeywords(ctx, taskID)
	if err != nil {
		e.metrics.ObserveStep(monitoring.OutcomeError, time.Since(start))
		return nil, taskerr.StoreFailure(taskID, "failed to count keywords", err)
	}

	progress := computeProgress(counts)
	status := models.StatusRunning
	if counts.Processed >= counts.Total {
		status = models.StatusCompleted
	}

	view, err := e.applyProgress(ctx, task, progress, status)
	if err != nil {
		e.metrics.ObserveStep(monitoring.OutcomeError, time.Since(start))
		return nil, err
	}

	outcome := monitoring.OutcomeAdvanced
	if view.Status == models.StatusCompleted {
		outcome = monitoring.OutcomeCompleted
	}
	e.metrics.ObserveStep(outcome, time.Since(start))

	log.WithFields(logrus.Fields{
		"matched":   len(rows),
		"inserted":  inserted,
		"filtered":  filtered,
		"processed": counts.Processed,
		"total":     counts.Total,
		"progress":  view.Progress,
		"status":    view.Status,
	}).Info("Keyword processed")

	return view, nil
}

// searchKeyword runs the search and both statistics lookups for one keyword
// and returns the rows that pass the task thresholds, plus the number of
// candidates rejected.
func (e *Engine) searchKeyword(ctx context.Context, task *models.Task, keyword *models.Keyword, credential string) ([]models.Influencer, int, error) {
	limit := task.MaxResults
	if limit > provider.MaxResultsPerQuery {
		limit = provider.MaxResultsPerQuery
	}

	candidates, err := e.provider.SearchVideos(ctx, credential, provider.SearchRequest{
		Query:      keyword.Query,
		MaxResults: limit,
	})
	if err != nil {
		return nil, 0, err
	}
	if len(candidates) == 0 {
		return nil, 0, nil
	}

	channelIDs := make([]string, 0, len(candidates))
	videoIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		channelIDs = append(channelIDs, c.ChannelID)
		videoIDs = append(videoIDs, c.VideoID)
	}
	channelIDs = provider.UniqueIDs(channelIDs)
	videoIDs = provider.UniqueIDs(videoIDs)

	var (
		channels map[string]provider.ChannelStats
		videos   map[string]provider.VideoStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		channels, err = e.provider.ChannelStatistics(gctx, credential, channelIDs)
		return err
	})
	g.Go(func() error {
		var err error
		videos, err = e.provider.VideoStatistics(gctx, credential, videoIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	now := e.now()
	seen := make(map[string]struct{}, len(candidates))
	rows := make([]models.Influencer, 0, len(candidates))
	filtered := 0
	for _, c := range candidates {
		pair := c.ChannelID + "/" + c.VideoID
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}

		channel, okChannel := channels[c.ChannelID]
		video, okVideo := videos[c.VideoID]
		if !okChannel || !okVideo {
			filtered++
			continue
		}
		if channel.Subscribers < task.MinSubscribers || video.Views < task.MinViews {
			filtered++
			continue
		}

		rows = append(rows, models.Influencer{
			TaskID:        task.ID,
			ChannelID:     c.ChannelID,
			ChannelTitle:  firstNonEmpty(channel.Title, c.ChannelTitle),
			ChannelURL:    channel.URL,
			VideoID:       c.VideoID,
			VideoTitle:    firstNonEmpty(video.Title, c.VideoTitle),
			VideoURL:      video.URL,
			Subscribers:   channel.Subscribers,
			Views:         video.Views,
			SearchKeyword: keyword.Query,
			CreatedAt:     now,
		})
	}

	return rows, filtered, nil
}

// complete marks a task with no keywords left as completed
func (e *Engine) complete(ctx context.Context, task *models.Task) (*TaskView, error) {
	view, err := e.applyProgress(ctx, task, 100, models.StatusCompleted)
	if err != nil {
		return nil, err
	}
	e.logger.WithField("task_id", task.ID).Info("Search task completed")
	return view, nil
}

// fail records a provider failure on the task
func (e *Engine) fail(ctx context.Context, task *models.Task, keyword *models.Keyword, cause error) (*TaskView, error) {
	message := fmt.Sprintf("search for %q failed: %v", keyword.Query, cause)

	e.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"keyword": keyword.Query,
		"error":   cause,
	}).Warn("Provider failure, failing task")

	ok, err := e.store.FailTask(ctx, task.ID, message)
	if err != nil {
		return nil, taskerr.StoreFailure(task.ID, "failed to record task failure", err)
	}
	if !ok {
		return e.reload(ctx, task.ID)
	}

	now := e.now()
	task.Status = models.StatusFailed
	task.Progress = 100
	task.ErrorMessage = message
	task.CompletedAt = &now
	return viewOf(task), nil
}

// applyProgress writes progress and status, falling back to the stored state
// when another caller already moved the task further.
func (e *Engine) applyProgress(ctx context.Context, task *models.Task, progress int, status models.TaskStatus) (*TaskView, error) {
	ok, err := e.store.UpdateProgress(ctx, task.ID, progress, status)
	if err != nil {
		return nil, taskerr.StoreFailure(task.ID, "failed to update progress", err)
	}
	if !ok {
		return e.reload(ctx, task.ID)
	}

	task.Progress = progress
	task.Status = status
	if status.IsTerminal() {
		now := e.now()
		task.CompletedAt = &now
	}
	return viewOf(task), nil
}

func (e *Engine) reload(ctx context.Context, taskID string) (*TaskView, error) {
	task, err := e.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return viewOf(task), nil
}

func (e *Engine) loadTask(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := e.store.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return nil, taskerr.NotFound(taskID)
	}
	if err != nil {
		return nil, taskerr.StoreFailure(taskID, "failed to load task", err)
	}
	return task, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
