// Package results aggregates the influencers stored for a task.
package results

import (
	"context"
	"errors"
	"sort"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/store"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/taskerr"
)

// Summary describes a task's result set. Averages are rounded half up and
// every field is zero for an empty set.
type Summary struct {
	Count          int   `json:"count"`
	UniqueChannels int   `json:"uniqueChannels"`
	MaxSubscribers int64 `json:"maxSubscribers"`
	MaxViews       int64 `json:"maxViews"`
	AvgSubscribers int64 `json:"avgSubscribers"`
	AvgViews       int64 `json:"avgViews"`
}

// TopChannelCount is the number of channels highlighted in a report
const TopChannelCount = 5

// Report is the summary plus rows ordered by views descending
type Report struct {
	TaskID      string              `json:"taskId"`
	Summary     Summary             `json:"summary"`
	TopChannels []models.Influencer `json:"topChannels"`
	Influencers []models.Influencer `json:"influencers"`
}

// Summarize computes the summary of rows
func Summarize(rows []models.Influencer) Summary {
	if len(rows) == 0 {
		return Summary{}
	}

	var summary Summary
	var sumSubs, sumViews int64
	channels := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		sumSubs += r.Subscribers
		sumViews += r.Views
		if r.Subscribers > summary.MaxSubscribers {
			summary.MaxSubscribers = r.Subscribers
		}
		if r.Views > summary.MaxViews {
			summary.MaxViews = r.Views
		}
		channels[r.ChannelID] = struct{}{}
	}

	n := int64(len(rows))
	summary.Count = len(rows)
	summary.UniqueChannels = len(channels)
	summary.AvgSubscribers = (2*sumSubs + n) / (2 * n)
	summary.AvgViews = (2*sumViews + n) / (2 * n)
	return summary
}

// InfluencerStore is the read side the aggregator needs
type InfluencerStore interface {
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ListInfluencers(ctx context.Context, taskID string) ([]models.Influencer, error)
}

type Service struct {
	store InfluencerStore
}

func NewService(store InfluencerStore) *Service {
	return &Service{store: store}
}

// Rows returns a task's influencers ordered by views descending
func (s *Service) Rows(ctx context.Context, taskID string) ([]models.Influencer, error) {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, taskerr.NotFound(taskID)
		}
		return nil, taskerr.StoreFailure(taskID, "failed to load task", err)
	}

	rows, err := s.store.ListInfluencers(ctx, taskID)
	if err != nil {
		return nil, taskerr.StoreFailure(taskID, "failed to list influencers", err)
	}
	if rows == nil {
		rows = []models.Influencer{}
	}
	return rows, nil
}

// Report builds the summary and sorted rows for a task
func (s *Service) Report(ctx context.Context, taskID string) (*Report, error) {
	rows, err := s.Rows(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &Report{
		TaskID:      taskID,
		Summary:     Summarize(rows),
		TopChannels: TopChannels(rows, TopChannelCount),
		Influencers: rows,
	}, nil
}

// TopChannels returns up to n distinct channels ranked by subscribers, each
// represented by its most viewed row.
func TopChannels(rows []models.Influencer, n int) []models.Influencer {
	best := make(map[string]models.Influencer)
	order := make([]string, 0)
	for _, r := range rows {
		current, ok := best[r.ChannelID]
		if !ok {
			order = append(order, r.ChannelID)
			best[r.ChannelID] = r
			continue
		}
		if r.Views > current.Views {
			best[r.ChannelID] = r
		}
	}

	top := make([]models.Influencer, 0, len(order))
	for _, id := range order {
		top = append(top, best[id])
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Subscribers > top[j].Subscribers
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}
