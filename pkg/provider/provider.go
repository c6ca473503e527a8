// Package provider defines the video search contract the task engine
// consumes, independent of the backing API.
package provider

import (
	"context"
	"time"
)

// MaxResultsPerQuery is the largest page a single search may request
const MaxResultsPerQuery = 50

// SearchRequest describes one video search
type SearchRequest struct {
	Query          string
	MaxResults     int
	RegionCode     string
	PublishedAfter *time.Time
}

// Candidate is a video returned by a search, before statistics are known
type Candidate struct {
	VideoID      string
	VideoTitle   string
	ChannelID    string
	ChannelTitle string
	PublishedAt  time.Time
}

type ChannelStats struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Subscribers int64  `json:"subscribers"`
	// HiddenSubscribers is set when the channel hides its count; Subscribers is then 0.
	HiddenSubscribers bool `json:"hiddenSubscribers,omitempty"`
}

type VideoStats struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Views int64  `json:"views"`
}

// SearchProvider is implemented by video platform clients. The credential
// is passed per call and never retained. Statistics lookups with no ids
// return empty maps without contacting the platform; ids the platform does
// not know are absent from the result.
type SearchProvider interface {
	SearchVideos(ctx context.Context, credential string, req SearchRequest) ([]Candidate, error)
	ChannelStatistics(ctx context.Context, credential string, ids []string) (map[string]ChannelStats, error)
	VideoStatistics(ctx context.Context, credential string, ids []string) (map[string]VideoStats, error)
	ValidateCredential(ctx context.Context, credential string) error
}

// UniqueIDs returns ids with empties and repeats removed, preserving order
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
