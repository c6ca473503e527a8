package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/provider"
)

var _ provider.SearchProvider = (*YouTubeClient)(nil)

// SearchVideos runs one search.list call for videos matching req.Query.
// Region and publishedAfter fall back to the client config when unset.
// Quota cost: 100 units.
func (c *YouTubeClient) SearchVideos(ctx context.Context, credential string, req provider.SearchRequest) ([]provider.Candidate, error) {
	maxResults := req.MaxResults
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > provider.MaxResultsPerQuery {
		maxResults = provider.MaxResultsPerQuery
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", req.Query)
	params.Set("maxResults", strconv.Itoa(maxResults))

	region := req.RegionCode
	if region == "" {
		region = c.config.RegionCode
	}
	if region != "" {
		params.Set("regionCode", region)
	}

	publishedAfter := req.PublishedAfter
	if publishedAfter == nil {
		publishedAfter = c.config.PublishedAfter
	}
	if publishedAfter != nil {
		params.Set("publishedAfter", publishedAfter.UTC().Format(time.RFC3339))
	}

	log := c.logger.WithFields(logrus.Fields{
		"method":      "SearchVideos",
		"keyword":     req.Query,
		"max_results": maxResults,
		"region":      region,
	})
	log.Debug("Searching videos")

	body, err := c.get(ctx, c.config.SearchEndpoint, params, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	candidates := make([]provider.Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" || item.Snippet.ChannelID == "" {
			continue
		}
		candidates = append(candidates, provider.Candidate{
			VideoID:      item.ID.VideoID,
			VideoTitle:   html.UnescapeString(item.Snippet.Title),
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: html.UnescapeString(item.Snippet.ChannelTitle),
			PublishedAt:  item.Snippet.PublishedAt,
		})
	}

	log.WithField("result_count", len(candidates)).Debug("Search completed")
	return candidates, nil
}

// ValidateCredential issues the cheapest possible search to check that the
// key is accepted.
func (c *YouTubeClient) ValidateCredential(ctx context.Context, credential string) error {
	_, err := c.SearchVideos(ctx, credential, provider.SearchRequest{
		Query:      "test",
		MaxResults: 1,
	})
	return err
}
