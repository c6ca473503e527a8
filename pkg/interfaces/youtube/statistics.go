package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/provider"
)

// maxIDsPerRequest is the id list limit of channels.list and videos.list
const maxIDsPerRequest = 50

// ChannelStatistics resolves subscriber counts in batches of 50 ids.
// Quota cost: 1 unit per batch.
func (c *YouTubeClient) ChannelStatistics(ctx context.Context, credential string, ids []string) (map[string]provider.ChannelStats, error) {
	ids = provider.UniqueIDs(ids)
	result := make(map[string]provider.ChannelStats, len(ids))

	for _, batch := range chunk(ids, maxIDsPerRequest) {
		body, err := c.get(ctx, c.config.ChannelsEndpoint, statsParams(batch), credential)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch channel statistics: %w", err)
		}

		var resp channelsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode channels response: %w", err)
		}

		for _, item := range resp.Items {
			result[item.ID] = provider.ChannelStats{
				ID:                item.ID,
				Title:             item.Snippet.Title,
				URL:               ChannelURL(item.ID),
				Subscribers:       parseCount(item.Statistics.SubscriberCount),
				HiddenSubscribers: item.Statistics.HiddenSubscriberCount,
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"requested": len(ids),
		"resolved":  len(result),
	}).Debug("Channel statistics resolved")
	return result, nil
}

// VideoStatistics resolves view counts in batches of 50 ids.
// Quota cost: 1 unit per batch.
func (c *YouTubeClient) VideoStatistics(ctx context.Context, credential string, ids []string) (map[string]provider.VideoStats, error) {
	ids = provider.UniqueIDs(ids)
	result := make(map[string]provider.VideoStats, len(ids))

	for _, batch := range chunk(ids, maxIDsPerRequest) {
		body, err := c.get(ctx, c.config.VideosEndpoint, statsParams(batch), credential)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch video statistics: %w", err)
		}

		var resp videosResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode videos response: %w", err)
		}

		for _, item := range resp.Items {
			result[item.ID] = provider.VideoStats{
				ID:    item.ID,
				Title: item.Snippet.Title,
				URL:   VideoURL(item.ID),
				Views: parseCount(item.Statistics.ViewCount),
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"requested": len(ids),
		"resolved":  len(result),
	}).Debug("Video statistics resolved")
	return result, nil
}

func statsParams(ids []string) url.Values {
	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", strconv.Itoa(len(ids)))
	return params
}

// parseCount reads the API's decimal-string counters; absent or malformed
// values count as zero.
func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}
