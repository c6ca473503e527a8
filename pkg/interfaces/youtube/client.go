// Package youtube is a YouTube Data API v3 client implementing the video
// search provider contract.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 8 << 20

// ClientOption allows for customization of the client
type ClientOption func(*YouTubeClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *YouTubeClient) {
		c.httpClient = httpClient
	}
}

type YouTubeClient struct {
	config     *YouTubeConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   failsafe.Executor[[]byte]
	logger     *logrus.Logger
}

// NewYouTubeClient creates a new Data API client
func NewYouTubeClient(config *YouTubeConfig, opts ...ClientOption) (*YouTubeClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := &YouTubeClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		executor:   newExecutor(config),
		logger:     config.Logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

func newExecutor(config *YouTubeConfig) failsafe.Executor[[]byte] {
	handle := func(_ []byte, err error) bool {
		return isRetryable(err)
	}

	retry := retrypolicy.NewBuilder[[]byte]().
		HandleIf(handle).
		WithMaxRetries(config.RetryAttempts).
		WithBackoff(config.RetryBackoff, config.MaxRetryBackoff).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[[]byte]) {
			config.Logger.WithFields(logrus.Fields{
				"attempt": e.Attempts(),
				"error":   e.LastError(),
			}).Warn("Retrying YouTube API request")
		}).
		Build()

	if !config.CircuitBreaker {
		return failsafe.With[[]byte](retry)
	}

	breaker := circuitbreaker.NewBuilder[[]byte]().
		HandleIf(handle).
		WithFailureThresholdRatio(5, 10).
		WithDelay(15 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			config.Logger.WithFields(logrus.Fields{
				"from": e.OldState.String(),
				"to":   e.NewState.String(),
			}).Warn("YouTube API circuit breaker state changed")
		}).
		Build()

	return failsafe.With[[]byte](retry, breaker)
}

// get performs a rate limited GET with retries and returns the response body
func (c *YouTubeClient) get(ctx context.Context, endpoint string, params url.Values, credential string) ([]byte, error) {
	if credential == "" {
		return nil, ErrMissingAPIKey
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("key", credential)
	fullURL := c.config.BaseURL + endpoint + "?" + query.Encode()

	body, err := c.executor.WithContext(ctx).Get(func() ([]byte, error) {
		return c.doGet(ctx, endpoint, fullURL)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, fmt.Errorf("youtube api temporarily unavailable: %w", err)
	}
	return body, err
}

func (c *YouTubeClient) doGet(ctx context.Context, endpoint, fullURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.WithFields(logrus.Fields{
		"endpoint":    endpoint,
		"status_code": resp.StatusCode,
		"duration":    time.Since(start).String(),
	}).Debug("YouTube API response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeError(resp.StatusCode, body)
	}
	return body, nil
}

// decodeError maps Google's error envelope onto *APIError
func (c *YouTubeClient) decodeError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Errors  []struct {
				Reason  string `json:"reason"`
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"error"`
	}

	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		if len(envelope.Error.Errors) > 0 {
			apiErr.Reason = envelope.Error.Errors[0].Reason
		}
	}

	c.logger.WithFields(logrus.Fields{
		"status_code": apiErr.StatusCode,
		"reason":      apiErr.Reason,
		"message":     apiErr.Message,
	}).Warn("YouTube API error")

	return apiErr
}

// ChannelURL returns the public page of a channel
func ChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID
}

// VideoURL returns the public watch page of a video
func VideoURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
