package youtube

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

type YouTubeConfig struct {
	// API Endpoints
	BaseURL          string
	SearchEndpoint   string
	ChannelsEndpoint string
	VideosEndpoint   string

	// Search defaults applied when a request leaves them unset
	RegionCode     string
	PublishedAfter *time.Time

	// Transport
	RequestTimeout time.Duration

	// Rate limiting and resilience
	RateLimit       float64 // requests per second
	RateBurst       int
	RetryAttempts   int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	CircuitBreaker  bool

	Logger *logrus.Logger
}

// DefaultYouTubeConfig returns the production defaults
func DefaultYouTubeConfig() *YouTubeConfig {
	return &YouTubeConfig{
		BaseURL:          defaultBaseURL,
		SearchEndpoint:   "/search",
		ChannelsEndpoint: "/channels",
		VideosEndpoint:   "/videos",
		RegionCode:       "US",
		RequestTimeout:   30 * time.Second,
		RateLimit:        5,
		RateBurst:        5,
		RetryAttempts:    3,
		RetryBackoff:     500 * time.Millisecond,
		MaxRetryBackoff:  5 * time.Second,
		CircuitBreaker:   true,
		Logger:           logrus.New(),
	}
}

// NewYouTubeConfig builds the client config from environment variables
func NewYouTubeConfig() (*YouTubeConfig, error) {
	config := DefaultYouTubeConfig()
	config.BaseURL = getEnvOrDefault("YOUTUBE_API_BASE_URL", defaultBaseURL)
	config.RegionCode = getEnvOrDefault("YOUTUBE_REGION_CODE", config.RegionCode)

	if raw := os.Getenv("YOUTUBE_PUBLISHED_AFTER"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid YOUTUBE_PUBLISHED_AFTER (want RFC3339): %w", err)
		}
		config.PublishedAfter = &t
	}

	var err error
	if config.RequestTimeout, err = time.ParseDuration(getEnvOrDefault("YOUTUBE_REQUEST_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("invalid YOUTUBE_REQUEST_TIMEOUT: %w", err)
	}
	if config.RateLimit, err = strconv.ParseFloat(getEnvOrDefault("YOUTUBE_RATE_LIMIT", "5"), 64); err != nil {
		return nil, fmt.Errorf("invalid YOUTUBE_RATE_LIMIT: %w", err)
	}
	if config.RateBurst, err = strconv.Atoi(getEnvOrDefault("YOUTUBE_RATE_BURST", "5")); err != nil {
		return nil, fmt.Errorf("invalid YOUTUBE_RATE_BURST: %w", err)
	}
	if config.RetryAttempts, err = strconv.Atoi(getEnvOrDefault("YOUTUBE_RETRY_ATTEMPTS", "3")); err != nil {
		return nil, fmt.Errorf("invalid YOUTUBE_RETRY_ATTEMPTS: %w", err)
	}
	backoffMS, err := strconv.Atoi(getEnvOrDefault("YOUTUBE_RETRY_BACKOFF_MS", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid YOUTUBE_RETRY_BACKOFF_MS: %w", err)
	}
	config.RetryBackoff = time.Duration(backoffMS) * time.Millisecond
	if config.CircuitBreaker, err = strconv.ParseBool(getEnvOrDefault("YOUTUBE_CIRCUIT_BREAKER", "true")); err != nil {
		return nil, fmt.Errorf("invalid YOUTUBE_CIRCUIT_BREAKER: %w", err)
	}

	config.Logger.WithFields(logrus.Fields{
		"base_url":       config.BaseURL,
		"region_code":    config.RegionCode,
		"rate_limit":     config.RateLimit,
		"retry_attempts": config.RetryAttempts,
	}).Debug("YouTube config initialized")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *YouTubeConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.MaxRetryBackoff < c.RetryBackoff {
		c.MaxRetryBackoff = c.RetryBackoff
	}
	if c.SearchEndpoint == "" {
		c.SearchEndpoint = "/search"
	}
	if c.ChannelsEndpoint == "" {
		c.ChannelsEndpoint = "/channels"
	}
	if c.VideosEndpoint == "" {
		c.VideosEndpoint = "/videos"
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
