// Package cli implements the leadsearch command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/KevinWangQQ/youtube-influencer-search/internal/app"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/logging"
)

const credentialEnv = "YOUTUBE_API_KEY"

type rootOptions struct {
	output    string
	apiKey    string
	logLevel  string
	logFormat string

	logger *logrus.Logger
	build  func(ctx context.Context, logger *logrus.Logger) (*app.App, error)
}

// NewRootCmd returns the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{build: app.Build}

	rootCmd := &cobra.Command{
		Use:           "leadsearch",
		Short:         "Find YouTube creators who review a product",
		Long:          "leadsearch runs stepwise YouTube searches for a product and collects channels that clear subscriber and view thresholds.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "text", "json":
			default:
				return fmt.Errorf("unsupported --output %q (expected text or json)", opts.output)
			}
			opts.logger = logging.NewLogger(opts.logLevel, opts.logFormat)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.output, "output", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", "", "YouTube Data API key (default $"+credentialEnv+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", getEnvOrDefault("LOG_LEVEL", "warn"), "log level")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", getEnvOrDefault("LOG_FORMAT", "console"), "log format: json|console")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newCreateCmd(opts))
	rootCmd.AddCommand(newStepCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newResultsCmd(opts))
	rootCmd.AddCommand(newExportCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newKeywordsCmd(opts))
	rootCmd.AddCommand(newValidateKeyCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))

	return rootCmd
}

// credential returns --api-key, falling back to the environment
func (o *rootOptions) credential() (string, error) {
	key := strings.TrimSpace(o.apiKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(credentialEnv))
	}
	if key == "" {
		return "", fmt.Errorf("a YouTube API key is required (--api-key or %s)", credentialEnv)
	}
	return key, nil
}

// withApp builds the application, runs fn and closes it
func (o *rootOptions) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := o.build(ctx, o.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			o.logger.WithError(err).Warn("Failed to close resources")
		}
	}()
	return fn(a)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
