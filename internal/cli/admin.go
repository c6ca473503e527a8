package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/interfaces/youtube"
)

func newValidateKeyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-key",
		Short: "Check that the YouTube API key is accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			credential, err := opts.credential()
			if err != nil {
				return err
			}

			config, err := youtube.NewYouTubeConfig()
			if err != nil {
				return err
			}
			config.Logger = opts.logger
			client, err := youtube.NewYouTubeClient(config)
			if err != nil {
				return err
			}

			validateErr := client.ValidateCredential(cmd.Context(), credential)
			if opts.output == "json" {
				result := map[string]interface{}{"valid": validateErr == nil}
				if validateErr != nil {
					result["error"] = validateErr.Error()
				}
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return validateErr
			}
			if validateErr != nil {
				return fmt.Errorf("API key rejected: %w", validateErr)
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓"), "API key is valid")
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := db.NewDBConfig()
			if err != nil {
				return err
			}
			// SetupDatabase migrates either driver
			gormDB, err := db.SetupDatabase(opts.logger, config)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)
			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", config.Driver)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := db.NewDBConfig()
			if err != nil {
				return err
			}
			version, dirty, err := db.MigrationStatus(opts.logger, config)
			if errors.Is(err, db.ErrMigrationsUnsupported) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s schema is migrated automatically on startup\n", config.Driver)
				return nil
			}
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"version": version, "dirty": dirty})
			}
			state := color.GreenString("clean")
			if dirty {
				state = color.RedString("dirty")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migration version %d (%s)\n", version, state)
			return nil
		},
	})

	return cmd
}
