package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KevinWangQQ/youtube-influencer-search/internal/app"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/engine"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/export"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/keywords"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/results"
)

func addThresholdFlags(cmd *cobra.Command, t *engine.Thresholds) {
	*t = engine.DefaultThresholds()
	cmd.Flags().Int64Var(&t.MinSubscribers, "min-subscribers", t.MinSubscribers, "minimum channel subscribers")
	cmd.Flags().Int64Var(&t.MinViews, "min-views", t.MinViews, "minimum video views")
	cmd.Flags().IntVar(&t.MaxResults, "max-results", t.MaxResults, "search results requested per keyword (max 50)")
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var thresholds engine.Thresholds
	cmd := &cobra.Command{
		Use:   "create <product>",
		Short: "Create a search task without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credential, err := opts.credential()
			if err != nil {
				return err
			}
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Engine.CreateTask(cmd.Context(), engine.CreateTaskRequest{
					ProductName: args[0],
					Credential:  credential,
					Thresholds:  thresholds,
				})
				if err != nil {
					return err
				}
				if opts.output == "json" {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created task %s with %d keywords:\n", headingColor.Sprint(result.TaskID), len(result.Keywords))
				printKeywords(out, result.Keywords)
				return nil
			})
		},
	}
	addThresholdFlags(cmd, &thresholds)
	return cmd
}

func newStepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "step <task-id>",
		Short: "Process the next keyword of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credential, err := opts.credential()
			if err != nil {
				return err
			}
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				view, err := a.Engine.AdvanceTask(cmd.Context(), args[0], credential)
				if err != nil {
					return err
				}
				if opts.output == "json" {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				printTaskView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		thresholds engine.Thresholds
		taskID     string
		interval   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run [product]",
		Short: "Create a task (or resume one with --task) and step it to completion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (taskID == "") == (len(args) == 0) {
				return fmt.Errorf("pass either a product name or --task")
			}
			credential, err := opts.credential()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return opts.withApp(ctx, func(a *app.App) error {
				out := cmd.OutOrStdout()
				id := taskID
				if id == "" {
					created, err := a.Engine.CreateTask(ctx, engine.CreateTaskRequest{
						ProductName: args[0],
						Credential:  credential,
						Thresholds:  thresholds,
					})
					if err != nil {
						return err
					}
					id = created.TaskID
					if opts.output == "text" {
						fmt.Fprintf(out, "Created task %s with %d keywords\n", headingColor.Sprint(id), len(created.Keywords))
					}
				}

				view, err := runToCompletion(ctx, a.Engine, id, credential, interval, func(v *engine.TaskView) {
					if opts.output == "text" {
						printTaskView(out, v)
					}
				})
				if err != nil {
					return err
				}

				report, err := a.Results.Report(ctx, id)
				if err != nil {
					return err
				}
				if opts.output == "json" {
					return writeJSON(out, struct {
						Task   *engine.TaskView `json:"task"`
						Report *results.Report  `json:"report"`
					}{view, report})
				}
				fmt.Fprintln(out)
				printReport(out, report)
				return nil
			})
		},
	}
	addThresholdFlags(cmd, &thresholds)
	cmd.Flags().StringVar(&taskID, "task", "", "resume an existing task instead of creating one")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "delay between steps")
	return cmd
}

// runToCompletion advances a task once per tick until it reaches a
// terminal state or ctx is cancelled.
func runToCompletion(ctx context.Context, eng *engine.Engine, taskID, credential string, interval time.Duration, onStep func(*engine.TaskView)) (*engine.TaskView, error) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		view, err := eng.AdvanceTask(ctx, taskID, credential)
		if err != nil {
			return nil, err
		}
		onStep(view)
		if view.Status.IsTerminal() {
			return view, nil
		}

		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show a task without advancing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				view, err := a.Engine.GetTask(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.output == "json" {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				printTaskView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}

func newResultsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "results <task-id>",
		Short: "Summarize the influencers found by a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Results.Report(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.output == "json" {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export <task-id>",
		Short: "Write a task's influencers as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				rows, err := a.Results.Rows(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data := export.ToCSV(rows)
				if file == "" {
					fmt.Fprintln(cmd.OutOrStdout(), data)
					return nil
				}
				if file == "auto" {
					file = export.Filename(args[0])
				}
				if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", file, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", len(rows), file)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `output file ("auto" for results_<task-id>.csv; default stdout)`)
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				views, err := a.Engine.RecentTasks(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if opts.output == "json" {
					return writeJSON(cmd.OutOrStdout(), views)
				}
				printHistory(cmd.OutOrStdout(), views)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", engine.DefaultRecentLimit, "number of tasks to show")
	return cmd
}

func newKeywordsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keywords <product>",
		Short: "Preview the search keywords for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := keywords.Generate(args[0])
			if len(queries) == 0 {
				return fmt.Errorf("product name produced no search keywords")
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"keywords":   queries,
					"networking": keywords.IsNetworkingProduct(args[0]),
				})
			}
			printKeywords(cmd.OutOrStdout(), queries)
			return nil
		},
	}
}
