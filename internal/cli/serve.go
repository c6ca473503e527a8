package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/KevinWangQQ/youtube-influencer-search/internal/app"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/api"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := api.NewServerConfig()
			if port != "" {
				cfg.Port = port
			}
			gin.SetMode(cfg.Mode)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return opts.withApp(ctx, func(a *app.App) error {
				return api.Serve(ctx, cfg, a.Router(), opts.logger)
			})
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default $PORT or 3000)")
	return cmd
}
