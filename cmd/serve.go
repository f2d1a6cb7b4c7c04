package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/hydrodash/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveNoPreload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	Long: `Loads both datasets, then serves the dashboard page, the JSON API and chart
images. A missing input stops startup unless --no-preload is given, in which
case every page answers 503 until the files appear and /api/reload is called.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			c.ListenAddr = serveAddr
		}
		loader := newLoader(c)
		if !serveNoPreload {
			if err := loader.Preload(); err != nil {
				return fmt.Errorf("load data: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Loaded data from %s\n", c.DataDir)
		}
		fnt, err := chartFont(c, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(c, loader, server.WithChartFont(fnt)).ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	serveCmd.Flags().BoolVar(&serveNoPreload, "no-preload", false, "start even if inputs are missing")
}
