package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/devserver"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveStepDelay time.Duration
	serveSteps     int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local backend for development",
	Long: `Run an in-memory backend that accepts jobs, reports progress over the
realtime channel and serves a synthetic course as the latest result.

Examples:
  syllabus serve
  syllabus serve --addr :9000 --step-delay 200ms
  SYLLABUS_SERVER_URL=http://localhost:9000 syllabus generate notes.pdf`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8585", "listen address")
	serveCmd.Flags().DurationVar(&serveStepDelay, "step-delay", 500*time.Millisecond, "delay between progress events")
	serveCmd.Flags().IntVar(&serveSteps, "steps", 4, "processing events per job")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := devserver.New(devserver.Options{
		StepDelay: serveStepDelay,
		Steps:     serveSteps,
		Heartbeat: 15 * time.Second,
		Token:     cfg.Token,
		Logger:    logger,
	})

	if err := srv.ListenAndServe(ctx, serveAddr); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
