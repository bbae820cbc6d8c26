// Package cli provides the command-line interface for syllabus.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/raphaelgruber/syllabus-go/internal/client"
	"github.com/raphaelgruber/syllabus-go/internal/config"
	"github.com/raphaelgruber/syllabus-go/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose     bool
	serverURL   string
	realtimeURL string

	// Global config and logger
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "syllabus",
	Short: "Generate course syllabi from PDF documents",
	Long: `Syllabus submits a PDF to the course-generation backend, follows the job
over the realtime channel, and prints the generated course as a
module → class → slide tree.

Configuration is read from SYLLABUS_* environment variables and an optional
.env file in the working directory.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if serverURL != "" {
			cfg.ServerURL = strings.TrimRight(serverURL, "/")
			if realtimeURL == "" && os.Getenv("SYLLABUS_REALTIME_URL") == "" {
				cfg.RealtimeURL = config.RealtimeURLFor(cfg.ServerURL)
			}
		}
		if realtimeURL != "" {
			cfg.RealtimeURL = realtimeURL
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		// The progress UI owns the terminal while a job runs.
		quiet := cmd.Name() == "generate" && isTerminal(os.Stdout)
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel, quiet)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend URL (overrides SYLLABUS_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&realtimeURL, "realtime", "", "realtime channel URL (default derived from --server)")

	// Add subcommands
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(serveCmd)
}

// newClient creates the REST client from config.
func newClient(m *metrics.Collector) *client.Client {
	return client.New(cfg.ServerURL,
		client.WithToken(cfg.Token),
		client.WithTimeout(cfg.ClientTimeout),
		client.WithMetrics(m),
	)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
