package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/metrics"
	"github.com/raphaelgruber/syllabus-go/internal/syllabus"
	"github.com/spf13/cobra"
)

var fetchOutput outputOptions

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the latest generated course",
	Long: `Fetch the result of the most recent completed job and print it as a tree.

Useful after leaving 'syllabus generate' before the job finished.

Examples:
  syllabus fetch
  syllabus fetch --slides
  syllabus fetch --format yaml --out course.yaml`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput.format, "format", "f", formatText, "output format: text, json, yaml or markdown")
	fetchCmd.Flags().StringVarP(&fetchOutput.out, "out", "o", "", "write the result to a file")
	fetchCmd.Flags().BoolVar(&fetchOutput.slides, "slides", false, "list slides in the text tree")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := fetchOutput.validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ClientTimeout)
	defer cancel()

	collector := metrics.NewCollector()
	items, err := newClient(collector).LatestSyllabus(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest syllabus: %w", err)
	}
	logger.Debug("fetched latest syllabus", "classes", len(items))

	start := time.Now()
	modules := syllabus.BuildFromFlatResult(items)
	collector.Observe(metrics.OpTreeBuild, start, nil)

	if len(modules) == 0 {
		fmt.Fprintln(os.Stderr, "No generated course yet.")
	}
	return writeModules(os.Stdout, "Latest course", modules, fetchOutput)
}
