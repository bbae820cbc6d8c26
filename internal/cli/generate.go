package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/channel"
	"github.com/raphaelgruber/syllabus-go/internal/client"
	"github.com/raphaelgruber/syllabus-go/internal/job"
	"github.com/raphaelgruber/syllabus-go/internal/metrics"
	"github.com/raphaelgruber/syllabus-go/internal/toast"
	"github.com/raphaelgruber/syllabus-go/internal/tui"
	"github.com/spf13/cobra"
)

var (
	genClasses int
	genTimeout time.Duration
	genStats   bool
	genOutput  outputOptions
)

var generateCmd = &cobra.Command{
	Use:   "generate <file.pdf>",
	Short: "Generate a course from a PDF",
	Long: `Upload a PDF and generate a course outline from it.

The command connects to the realtime channel, submits the job, shows progress
until the backend reports completion, then fetches the result and prints it as
a module → class → slide tree.

Examples:
  syllabus generate notes.pdf --classes 8
  syllabus generate notes.pdf --classes 8 --format json --out course.json
  syllabus generate notes.pdf --classes 12 --slides --stats`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVarP(&genClasses, "classes", "n", 4, "number of classes to generate")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 15*time.Minute, "give up waiting for the job after this long")
	generateCmd.Flags().BoolVar(&genStats, "stats", false, "print operation timings")
	generateCmd.Flags().StringVarP(&genOutput.format, "format", "f", formatText, "output format: text, json, yaml or markdown")
	generateCmd.Flags().StringVarP(&genOutput.out, "out", "o", "", "write the result to a file")
	generateCmd.Flags().BoolVar(&genOutput.slides, "slides", false, "list slides in the text tree")
}

// progressView is where the progress display is shown.
type progressView struct {
	notifier toast.Notifier
	ui       *tui.ToastUI
}

func newProgressView() *progressView {
	if isTerminal(os.Stdout) {
		ui := tui.NewToastUI(os.Stdout, os.Stdin, tui.DefaultTheme)
		ui.Start()
		return &progressView{notifier: ui.Notifier(), ui: ui}
	}
	return &progressView{notifier: tui.NewLineNotifier(os.Stderr)}
}

// interrupted is closed when the user quits the interactive display.
func (v *progressView) interrupted() <-chan struct{} {
	if v.ui == nil {
		return nil
	}
	return v.ui.Done()
}

func (v *progressView) finish(summary string, err error) {
	if v.ui == nil {
		if summary != "" && err == nil {
			fmt.Fprintln(os.Stderr, summary)
		}
		return
	}
	if uiErr := v.ui.Finish(summary, err); uiErr != nil {
		logger.Warn("progress UI", "error", uiErr)
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	path := args[0]
	if genClasses < 1 {
		return fmt.Errorf("--classes must be at least 1")
	}
	if err := genOutput.validate(); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer file.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, genTimeout)
	defer cancel()

	collector := metrics.NewCollector()
	api := newClient(collector)

	scope := channel.NewScope(cfg.JobSegments, func() *channel.Session {
		return channel.NewSession(channel.Options{
			URL:               cfg.RealtimeURL,
			Header:            authHeader(),
			ReconnectAttempts: cfg.ReconnectAttempts,
			ReconnectDelay:    cfg.ReconnectDelay,
			Logger:            logger,
			Metrics:           collector,
		})
	}, logger)
	defer scope.Logout()

	session, err := scope.Navigate(client.PathGenerateContent)
	if err != nil {
		return fmt.Errorf("open realtime channel: %w", err)
	}
	if session == nil {
		return fmt.Errorf("realtime channel is not enabled for %s (check SYLLABUS_JOB_SEGMENTS)", client.PathGenerateContent)
	}

	view := newProgressView()
	presenter := toast.NewPresenter(view.notifier, toast.Options{
		DismissDelay: cfg.ToastDismiss,
		EditorPath:   cfg.EditorPath,
		Logger:       logger,
	})
	presenter.SetView(client.PathGenerateContent)

	orch := job.New(session, api, api, presenter, job.Options{
		Attempts: cfg.ConnectAttempts,
		Delay:    cfg.ConnectDelay,
		Logger:   logger,
		Metrics:  collector,
	})

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go orch.Watch(watchCtx, session.Events().C())

	upload := job.Upload{Name: filepath.Base(path), Reader: file}
	if err := orch.Submit(ctx, upload, genClasses); err != nil {
		view.finish("", err)
		return fmt.Errorf("submit job: %w", err)
	}

	waitCtx, stopWait := context.WithCancel(ctx)
	defer stopWait()
	go func() {
		select {
		case <-view.interrupted():
			stopWait()
		case <-waitCtx.Done():
		}
	}()

	st, err := orch.Wait(waitCtx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		orch.Detach()
		view.finish("", nil)
		if view.ui != nil && view.ui.Interrupted() {
			return nil
		}
		return fmt.Errorf("wait for job: %w", err)
	}
	if err != nil {
		view.finish("", err)
		return fmt.Errorf("generate course: %w", err)
	}

	view.finish(summarize(st.Modules), nil)
	if err := writeModules(os.Stdout, filepath.Base(path), st.Modules, genOutput); err != nil {
		return err
	}
	if genStats {
		writeStats(os.Stderr, collector.Snapshot())
	}
	return nil
}

func authHeader() http.Header {
	if cfg.Token == "" {
		return nil
	}
	return http.Header{"Authorization": {"Bearer " + cfg.Token}}
}
