// Package job drives one content-generation job from submission to result.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/client"
	"github.com/raphaelgruber/syllabus-go/internal/metrics"
	"github.com/raphaelgruber/syllabus-go/internal/progress"
	"github.com/raphaelgruber/syllabus-go/internal/syllabus"
)

var (
	ErrNotConnected = errors.New("realtime channel not connected")
	ErrNoChannelID  = errors.New("realtime channel id not assigned")
	ErrJobInFlight  = errors.New("a generation job is already in progress")
	ErrSubmit       = errors.New("job submission failed")
	ErrFetch        = errors.New("result fetch failed")
)

// User-facing notices.
const (
	msgSubmitFailed = "Failed to start course generation. Please try again."
	msgFetchFailed  = "Course content was generated but could not be loaded. Please refresh."
	msgConnectFail  = "Could not connect to the realtime service. Please try again."
)

const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// ChannelSource exposes the readiness of the realtime channel.
type ChannelSource interface {
	ID() string
	IsConnected() bool
}

// Submitter posts a generation job.
type Submitter interface {
	GenerateContent(ctx context.Context, req client.GenerateRequest) (*client.GenerateResponse, error)
}

// ResultFetcher loads the latest flat result.
type ResultFetcher interface {
	LatestSyllabus(ctx context.Context) ([]syllabus.ResultItem, error)
}

// Presenter reflects progress and one-off notices to the user.
// *toast.Presenter satisfies it.
type Presenter interface {
	Handle(e progress.Event)
	Info(msg string)
	Error(msg string)
}

// Upload is the document submitted with a job.
type Upload struct {
	Name   string
	Reader io.Reader
}

// State is a snapshot of the current or last job.
type State struct {
	Status  progress.Status
	Percent int
	Message string
	Modules []syllabus.Module
	Err     error
}

// Options configures an Orchestrator.
type Options struct {
	// Attempts bounds the wait for channel readiness before submitting.
	Attempts int
	Delay    time.Duration
	// Sleep waits between readiness checks; it must return early when ctx ends.
	Sleep func(ctx context.Context, d time.Duration) error

	Builder  *syllabus.Builder
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	OnResult func([]syllabus.Module)
}

// Orchestrator submits jobs and follows them to completion. At most one job
// is tracked at a time. Safe for concurrent use.
type Orchestrator struct {
	channel   ChannelSource
	submitter Submitter
	fetcher   ResultFetcher
	presenter Presenter
	opts      Options
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	inFlight bool
	done     chan struct{}
	detached bool
}

// New creates an orchestrator.
func New(ch ChannelSource, sub Submitter, fetch ResultFetcher, p Presenter, opts Options) *Orchestrator {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Builder == nil {
		opts.Builder = syllabus.NewBuilder()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		channel:   ch,
		submitter: sub,
		fetcher:   fetch,
		presenter: p,
		opts:      opts,
		logger:    opts.Logger.With("component", "job"),
		state:     State{Status: progress.StatusIdle},
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// Submission
// =============================================================================

// Submit waits for the channel, then posts the job. It returns once the
// server has accepted or rejected the submission; progress and the result
// arrive later through Watch. Failures are also reported to the presenter
// and reflected in State.
func (o *Orchestrator) Submit(ctx context.Context, file Upload, classCount int) error {
	if err := o.begin(); err != nil {
		return err
	}

	socketID, err := o.awaitChannel(ctx)
	if err != nil {
		o.logger.Warn("channel not ready, job not submitted", "error", err)
		o.presenter.Error(msgConnectFail)
		o.fail(msgConnectFail, err)
		return err
	}

	o.logger.Info("submitting job", "file", file.Name, "classes", classCount, "channel", socketID)
	resp, err := o.submitter.GenerateContent(ctx, client.GenerateRequest{
		File:       file.Reader,
		FileName:   file.Name,
		ClassCount: classCount,
		SocketID:   socketID,
	})
	if err != nil {
		o.logger.Error("submit job", "error", err)
		o.presenter.Error(msgSubmitFailed)
		err = fmt.Errorf("%w: %w", ErrSubmit, err)
		o.fail(msgSubmitFailed, err)
		return err
	}

	if resp != nil && resp.Message != "" {
		o.presenter.Info(resp.Message)
	}

	o.mu.Lock()
	if o.inFlight && o.state.Status == progress.StatusStarting {
		o.state.Status = progress.StatusProcessing
	}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return ErrJobInFlight
	}
	o.inFlight = true
	o.detached = false
	o.done = make(chan struct{})
	o.state = State{Status: progress.StatusStarting}
	return nil
}

// awaitChannel checks readiness, retrying up to Attempts times.
func (o *Orchestrator) awaitChannel(ctx context.Context) (string, error) {
	for attempt := 1; ; attempt++ {
		id, err := o.ready()
		if err == nil {
			return id, nil
		}
		if attempt > o.opts.Attempts {
			return "", err
		}
		o.logger.Debug("channel not ready", "attempt", attempt, "error", err)
		o.presenter.Info(fmt.Sprintf("Connecting... (Attempt %d/%d)", attempt, o.opts.Attempts))
		if err := o.opts.Sleep(ctx, o.opts.Delay); err != nil {
			return "", fmt.Errorf("wait for channel: %w", err)
		}
	}
}

func (o *Orchestrator) ready() (string, error) {
	if !o.channel.IsConnected() {
		return "", ErrNotConnected
	}
	id := o.channel.ID()
	if id == "" {
		return "", ErrNoChannelID
	}
	return id, nil
}

// =============================================================================
// Progress
// =============================================================================

// Watch forwards events to the presenter and advances the tracked job until
// ctx ends or events is closed.
func (o *Orchestrator) Watch(ctx context.Context, events <-chan progress.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			o.HandleEvent(ctx, e)
		}
	}
}

// HandleEvent applies a single progress event.
func (o *Orchestrator) HandleEvent(ctx context.Context, e progress.Event) {
	o.presenter.Handle(e)

	o.mu.Lock()
	if !o.inFlight || o.detached {
		o.mu.Unlock()
		o.logger.Debug("event without tracked job", "status", e.Status)
		return
	}
	if e.Status != progress.StatusIdle {
		o.state.Status = e.Status
		o.state.Percent = e.Percent()
		o.state.Message = e.Message
	}
	o.mu.Unlock()

	switch e.Status {
	case progress.StatusCompleted:
		o.complete(ctx)
	case progress.StatusError:
		msg := e.Message
		if msg == "" {
			msg = "generation failed"
		}
		o.fail(msg, errors.New(msg))
	}
}

func (o *Orchestrator) complete(ctx context.Context) {
	items, err := o.fetcher.LatestSyllabus(ctx)
	if err != nil {
		o.logger.Error("fetch latest syllabus", "error", err)
		o.fail(msgFetchFailed, fmt.Errorf("%w: %w", ErrFetch, err))
		// The completed toast is already up; turn it into the failure.
		if o.attached() {
			o.presenter.Handle(progress.Event{Status: progress.StatusError, Progress: "100% completed", Message: msgFetchFailed})
		}
		return
	}

	start := time.Now()
	modules := o.opts.Builder.BuildFromFlatResult(items)
	o.opts.Metrics.Observe(metrics.OpTreeBuild, start, nil)

	o.mu.Lock()
	if o.detached {
		o.mu.Unlock()
		o.logger.Debug("discarding result after detach")
		return
	}
	o.state.Status = progress.StatusCompleted
	o.state.Percent = 100
	o.state.Modules = modules
	o.finishLocked()
	onResult := o.opts.OnResult
	o.mu.Unlock()

	o.logger.Info("job completed", "modules", len(modules), "classes", len(items))
	if onResult != nil {
		onResult(modules)
	}
}

// fail ends the job with msg as the user-facing message.
func (o *Orchestrator) fail(msg string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.detached {
		return
	}
	o.state.Status = progress.StatusError
	o.state.Message = msg
	o.state.Err = err
	o.finishLocked()
}

func (o *Orchestrator) attached() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.detached
}

func (o *Orchestrator) finishLocked() {
	if !o.inFlight {
		return
	}
	o.inFlight = false
	close(o.done)
}

// =============================================================================
// Observers
// =============================================================================

// Detach stops applying state updates and callbacks; late events are still
// shown by the presenter. A later Submit reattaches.
func (o *Orchestrator) Detach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.detached = true
	if o.inFlight {
		o.inFlight = false
		close(o.done)
	}
}

// State returns a snapshot of the current or last job.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.state
	if o.state.Modules != nil {
		s.Modules = append(make([]syllabus.Module, 0, len(o.state.Modules)), o.state.Modules...)
	}
	return s
}

// Result returns the modules of the last completed job.
func (o *Orchestrator) Result() ([]syllabus.Module, bool) {
	s := o.State()
	if s.Status != progress.StatusCompleted {
		return nil, false
	}
	return s.Modules, true
}

// Wait blocks until the tracked job finishes or ctx ends. With no job
// tracked it returns the last state immediately.
func (o *Orchestrator) Wait(ctx context.Context) (State, error) {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return o.State(), ctx.Err()
		}
	}
	s := o.State()
	return s, s.Err
}
