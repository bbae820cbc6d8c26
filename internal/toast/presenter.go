// Package toast coalesces job progress into a single notification.
package toast

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/progress"
)

// DefaultDismissDelay is how long a finished job's notification stays up.
const DefaultDismissDelay = 5 * time.Second

// Toast is the content of a progress notification.
type Toast struct {
	Status  progress.Status
	Title   string
	Message string
	Percent int

	// AutoDismiss is informational for renderers; the presenter performs
	// the dismissal itself. Zero means the toast stays until dismissed.
	AutoDismiss time.Duration
}

// Notifier renders notifications. Handles returned by Show identify a live
// notification for later Update and Dismiss calls.
type Notifier interface {
	Show(t Toast) string
	Update(handle string, t Toast)
	Dismiss(handle string)

	// Info and Error display one-off notices that are not coalesced.
	Info(msg string)
	Error(msg string)
}

// Timer is the subset of *time.Timer the presenter needs.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed dismissals.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Options configures a Presenter.
type Options struct {
	DismissDelay time.Duration
	Clock        Clock
	// EditorPath is the view that renders its own inline progress.
	EditorPath string
	Logger     *slog.Logger
}

// Presenter keeps at most one live notification for the current job:
// active statuses create or update it in place, terminal statuses update it
// and schedule dismissal, idle dismisses it.
// Safe for concurrent use.
type Presenter struct {
	notifier Notifier
	delay    time.Duration
	clock    Clock
	editor   string
	logger   *slog.Logger

	mu         sync.Mutex
	handle     string
	timer      Timer
	generation int
	suppressed bool
}

// NewPresenter creates a presenter rendering through n.
func NewPresenter(n Notifier, opts Options) *Presenter {
	if opts.DismissDelay <= 0 {
		opts.DismissDelay = DefaultDismissDelay
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Presenter{
		notifier: n,
		delay:    opts.DismissDelay,
		clock:    opts.Clock,
		editor:   strings.TrimRight(opts.EditorPath, "/"),
		logger:   opts.Logger.With("component", "toast"),
	}
}

// SetView tells the presenter which view is active. On the editor view
// nothing is shown and any live notification is dismissed.
func (p *Presenter) SetView(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.suppressed = p.isEditor(path)
	if p.suppressed {
		p.dismissLocked()
	}
}

func (p *Presenter) isEditor(path string) bool {
	if p.editor == "" {
		return false
	}
	path, _, _ = strings.Cut(path, "?")
	path = strings.TrimRight(path, "/")
	return path == p.editor || strings.HasPrefix(path, p.editor+"/")
}

// Handle reflects e in the notification.
func (p *Presenter) Handle(e progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.suppressed {
		p.dismissLocked()
		return
	}

	switch {
	case e.Status == progress.StatusIdle:
		p.dismissLocked()

	case e.Status.Active():
		p.stopTimerLocked()
		p.showLocked(toastFor(e, 0))

	case e.Status.Terminal():
		p.stopTimerLocked()
		p.showLocked(toastFor(e, p.delay))
		p.generation++
		gen, handle := p.generation, p.handle
		p.timer = p.clock.AfterFunc(p.delay, func() { p.expire(gen, handle) })

	default:
		p.logger.Debug("ignoring unknown status", "status", e.Status)
	}
}

// Live reports how many notifications are currently shown (0 or 1).
func (p *Presenter) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == "" {
		return 0
	}
	return 1
}

// Info forwards a one-off notice.
func (p *Presenter) Info(msg string) { p.notifier.Info(msg) }

// Error forwards a one-off error notice.
func (p *Presenter) Error(msg string) { p.notifier.Error(msg) }

func (p *Presenter) showLocked(t Toast) {
	if p.handle == "" {
		p.handle = p.notifier.Show(t)
		return
	}
	p.notifier.Update(p.handle, t)
}

func (p *Presenter) dismissLocked() {
	p.stopTimerLocked()
	if p.handle != "" {
		p.notifier.Dismiss(p.handle)
		p.handle = ""
	}
}

func (p *Presenter) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	// Invalidate a timer that already fired but has not taken the lock yet.
	p.generation++
}

func (p *Presenter) expire(gen int, handle string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation || handle != p.handle || handle == "" {
		return
	}
	p.notifier.Dismiss(handle)
	p.handle = ""
	p.timer = nil
}

func toastFor(e progress.Event, autoDismiss time.Duration) Toast {
	t := Toast{
		Status:      e.Status,
		Message:     e.Message,
		Percent:     e.Percent(),
		AutoDismiss: autoDismiss,
	}
	switch e.Status {
	case progress.StatusStarting:
		t.Title = "Starting course generation"
	case progress.StatusProcessing:
		t.Title = "Generating course content"
	case progress.StatusCompleted:
		t.Title = "Course content ready"
		t.Percent = 100
	case progress.StatusError:
		t.Title = "Course generation failed"
	}
	return t
}
