package toast_test

import (
	"testing"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/progress"
	"github.com/raphaelgruber/syllabus-go/internal/toast"
	"github.com/raphaelgruber/syllabus-go/internal/toast/toasttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPresenter() (*toast.Presenter, *toasttest.Recorder, *toasttest.Clock) {
	rec := toasttest.NewRecorder()
	clock := &toasttest.Clock{}
	p := toast.NewPresenter(rec, toast.Options{
		Clock:      clock,
		EditorPath: "/syllabus/editor",
	})
	return p, rec, clock
}

func ev(status progress.Status, pct string) progress.Event {
	return progress.Event{Status: status, Progress: pct, Message: string(status)}
}

func TestPresenterCoalescesJobIntoOneToast(t *testing.T) {
	p, rec, clock := newPresenter()

	p.Handle(ev(progress.StatusStarting, "0% completed"))
	p.Handle(ev(progress.StatusProcessing, "30% completed"))
	p.Handle(ev(progress.StatusProcessing, "80% completed"))
	p.Handle(ev(progress.StatusCompleted, "100% completed"))

	shows := rec.Ops("show")
	require.Len(t, shows, 1)
	handle := shows[0].Handle
	assert.Equal(t, progress.StatusStarting, shows[0].Toast.Status)

	updates := rec.Ops("update")
	require.Len(t, updates, 3)
	for _, u := range updates {
		assert.Equal(t, handle, u.Handle)
	}
	assert.Equal(t, 30, updates[0].Toast.Percent)
	assert.Equal(t, 80, updates[1].Toast.Percent)
	assert.Equal(t, progress.StatusCompleted, updates[2].Toast.Status)
	assert.Equal(t, 5*time.Second, updates[2].Toast.AutoDismiss)
	assert.Zero(t, updates[1].Toast.AutoDismiss)

	assert.Equal(t, 1, rec.MaxLive())
	assert.Equal(t, 1, p.Live())

	clock.Advance(4 * time.Second)
	assert.Equal(t, []string{handle}, rec.Live())

	clock.Advance(time.Second)
	assert.Empty(t, rec.Live())
	assert.Equal(t, 0, p.Live())
}

func TestPresenterActiveToastsNeverAutoDismiss(t *testing.T) {
	p, rec, clock := newPresenter()

	p.Handle(ev(progress.StatusProcessing, "10% completed"))
	clock.Advance(time.Hour)

	assert.Len(t, rec.Live(), 1)
	assert.Equal(t, 0, clock.Pending())
}

func TestPresenterTerminalWithoutPriorToast(t *testing.T) {
	p, rec, clock := newPresenter()

	p.Handle(progress.Event{Status: progress.StatusError, Message: "PDF has no text layer"})

	shows := rec.Ops("show")
	require.Len(t, shows, 1)
	assert.Equal(t, "PDF has no text layer", shows[0].Toast.Message)
	assert.Equal(t, "Course generation failed", shows[0].Toast.Title)

	clock.Advance(5 * time.Second)
	assert.Empty(t, rec.Live())
}

func TestPresenterIdleDismissesImmediately(t *testing.T) {
	p, rec, _ := newPresenter()

	p.Handle(ev(progress.StatusIdle, ""))
	assert.Empty(t, rec.Calls())

	p.Handle(ev(progress.StatusProcessing, "50% completed"))
	p.Handle(ev(progress.StatusIdle, ""))

	assert.Empty(t, rec.Live())
	assert.Len(t, rec.Ops("dismiss"), 1)
}

func TestPresenterNewJobReusesPendingTerminalToast(t *testing.T) {
	p, rec, clock := newPresenter()

	p.Handle(ev(progress.StatusCompleted, "100% completed"))
	p.Handle(ev(progress.StatusStarting, "0% completed"))

	// The earlier dismissal must not take down the new job's toast.
	clock.Advance(10 * time.Second)

	assert.Len(t, rec.Ops("show"), 1)
	assert.Len(t, rec.Live(), 1)
	assert.Equal(t, 1, rec.MaxLive())
}

func TestPresenterSecondJobAfterDismissGetsFreshToast(t *testing.T) {
	p, rec, clock := newPresenter()

	p.Handle(ev(progress.StatusCompleted, "100% completed"))
	clock.Advance(5 * time.Second)
	p.Handle(ev(progress.StatusStarting, "0% completed"))

	assert.Len(t, rec.Ops("show"), 2)
	assert.Len(t, rec.Live(), 1)
	assert.Equal(t, 1, rec.MaxLive())
}

func TestPresenterSuppressedOnEditorView(t *testing.T) {
	p, rec, clock := newPresenter()

	p.Handle(ev(progress.StatusProcessing, "20% completed"))
	require.Len(t, rec.Live(), 1)

	p.SetView("/syllabus/editor/42")
	assert.Empty(t, rec.Live(), "existing toast is dismissed on the editor")

	p.Handle(ev(progress.StatusProcessing, "60% completed"))
	p.Handle(ev(progress.StatusCompleted, "100% completed"))
	clock.Advance(10 * time.Second)

	assert.Len(t, rec.Ops("show"), 1)
	assert.Len(t, rec.Ops("update"), 0)
	assert.Empty(t, rec.Live())

	p.SetView("/syllabus/new")
	assert.Empty(t, rec.Live(), "leaving the editor does not bring the toast back")

	p.Handle(ev(progress.StatusStarting, "0% completed"))
	assert.Len(t, rec.Live(), 1)
}

func TestPresenterEditorMatching(t *testing.T) {
	p, rec, _ := newPresenter()

	p.SetView("/syllabus/editors")
	p.Handle(ev(progress.StatusStarting, "0% completed"))
	assert.Len(t, rec.Live(), 1, "only the editor path itself is suppressed")

	p.SetView("/syllabus/editor?course=1")
	assert.Empty(t, rec.Live())
}

func TestPresenterNoticesPassThrough(t *testing.T) {
	p, rec, _ := newPresenter()
	p.SetView("/syllabus/editor")

	p.Info("Connecting... (Attempt 1/3)")
	p.Error("boom")

	assert.Equal(t, []string{"Connecting... (Attempt 1/3)"}, rec.Messages("info"))
	assert.Equal(t, []string{"boom"}, rec.Messages("error"))
}
