// Package toasttest provides a recording toast.Notifier and a manual clock.
package toasttest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/toast"
)

// Call is one recorded notifier call.
type Call struct {
	Op     string // show, update, dismiss, info, error
	Handle string
	Toast  toast.Toast
	Msg    string
}

// Recorder records notifier calls and tracks live toasts.
type Recorder struct {
	mu      sync.Mutex
	next    int
	calls   []Call
	live    map[string]toast.Toast
	maxLive int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{live: make(map[string]toast.Toast)}
}

func (r *Recorder) Show(t toast.Toast) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := fmt.Sprintf("toast-%d", r.next)
	r.live[h] = t
	r.maxLive = max(r.maxLive, len(r.live))
	r.calls = append(r.calls, Call{Op: "show", Handle: h, Toast: t})
	return h
}

func (r *Recorder) Update(handle string, t toast.Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[handle]; ok {
		r.live[handle] = t
	}
	r.calls = append(r.calls, Call{Op: "update", Handle: handle, Toast: t})
}

func (r *Recorder) Dismiss(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, handle)
	r.calls = append(r.calls, Call{Op: "dismiss", Handle: handle})
}

func (r *Recorder) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: "info", Msg: msg})
}

func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: "error", Msg: msg})
}

// Calls returns a copy of all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ops returns the calls with the given op.
func (r *Recorder) Ops(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Messages returns the messages of info or error notices.
func (r *Recorder) Messages(op string) []string {
	var out []string
	for _, c := range r.Ops(op) {
		out = append(out, c.Msg)
	}
	return out
}

// Live returns the handles of toasts currently shown, sorted.
func (r *Recorder) Live() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.live))
	for h := range r.live {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// MaxLive is the largest number of simultaneously live toasts seen.
func (r *Recorder) MaxLive() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxLive
}

// Clock is a manual toast.Clock; timers fire only on Advance.
type Clock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*timer
}

type timer struct {
	c       *Clock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// AfterFunc implements toast.Clock.
func (c *Clock) AfterFunc(d time.Duration, f func()) toast.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{c: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers outside the clock lock.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*timer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of timers that have neither fired nor stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
