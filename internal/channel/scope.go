package channel

import (
	"log/slog"
	"strings"
	"sync"
)

// Scope ties a session's lifetime to navigation. A session exists while the
// current view is job-relevant, survives moves between job-relevant views,
// and is torn down when navigation leaves them or on logout.
type Scope struct {
	segments   []string
	newSession func() *Session
	logger     *slog.Logger

	mu      sync.Mutex
	path    string
	session *Session
}

// NewScope creates a scope. Paths containing any of segments are
// job-relevant; newSession builds a fresh session on entry.
func NewScope(segments []string, newSession func() *Session, logger *slog.Logger) *Scope {
	if logger == nil {
		logger = slog.Default()
	}
	norm := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.ToLower(strings.Trim(s, "/ ")); s != "" {
			norm = append(norm, s)
		}
	}
	return &Scope{
		segments:   norm,
		newSession: newSession,
		logger:     logger.With("component", "channel_scope"),
	}
}

// IsJobRelevant reports whether path has a job-resource segment.
func (sc *Scope) IsJobRelevant(path string) bool {
	path, _, _ = strings.Cut(path, "?")
	path, _, _ = strings.Cut(path, "#")
	for _, part := range strings.Split(strings.ToLower(path), "/") {
		for _, seg := range sc.segments {
			if part == seg {
				return true
			}
		}
	}
	return false
}

// Navigate records the new view and opens or tears down the session
// accordingly. It returns the session in effect after the move (nil when
// the view is not job-relevant).
func (sc *Scope) Navigate(path string) (*Session, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	prev := sc.path
	sc.path = path

	if !sc.IsJobRelevant(path) {
		if sc.session != nil {
			sc.logger.Debug("leaving job views, closing channel", "from", prev, "to", path)
			sc.closeLocked()
		}
		return nil, nil
	}

	if sc.session == nil {
		sc.logger.Debug("entering job view, opening channel", "path", path)
		sc.session = sc.newSession()
	}
	// Connect is a no-op on a live session, and revives one whose
	// reconnection loop gave up.
	if err := sc.session.Connect(); err != nil {
		return sc.session, err
	}
	return sc.session, nil
}

// Logout always tears the session down, whatever the current view.
func (sc *Scope) Logout() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.path = ""
	sc.closeLocked()
}

// Session returns the current session, or nil.
func (sc *Scope) Session() *Session {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session
}

// Path returns the last navigated path.
func (sc *Scope) Path() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.path
}

func (sc *Scope) closeLocked() {
	if sc.session == nil {
		return
	}
	if err := sc.session.Close(); err != nil {
		sc.logger.Debug("close channel", "error", err)
	}
	sc.session = nil
}
