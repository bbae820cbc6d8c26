// Package progress defines the progress events pushed by the generation backend.
package progress

import (
	"regexp"
	"strconv"
)

// Status is the lifecycle stage reported for a generation job.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Active reports whether the job is still running.
func (s Status) Active() bool {
	return s == StatusStarting || s == StatusProcessing
}

// Terminal reports whether the job has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusStarting, StatusProcessing, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

// Event is a single progress notification, e.g.
// {"progress": "42% completed", "status": "processing", "message": "Generating slides"}.
type Event struct {
	Progress string `json:"progress"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
}

// Percent returns the numeric completion derived from Progress.
func (e Event) Percent() int {
	return ExtractPercent(e.Progress)
}

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// ExtractPercent returns the leading integer of a progress string such as
// "57% completed". Strings without a leading integer yield 0; values above
// 100 are clamped.
func ExtractPercent(progress string) int {
	m := leadingInt.FindStringSubmatch(progress)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Only overflow can fail here.
		return 100
	}
	if n > 100 {
		return 100
	}
	return n
}
