package tui

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/raphaelgruber/syllabus-go/internal/toast"
)

// LineNotifier implements toast.Notifier by printing one line per change.
// It is used when output is not a terminal.
type LineNotifier struct {
	mu   sync.Mutex
	w    io.Writer
	next int
	last string
}

// NewLineNotifier writes to w.
func NewLineNotifier(w io.Writer) *LineNotifier {
	return &LineNotifier{w: w}
}

func (n *LineNotifier) Show(t toast.Toast) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	n.printLocked(formatToast(t))
	return "line-" + strconv.Itoa(n.next)
}

func (n *LineNotifier) Update(handle string, t toast.Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.printLocked(formatToast(t))
}

// Dismiss prints nothing; a line cannot be taken back.
func (n *LineNotifier) Dismiss(handle string) {}

func (n *LineNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.printLocked(msg)
}

func (n *LineNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.printLocked("error: " + msg)
}

// printLocked skips a line identical to the previous one.
func (n *LineNotifier) printLocked(line string) {
	if line == n.last {
		return
	}
	n.last = line
	fmt.Fprintln(n.w, line)
}

func formatToast(t toast.Toast) string {
	line := fmt.Sprintf("[%s] %3d%% %s", t.Status, t.Percent, t.Title)
	if t.Message != "" {
		line += ": " + t.Message
	}
	return line
}
