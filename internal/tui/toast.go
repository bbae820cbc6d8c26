package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/syllabus-go/internal/toast"
)

// maxNotices is how many one-off notices stay on screen.
const maxNotices = 3

type showMsg struct {
	handle string
	toast  toast.Toast
}

type updateMsg showMsg

type dismissMsg struct{ handle string }

type noticeMsg struct {
	text  string
	isErr bool
}

// finishMsg ends the program with a closing line.
type finishMsg struct {
	summary string
	err     error
}

type notice struct {
	text  string
	isErr bool
}

// toastModel is the bubbletea model showing the live progress toast.
type toastModel struct {
	handle   string
	toast    *toast.Toast
	notices  []notice
	progress progress.Model
	theme    Theme

	done     bool
	quitting bool
	summary  string
	err      error
}

func newToastModel(theme Theme) toastModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return toastModel{progress: prog, theme: theme}
}

func (m toastModel) Init() tea.Cmd {
	return m.progress.Init()
}

func (m toastModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.done = true
			return m, tea.Quit
		}

	case showMsg:
		t := msg.toast
		m.handle, m.toast = msg.handle, &t

	case updateMsg:
		if msg.handle == m.handle {
			t := msg.toast
			m.toast = &t
		}

	case dismissMsg:
		if msg.handle == m.handle {
			m.handle, m.toast = "", nil
		}

	case noticeMsg:
		m.notices = append(m.notices, notice(msg))
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}

	case finishMsg:
		m.done = true
		m.summary, m.err = msg.summary, msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m toastModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m toastModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	var b strings.Builder
	for _, n := range m.notices {
		if n.isErr {
			b.WriteString(m.theme.errorStyle().Render("✗ "+n.text) + "\n")
		} else {
			b.WriteString(m.theme.hintStyle().Render("• "+n.text) + "\n")
		}
	}

	if m.toast != nil {
		t := m.toast
		status := m.theme.styleFor(t.Status).Render(fmt.Sprintf("[%s]", t.Status))
		fmt.Fprintf(&b, "%s %s\n", status, t.Title)
		fmt.Fprintf(&b, "%s %3d%%\n", m.progress.ViewAs(float64(t.Percent)/100), t.Percent)
		if t.Message != "" {
			b.WriteString(t.Message + "\n")
		}
	} else {
		b.WriteString("Waiting for the server...\n")
	}

	b.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to stop watching") + "\n")
	return b.String()
}

func (m toastModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nStopped watching. Use 'syllabus fetch' once the job completes.\n")
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ %s\n", m.err))
	}
	if m.summary != "" {
		return m.theme.completedStyle().Render("✓ "+m.summary) + "\n"
	}
	return ""
}

// =============================================================================
// NOTIFIER
// =============================================================================

// ProgramNotifier implements toast.Notifier by sending messages to a running
// bubbletea program.
type ProgramNotifier struct {
	send func(tea.Msg)
	next atomic.Int64
}

func (n *ProgramNotifier) Show(t toast.Toast) string {
	h := "toast-" + strconv.FormatInt(n.next.Add(1), 10)
	n.send(showMsg{handle: h, toast: t})
	return h
}

func (n *ProgramNotifier) Update(handle string, t toast.Toast) {
	n.send(updateMsg{handle: handle, toast: t})
}

func (n *ProgramNotifier) Dismiss(handle string) { n.send(dismissMsg{handle: handle}) }

func (n *ProgramNotifier) Info(msg string) { n.send(noticeMsg{text: msg}) }

func (n *ProgramNotifier) Error(msg string) { n.send(noticeMsg{text: msg, isErr: true}) }

// ToastUI runs the interactive progress display.
type ToastUI struct {
	program  *tea.Program
	notifier *ProgramNotifier
	done     chan struct{}

	mu          sync.Mutex
	err         error
	interrupted bool
}

// NewToastUI creates the display writing to out and reading keys from in.
func NewToastUI(out io.Writer, in io.Reader, theme Theme) *ToastUI {
	p := tea.NewProgram(newToastModel(theme), tea.WithOutput(out), tea.WithInput(in))
	return &ToastUI{
		program:  p,
		notifier: &ProgramNotifier{send: p.Send},
		done:     make(chan struct{}),
	}
}

// Notifier returns the notifier feeding this display.
func (u *ToastUI) Notifier() *ProgramNotifier { return u.notifier }

// Start runs the program in the background.
func (u *ToastUI) Start() {
	go func() {
		defer close(u.done)
		final, err := u.program.Run()

		u.mu.Lock()
		defer u.mu.Unlock()
		if err != nil {
			u.err = fmt.Errorf("progress UI error: %w", err)
			return
		}
		if m, ok := final.(toastModel); ok {
			u.interrupted = m.quitting
		}
	}()
}

// Done is closed when the program exits.
func (u *ToastUI) Done() <-chan struct{} { return u.done }

// Interrupted reports whether the user quit the display.
func (u *ToastUI) Interrupted() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.interrupted
}

// Finish prints a closing line and waits for the program to exit.
func (u *ToastUI) Finish(summary string, err error) error {
	u.program.Send(finishMsg{summary: summary, err: err})
	<-u.done
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}
