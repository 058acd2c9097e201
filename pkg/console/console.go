// Package console writes the user-facing output of piwakawaka: greetings,
// echoed remote output, warnings, spinners and transfer progress. Diagnostic
// logging goes through pkg/logger instead.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/bacalhau-project/piwakawaka/pkg/models"
	"github.com/bacalhau-project/piwakawaka/pkg/progress"
)

const spinnerDelay = 100 * time.Millisecond

var (
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	greetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

type Console struct {
	Out io.Writer
	Err io.Writer

	interactive bool
	progressBar bool
	mu          sync.Mutex
}

// New returns a Console writing to out and errOut. Spinners are shown only
// when out is a terminal.
func New(out, errOut io.Writer) *Console {
	return &Console{
		Out:         out,
		Err:         errOut,
		interactive: isTerminal(out),
	}
}

// Default writes to the process's stdout and stderr.
func Default() *Console {
	return New(os.Stdout, os.Stderr)
}

// SetProgressBar toggles the bar drawn by NewProgress.
func (c *Console) SetProgressBar(enabled bool) {
	c.progressBar = enabled
}

func (c *Console) Interactive() bool {
	return c.interactive
}

func (c *Console) Greet(identity models.Identity) {
	c.write(c.Out, greetStyle.Render(identity.Greeting())+"\n")
}

// Println prints text followed by a newline.
func (c *Console) Println(text string) {
	c.write(c.Out, text+"\n")
}

func (c *Console) Printf(format string, args ...interface{}) {
	c.write(c.Out, fmt.Sprintf(format, args...))
}

func (c *Console) Warn(w models.Warning) {
	msg := strings.TrimRight(w.Message, "\n")
	c.write(c.Err, warnStyle.Render("warning:")+" "+msg+"\n")
}

// Spin shows message next to a spinner until the returned function is
// called. Non-interactive consoles show nothing.
func (c *Console) Spin(message string) (stop func()) {
	if !c.interactive {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], spinnerDelay, spinner.WithWriter(c.Out))
	s.Suffix = " " + message
	s.Start()
	var once sync.Once
	return func() { once.Do(s.Stop) }
}

// NewProgress returns a progress.Func drawing on the console's stdout.
func (c *Console) NewProgress() progress.Func {
	draw := progress.NewTerminal(c.Out, progress.Options{Bar: c.progressBar})
	return func(transferred, total int64) {
		c.mu.Lock()
		defer c.mu.Unlock()
		draw(transferred, total)
	}
}

func (c *Console) write(w io.Writer, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(w, s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
