// Package console renders session output on a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/dshills/fdbridge/internal/integration/debug"
)

// Mode selects when output is colored.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeAlways Mode = "always"
	ModeNever  Mode = "never"
)

// ParseMode parses "auto", "always" or "never".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeAuto, ModeAlways, ModeNever:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown color mode %q", s)
	}
}

// Console writes program output, debugger notices and errors to a
// writer, each kind in its own color. It implements debug.Console and is
// safe for concurrent use.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	normal *color.Color
	system *color.Color
	errc   *color.Color
	info   *color.Color
	accent *color.Color
}

// New returns a Console writing to out.
func New(out io.Writer, mode Mode) *Console {
	c := &Console{
		out:    out,
		normal: color.New(color.Reset),
		system: color.New(color.FgCyan),
		errc:   color.New(color.FgRed),
		info:   color.New(color.FgGreen),
		accent: color.New(color.FgYellow, color.Bold),
	}

	enabled := colorEnabled(out, mode)
	for _, col := range []*color.Color{c.normal, c.system, c.errc, c.info, c.accent} {
		if enabled {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

func colorEnabled(out io.Writer, mode Mode) bool {
	switch mode {
	case ModeAlways:
		return true
	case ModeNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print implements debug.Console.
func (c *Console) Print(text string, kind debug.OutputKind) {
	col := c.normal
	switch kind {
	case debug.OutputSystem:
		col = c.system
		// Fault reports are errors even though fdb prints them on stdout.
		if t := strings.TrimSpace(text); strings.HasPrefix(t, "[Fault]") || strings.HasPrefix(t, "at ") {
			col = c.errc
		}
	case debug.OutputError:
		col = c.errc
	}
	c.write(col, text)
}

// Infof prints a message from the front end itself.
func (c *Console) Infof(format string, args ...any) {
	c.write(c.info, fmt.Sprintf(format, args...)+"\n")
}

// Errorf prints an error message.
func (c *Console) Errorf(format string, args ...any) {
	c.write(c.errc, fmt.Sprintf(format, args...)+"\n")
}

// Highlightf prints an emphasized line, such as a stop location.
func (c *Console) Highlightf(format string, args ...any) {
	c.write(c.accent, fmt.Sprintf(format, args...)+"\n")
}

// Printf prints uncolored text.
func (c *Console) Printf(format string, args ...any) {
	c.write(c.normal, fmt.Sprintf(format, args...))
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer {
	return c.out
}

func (c *Console) write(col *color.Color, text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Color each line separately so a reset never swallows a newline.
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		body := strings.TrimSuffix(line, "\n")
		if body != "" {
			_, _ = col.Fprint(c.out, body)
		}
		if len(body) < len(line) {
			_, _ = io.WriteString(c.out, "\n")
		}
	}
}
