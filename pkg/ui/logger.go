package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorBlue   = lipgloss.Color("#3b82f6")
	colorYellow = lipgloss.Color("#eab308")
	colorRed    = lipgloss.Color("#ef4444")
	colorGreen  = lipgloss.Color("#22c55e")

	infoStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
)

// Logger writes leveled, optionally colored messages to a single writer.
// It carries no global state; construct one and pass it down.
type Logger struct {
	out   io.Writer
	color bool
}

// NewLogger creates a logger writing to out. Color is enabled only when
// noColor is false and out is a terminal.
func NewLogger(out io.Writer, noColor bool) *Logger {
	return &Logger{out: out, color: !noColor && isTerminal(out)}
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(infoStyle, "info", format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(warnStyle, "warn", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(errorStyle, "error", format, args...)
}

func (l *Logger) Okf(format string, args ...any) {
	l.log(okStyle, "ok", format, args...)
}

func (l *Logger) log(style lipgloss.Style, label, format string, args ...any) {
	prefix := fmt.Sprintf("[%s]", label)
	if l.color {
		prefix = style.Render(prefix)
	}
	fmt.Fprintf(l.out, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
