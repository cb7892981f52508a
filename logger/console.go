package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\033[0m"
	ansiGray   = "\033[90m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiCyan   = "\033[36m"
)

var levelColors = map[Level]string{
	LevelDebug: ansiGray,
	LevelWarn:  ansiYellow,
	LevelError: ansiRed,
}

// Console prints messages for a person watching the terminal. Debug and info
// lines go to stdout, warnings and errors to stderr. Messages pass through
// l10n first, so a registered lexicon translates them.
type Console struct {
	level     Level
	component string
	color     bool
	stdout    io.Writer
	stderr    io.Writer
}

// NewConsole builds a Console on the process's standard streams. Lines below
// level are discarded; ANSI colours are used only when stdout is a tty.
func NewConsole(level Level) *Console {
	fd := os.Stdout.Fd()
	return &Console{
		level:  level,
		color:  isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func (l *Console) Debug(msg string, args ...interface{}) { l.print(LevelDebug, msg, args) }
func (l *Console) Info(msg string, args ...interface{})  { l.print(LevelInfo, msg, args) }
func (l *Console) Warn(msg string, args ...interface{})  { l.print(LevelWarn, msg, args) }
func (l *Console) Error(msg string, args ...interface{}) { l.print(LevelError, msg, args) }

// WithComponent returns a Console that prefixes each line with [component].
// The receiver is left untouched.
func (l *Console) WithComponent(component string) Logger {
	c := *l
	c.component = component
	return &c
}

func (l *Console) print(level Level, msg string, args []interface{}) {
	if level < l.level {
		return
	}

	line := l10n.F(msg, args...)
	if l.component != "" {
		tag := "[" + l.component + "]"
		if l.color {
			tag = ansiCyan + tag + ansiReset
		}
		line = tag + " " + line
	}
	if code, ok := levelColors[level]; ok && l.color {
		line = code + line + ansiReset
	}

	w := l.stdout
	if level >= LevelWarn {
		w = l.stderr
	}
	fmt.Fprintln(w, line)
}
