// Package logger provides the leveled logging used across nfp.
package logger

// Level is the severity of a log message.
type Level int

const (
	// LevelDebug is for per-frame details.
	LevelDebug Level = iota
	// LevelInfo is for conversion progress.
	LevelInfo
	// LevelWarn is for recoverable problems, such as a truncated last frame.
	LevelWarn
	// LevelError is for problems that stop a conversion.
	LevelError
	// LevelQuiet suppresses all output.
	LevelQuiet
)

// String returns the name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "quiet":
		return LevelQuiet
	default:
		return LevelInfo
	}
}

// Logger is implemented by the console, no-op and recording loggers.
// Messages are format strings that double as translation keys.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with component.
	WithComponent(component string) Logger
}
