// Package logger provides the structured logger shared by every component.
// It is a thin layer over logrus that stamps each entry with the component
// name and applies level/format settings from configuration.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config controls logger construction.
type Config struct {
	Level  string
	Format string // text|json
	Output io.Writer
}

// Logger wraps a logrus logger bound to a component name.
type Logger struct {
	*logrus.Logger
	component string
}

// New builds a logger for component using cfg.
func New(component string, cfg Config) *Logger {
	base := logrus.New()
	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	} else {
		base.SetOutput(os.Stderr)
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	l := &Logger{Logger: base, component: component}
	base.AddHook(componentHook{component: component})
	return l
}

// NewDefault returns an info-level text logger for component.
func NewDefault(component string) *Logger {
	return New(component, Config{})
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return New("discard", Config{Output: io.Discard, Level: "panic"})
}

// Component returns the component name stamped on entries.
func (l *Logger) Component() string {
	return l.component
}

// Named returns a logger sharing this one's output and level with a new
// component name.
func (l *Logger) Named(component string) *Logger {
	base := logrus.New()
	base.SetOutput(l.Out)
	base.SetLevel(l.GetLevel())
	base.SetFormatter(l.Formatter)
	base.AddHook(componentHook{component: component})
	return &Logger{Logger: base, component: component}
}

type componentHook struct {
	component string
}

func (h componentHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h componentHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["component"]; !ok {
		entry.Data["component"] = h.component
	}
	return nil
}
