package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
)

var (
	infoColor  = color.New(color.FgGreen).SprintFunc()
	debugColor = color.New(color.FgCyan).SprintFunc()
	traceColor = color.New(color.FgYellow).SprintFunc()
	errorColor = color.New(color.FgRed).SprintFunc()
)

// ConsoleSink implements logr.LogSink for human-readable, optionally
// colorized output on a terminal. Color is auto-disabled when writer isn't a
// TTY (see NewConsoleLogger).
type ConsoleSink struct {
	writer       io.Writer
	minVerbosity int
	name         string
	keyValues    []interface{}
	mutex        *sync.Mutex
	useColor     bool
}

// NewConsoleSink builds a sink writing to writer (stderr if nil).
func NewConsoleSink(writer io.Writer, minVerbosity int, useColor bool) *ConsoleSink {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleSink{
		writer:       writer,
		minVerbosity: minVerbosity,
		mutex:        &sync.Mutex{},
		useColor:     useColor,
	}
}

func (s *ConsoleSink) Init(info logr.RuntimeInfo) {}

func (s *ConsoleSink) Enabled(level int) bool { return level <= s.minVerbosity }

func (s *ConsoleSink) Info(level int, msg string, keysAndValues ...interface{}) {
	if !s.Enabled(level) {
		return
	}
	s.log(false, level, msg, keysAndValues...)
}

func (s *ConsoleSink) Error(err error, msg string, keysAndValues ...interface{}) {
	all := append(append([]interface{}{}, keysAndValues...), "error", err)
	s.log(true, 0, msg, all...)
}

func (s *ConsoleSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	nv := append(append([]interface{}{}, s.keyValues...), keysAndValues...)
	return &ConsoleSink{writer: s.writer, minVerbosity: s.minVerbosity, name: s.name, keyValues: nv, mutex: s.mutex, useColor: s.useColor}
}

func (s *ConsoleSink) WithName(name string) logr.LogSink {
	n := name
	if s.name != "" {
		n = fmt.Sprintf("%s.%s", s.name, name)
	}
	return &ConsoleSink{writer: s.writer, minVerbosity: s.minVerbosity, name: n, keyValues: s.keyValues, mutex: s.mutex, useColor: s.useColor}
}

func (s *ConsoleSink) V(level int) logr.LogSink {
	return &ConsoleSink{writer: s.writer, minVerbosity: s.minVerbosity, name: s.name, keyValues: s.keyValues, mutex: s.mutex, useColor: s.useColor}
}

func (s *ConsoleSink) log(isError bool, level int, msg string, keysAndValues ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var label string
	switch {
	case isError:
		label = s.colorize(errorColor, "[ERROR]")
	case level == LevelDebug:
		label = s.colorize(debugColor, "[DEBUG]")
	case level == LevelTrace:
		label = s.colorize(traceColor, "[TRACE]")
	default:
		label = s.colorize(infoColor, "[INFO]")
	}

	full := msg
	if s.name != "" {
		full = fmt.Sprintf("[%s] %s", s.name, msg)
	}
	fmt.Fprintf(s.writer, "%s %s\n", label, full)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("key%d", i/2)
		}
		fmt.Fprintf(s.writer, "  %s: %v\n", key, keysAndValues[i+1])
	}
}

func (s *ConsoleSink) colorize(fn func(a ...interface{}) string, label string) string {
	if !s.useColor {
		return label
	}
	return fn(label)
}

// NewConsoleLogger builds a ready-to-use Logger that writes to stderr,
// auto-detecting TTY-ness (via github.com/mattn/go-isatty) to decide
// whether ANSI color is safe.
func NewConsoleLogger(minVerbosity int) *Logger {
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	sink := NewConsoleSink(os.Stderr, minVerbosity, useColor)
	return NewLogger(logr.New(sink))
}
