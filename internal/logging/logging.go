// Console logger satisfying the glog.Logger contract on top of the standard log package
package logging

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger struct {
	name  string
	out   *log.Logger
	debug bool
}

var _ glog.Logger = (*Logger)(nil)

// New returns a named logger writing to stderr. Debug and trace lines are only emitted when verbose is set.
func New(name string, verbose bool) *Logger {
	return &Logger{
		name:  name,
		out:   log.New(os.Stderr, "", log.LstdFlags),
		debug: verbose,
	}
}

// Named returns a child logger sharing this logger's output
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: l.name + "." + name, out: l.out, debug: l.debug}
}

func (l *Logger) Trace(msg string, args ...any) {
	if l.debug {
		l.write("trace", msg, args)
	}
}

func (l *Logger) Debug(msg string, args ...any) {
	if l.debug {
		l.write("debug", msg, args)
	}
}

func (l *Logger) Info(msg string, args ...any)  { l.write("info", msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.write("warn", msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.write("error", msg, args) }

func (l *Logger) Fatal(msg string, args ...any) {
	l.write("fatal", msg, args)
	os.Exit(1)
}

func (l *Logger) WithContext(context.Context) glog.Logger {
	return l
}

func (l *Logger) write(level string, msg string, args []any) {
	l.out.Print(Format(level, l.name, msg, args...))
}

// Format renders a log line as `level name: msg key=value ...`
func Format(level string, name string, msg string, args ...any) string {
	builder := new(strings.Builder)
	builder.WriteString(level)
	if name != "" {
		builder.WriteString(" " + name)
	}
	builder.WriteString(": " + msg)

	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(builder, " %v", args[i])
			break
		}
		fmt.Fprintf(builder, " %v=%v", args[i], args[i+1])
	}

	return builder.String()
}
