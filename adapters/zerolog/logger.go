// Package zerologadapter bridges authkit's Logger interface to zerolog so
// applications get structured output instead of the default printf fallback.
package zerologadapter

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Logger adapts a zerolog.Logger to authkit.Logger.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Debug(format string, args ...any) {
	l.emit(l.log.Debug(), format, args)
}

func (l *Logger) Info(format string, args ...any) {
	l.emit(l.log.Info(), format, args)
}

func (l *Logger) Warn(format string, args ...any) {
	l.emit(l.log.Warn(), format, args)
}

func (l *Logger) Error(format string, args ...any) {
	l.emit(l.log.Error(), format, args)
}

// emit handles both call styles the Logger interface sees in practice:
// printf formatting ("Login error: %s", err) and key-value pairs
// ("error", err, "path", p). Key-value pairs become structured fields.
func (l *Logger) emit(event *zerolog.Event, format string, args []any) {
	if len(args) == 0 {
		event.Msg(format)
		return
	}

	if strings.Contains(format, "%") {
		event.Msgf(format, args...)
		return
	}

	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		event.Interface(key, args[i+1])
	}
	if len(args)%2 != 0 {
		event.Interface("extra", args[len(args)-1])
	}
	event.Msg(format)
}
