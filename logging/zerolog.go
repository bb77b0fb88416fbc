package logging

import "github.com/rs/zerolog"

// ZerologLogger adapts a zerolog.Logger to the Logger interface. This is the
// logger cmd/contextprune wires up — a CLI entrypoint is exactly the kind of
// ambient-stack surface that should use the pack's real structured logger
// (beeper-ai-bridge and intelligencedev-manifold both standardize on
// rs/zerolog) rather than log.Printf, even though the library core stays
// decoupled from any concrete logging dependency via the Logger interface.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

func (z *ZerologLogger) Debug(msg string, fields map[string]any) { z.emit(z.log.Debug(), msg, fields) }
func (z *ZerologLogger) Info(msg string, fields map[string]any)  { z.emit(z.log.Info(), msg, fields) }
func (z *ZerologLogger) Warn(msg string, fields map[string]any)  { z.emit(z.log.Warn(), msg, fields) }
func (z *ZerologLogger) Error(msg string, fields map[string]any) { z.emit(z.log.Error(), msg, fields) }

func (z *ZerologLogger) emit(ev *zerolog.Event, msg string, fields map[string]any) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
