package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config opciones para el logger.
type Config struct {
	Env   string // development -> consola legible; otro -> JSON
	Level string // trace, debug, info, warn, error
}

// Logger envuelve zerolog para inyectarlo en servicios y handlers.
type Logger struct {
	zl zerolog.Logger
}

// New crea el logger del proceso y lo deja también como logger global de zerolog.
func New(cfg Config) *Logger {
	var w io.Writer = os.Stdout
	if cfg.Env == "development" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	log.Logger = zl
	return &Logger{zl: zl}
}

// FromZerolog adapta un zerolog.Logger existente (útil en tests con buffer).
func FromZerolog(zl zerolog.Logger) *Logger { return &Logger{zl: zl} }

// Nop devuelve un logger que descarta todo.
func Nop() *Logger { return &Logger{zl: zerolog.Nop()} }

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) Trace() *zerolog.Event { return l.zl.Trace() }
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// With crea un contexto para construir un sublogger con campos fijos.
func (l *Logger) With() zerolog.Context { return l.zl.With() }

// Component devuelve un sublogger etiquetado con el componente.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

// Zerolog devuelve el logger interno.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }
