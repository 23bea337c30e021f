// Package logging provides the domain.Logger implementation used throughout this
// module: a thin wrapper over log/slog, following the same slog-based structured
// logging the provider layer uses directly. Two extra levels bracket the
// standard four: LevelDev below Debug for step-by-step execution traces emitted
// while walking the RAG paths, and LevelAnalysis above Info for audit-worthy
// events (which workflow fired, which references were cited) meant to be kept
// and queried long after the request completes.
package logging

import (
	"log/slog"
	"os"

	"github.com/sjondavey/regulations-rag/pkg/domain"
)

const (
	LevelDev      = slog.Level(-8)
	LevelAnalysis = slog.Level(2)
)

var levelNames = map[slog.Leveler]string{
	LevelDev:      "DEV",
	LevelAnalysis: "ANALYSIS",
}

// SlogLogger adapts a *slog.Logger to domain.Logger.
type SlogLogger struct {
	l *slog.Logger
}

// New builds a SlogLogger writing JSON-formatted records at or above minLevel to w. A
// nil w defaults to os.Stdout, matching the teacher's default output target.
func New(w *os.File, minLevel slog.Level) *SlogLogger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: minLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				if name, ok := levelNames[level]; ok {
					a.Value = slog.StringValue(name)
				}
			}
			return a
		},
	})
	return &SlogLogger{l: slog.New(handler)}
}

func (s *SlogLogger) Debug(msg string, args ...any)    { s.l.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...any)     { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)     { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any)    { s.l.Error(msg, args...) }
func (s *SlogLogger) Dev(msg string, args ...any)      { s.l.Log(nil, LevelDev, msg, args...) }
func (s *SlogLogger) Analysis(msg string, args ...any) { s.l.Log(nil, LevelAnalysis, msg, args...) }

var _ domain.Logger = (*SlogLogger)(nil)
