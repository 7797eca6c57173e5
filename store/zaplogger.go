package store

import "go.uber.org/zap"

// zapLogger adapts a *zap.SugaredLogger to the store.Logger interface,
// replacing the teacher's DefaultLogger (which wrote WARN/ERROR lines
// via fmt.Printf) with structured logging throughout loom.
type zapLogger struct {
	l *zap.SugaredLogger
}

// NewZapLogger wraps l (or zap.NewNop() if l is nil) as a store.Logger.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l.Sugar()}
}

func (z *zapLogger) Debug(msg string, args ...any) { z.l.Debugw(msg, args...) }
func (z *zapLogger) Warn(msg string, args ...any)  { z.l.Warnw(msg, args...) }
func (z *zapLogger) Error(msg string, args ...any) { z.l.Errorw(msg, args...) }
