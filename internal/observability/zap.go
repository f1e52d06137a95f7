// Package observability adapts pdfkit's small pkg/log.Logger interface to a
// structured zap sink, for callers embedding pdfkit in a long-running
// service that already ships structured logs for everything else.
//
// The core packages never import this package or zap directly: they only
// know about pkg/log.Logger. This keeps the binary-format engine free of an
// observability dependency while still giving embedders a real structured
// logger to plug in.
package observability

import (
	"github.com/mechiko/pdfkit/pkg/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements pkg/log.Logger on top of a *zap.SugaredLogger.
type ZapLogger struct {
	level zapcore.Level
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps z at the given level. Fatalf/Fatalln always log at
// zapcore.FatalLevel regardless of level, matching zap's own Fatal semantics
// (process exit after the message is flushed).
func NewZapLogger(z *zap.Logger, level zapcore.Level) *ZapLogger {
	return &ZapLogger{level: level, sugar: z.Sugar()}
}

func (l *ZapLogger) Printf(format string, args ...interface{}) {
	l.sugar.Logf(l.level, format, args...)
}

func (l *ZapLogger) Println(args ...interface{}) {
	l.sugar.Logln(l.level, args...)
}

func (l *ZapLogger) Fatalf(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

func (l *ZapLogger) Fatalln(args ...interface{}) {
	l.sugar.Fatal(args...)
}

// Install wires a zap logger into pdfkit's four named log concerns, mapping
// Debug/Trace to DebugLevel, Info/Stats to InfoLevel, and returns the four
// adapters it installed.
func Install(z *zap.Logger) (debug, info, stats, trace *ZapLogger) {
	debug = NewZapLogger(z.Named("pdfkit.debug"), zapcore.DebugLevel)
	info = NewZapLogger(z.Named("pdfkit.info"), zapcore.InfoLevel)
	stats = NewZapLogger(z.Named("pdfkit.stats"), zapcore.InfoLevel)
	trace = NewZapLogger(z.Named("pdfkit.trace"), zapcore.DebugLevel)
	log.SetDebugLogger(debug)
	log.SetInfoLogger(info)
	log.SetStatsLogger(stats)
	log.SetTraceLogger(trace)
	return
}
