// Package rtclog routes pion's internal logging through zap.
package rtclog

import (
	"github.com/pion/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerFactory hands each pion subsystem a child of Logger named
// "pion.<scope>". zap has no trace level, so pion traces land at debug.
type LoggerFactory struct {
	Logger *zap.Logger
}

// NewLogger implements logging.LoggerFactory.
func (lf LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return scoped{lf.Logger.Named("pion." + scope).Sugar()}
}

type scoped struct {
	s *zap.SugaredLogger
}

func (l scoped) Trace(msg string) { l.s.Log(zapcore.DebugLevel, msg) }
func (l scoped) Tracef(format string, args ...interface{}) { l.s.Logf(zapcore.DebugLevel, format, args...) }
func (l scoped) Debug(msg string) { l.s.Log(zapcore.DebugLevel, msg) }
func (l scoped) Debugf(format string, args ...interface{}) { l.s.Logf(zapcore.DebugLevel, format, args...) }
func (l scoped) Info(msg string) { l.s.Log(zapcore.InfoLevel, msg) }
func (l scoped) Infof(format string, args ...interface{}) { l.s.Logf(zapcore.InfoLevel, format, args...) }
func (l scoped) Warn(msg string) { l.s.Log(zapcore.WarnLevel, msg) }
func (l scoped) Warnf(format string, args ...interface{}) { l.s.Logf(zapcore.WarnLevel, format, args...) }
func (l scoped) Error(msg string) { l.s.Log(zapcore.ErrorLevel, msg) }
func (l scoped) Errorf(format string, args ...interface{}) { l.s.Logf(zapcore.ErrorLevel, format, args...) }
