package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Debug mode uses the human readable development encoder.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	conf := zap.NewProductionConfig()
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return conf.Build()
}

// CronLogger adapts zap to the robfig/cron logger interface.
type CronLogger struct {
	Log *zap.SugaredLogger
}

func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Log.Debugw(msg, keysAndValues...)
}

func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Log.Errorw(msg, append(keysAndValues, "error", err)...)
}
