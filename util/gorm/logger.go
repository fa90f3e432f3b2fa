package gorm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

// LogrusLogger routes gorm logs into the standard logrus logger. Statements
// are logged at trace level; slow statements are promoted to warnings.
var LogrusLogger logger.Interface = (*logrusLogger)(logrus.StandardLogger())

const slowThreshold = time.Second

type logrusLogger logrus.Logger

func (l *logrusLogger) unmask() *logrus.Logger {
	return (*logrus.Logger)(l)
}

func (l *logrusLogger) LogMode(logger.LogLevel) logger.Interface {
	return l
}

func (l *logrusLogger) Info(ctx context.Context, s string, i ...interface{}) {
	l.unmask().WithContext(ctx).Infof(s, i...)
}

func (l *logrusLogger) Warn(ctx context.Context, s string, i ...interface{}) {
	l.unmask().WithContext(ctx).Warnf(s, i...)
}

func (l *logrusLogger) Error(ctx context.Context, s string, i ...interface{}) {
	l.unmask().WithContext(ctx).Errorf(s, i...)
}

func (l *logrusLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	sql, rowsAffected := fc()
	elapsed := time.Since(begin)
	entry := l.unmask().WithContext(ctx).WithField("elapsed", elapsed)
	if elapsed > slowThreshold {
		entry.Warnf("slow query %s (%d): %v", sql, rowsAffected, err)
		return
	}

	entry.Tracef("%s (%d): %v", sql, rowsAffected, err)
}
