package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// maxLoggedSQL bounds the statement text attached to a log entry.
const maxLoggedSQL = 1000

var gormLevels = map[string]gormlogger.LogLevel{
	"silent":  gormlogger.Silent,
	"error":   gormlogger.Error,
	"warn":    gormlogger.Warn,
	"warning": gormlogger.Warn,
	"info":    gormlogger.Info,
	"debug":   gormlogger.Info,
}

// GormLogger routes GORM output into zap, tagged with the request ID of
// the query's context.
type GormLogger struct {
	log           *zap.Logger
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger returns a GORM logger at the named level, "warn" when the
// name is unknown. Queries slower than slowThreshold are logged as warnings;
// zero disables that.
func NewGormLogger(log *zap.Logger, slowThreshold time.Duration, level string) *GormLogger {
	lvl, ok := gormLevels[level]
	if !ok {
		lvl = gormlogger.Warn
	}
	return &GormLogger{
		log:           log.Named("gorm"),
		slowThreshold: slowThreshold,
		level:         lvl,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		WithContext(ctx, l.log).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		WithContext(ctx, l.log).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		WithContext(ctx, l.log).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs one executed statement. Missing rows are not errors and
// unique violations are logged at warn, since both surface to clients as
// 404 and 409.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)

	var write func(string, ...zap.Field)
	log := WithContext(ctx, l.log)
	switch {
	case failed && errors.Is(err, gorm.ErrDuplicatedKey) && l.level >= gormlogger.Warn:
		write = log.Warn
	case failed && l.level >= gormlogger.Error:
		write = log.Error
	case slow && l.level >= gormlogger.Warn:
		write = log.Warn
	case l.level >= gormlogger.Info:
		write = log.Info
	default:
		return
	}

	sql, rows := fc()
	if len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
	}
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
		zap.String("source", utils.FileWithLineNum()),
	}

	switch {
	case failed:
		write("query failed", append(fields, zap.Error(err))...)
	case slow:
		write("slow query", append(fields, zap.Duration("threshold", l.slowThreshold))...)
	default:
		write("query", fields...)
	}
}
