package database

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's logging onto zerolog. Level filtering is left to
// the zerolog logger, so LogMode is a no-op.
type GormLogger struct {
	SlowThreshold time.Duration
	log           zerolog.Logger
}

func NewGormLogger(log zerolog.Logger, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		SlowThreshold: slowThreshold,
		log:           log.With().Str("component", "gorm").Logger(),
	}
}

func (l *GormLogger) LogMode(glogger.LogLevel) glogger.Interface { return l }

func (l *GormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	l.log.Info().Msgf(msg, data...)
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	l.log.Warn().Msgf(msg, data...)
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	l.log.Error().Msgf(msg, data...)
}

// Trace logs failed statements as errors, slow ones as warnings and the rest at debug
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("SQL error")
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold:
		sql, rows := fc()
		l.log.Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow SQL")
	case l.log.GetLevel() <= zerolog.DebugLevel:
		sql, rows := fc()
		l.log.Debug().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("SQL")
	}
}
