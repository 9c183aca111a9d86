package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

const walletSQL = `UPDATE "affiliate_wallets" SET "balance"=150000.00 WHERE "user_id" = 'b2f1' AND "version" = 3`

func newTestGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func statement(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("error is logged with statement", func(t *testing.T) {
		l, recorded := newTestGormLogger(gormlogger.Warn)
		l.Trace(context.Background(), time.Now(), statement(walletSQL), errors.New("deadlock detected"))

		require.Equal(t, 1, recorded.Len())
		entry := recorded.All()[0]
		assert.Equal(t, "SQL Error", entry.Message)
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		assert.Equal(t, "gorm", entry.LoggerName)
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		l, recorded := newTestGormLogger(gormlogger.Warn)
		l.Trace(context.Background(), time.Now(), statement(walletSQL), gormlogger.ErrRecordNotFound)
		assert.Zero(t, recorded.Len())
	})

	t.Run("slow statement warns", func(t *testing.T) {
		l, recorded := newTestGormLogger(gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))
		l.Trace(context.Background(), time.Now().Add(-time.Second), statement(walletSQL), nil)

		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, "Slow SQL", recorded.All()[0].Message)
	})

	t.Run("fast statement only at info", func(t *testing.T) {
		l, recorded := newTestGormLogger(gormlogger.Warn)
		l.Trace(context.Background(), time.Now(), statement(walletSQL), nil)
		assert.Zero(t, recorded.Len())

		l, recorded = newTestGormLogger(gormlogger.Info)
		l.Trace(context.Background(), time.Now(), statement(walletSQL), nil)
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.DebugLevel, recorded.All()[0].Level)
	})

	t.Run("silent drops errors", func(t *testing.T) {
		l, recorded := newTestGormLogger(gormlogger.Silent)
		l.Trace(context.Background(), time.Now(), statement(walletSQL), errors.New("boom"))
		assert.Zero(t, recorded.Len())
	})

	t.Run("carries request id and redacts literals", func(t *testing.T) {
		l, recorded := newTestGormLogger(gormlogger.Info)
		ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-3")
		l.Trace(ctx, time.Now(), statement(walletSQL), nil)

		fields := recorded.All()[0].ContextMap()
		assert.Equal(t, "req-3", fields["request_id"])
		assert.NotContains(t, fields["sql"], "b2f1")
		assert.Contains(t, fields["sql"], "150000.00")
	})

	t.Run("full sql keeps literals", func(t *testing.T) {
		l, recorded := newTestGormLogger(gormlogger.Info, WithFullSQL(true))
		l.Trace(context.Background(), time.Now(), statement(walletSQL), nil)
		assert.Equal(t, walletSQL, recorded.All()[0].ContextMap()["sql"])
	})
}

func TestGormLogger_LogMode(t *testing.T) {
	l, recorded := newTestGormLogger(gormlogger.Silent)
	loud := l.LogMode(gormlogger.Info)

	loud.Info(context.Background(), "migrated %d tables", 4)
	l.Info(context.Background(), "hidden")

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "migrated 4 tables", recorded.All()[0].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}

func TestRedactSQL(t *testing.T) {
	assert.Equal(t,
		`SELECT * FROM leads WHERE email = '?' AND name = '?'`,
		RedactSQL(`SELECT * FROM leads WHERE email = 'sari@example.com' AND name = 'O''Brien'`),
	)
}
