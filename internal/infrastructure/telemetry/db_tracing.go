package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound values in span statements. Lead contacts pass
	// through these queries, so it stays off outside development.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBName          string
	// TracerProvider overrides the global provider
	TracerProvider trace.TracerProvider
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "postgresql",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db and flags statements slower
// than SlowQueryThresh on their span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// Timing hooks wrap otelgorm's, so the slow-query event lands on the
	// statement span before it is ended.
	a := &slowQueryAnnotator{threshold: cfg.SlowQueryThresh}
	cb := db.Callback()
	hooks := []struct {
		callback gormRegister
		name     string
		fn       func(*gorm.DB)
	}{
		{cb.Create().Before("otel:before:create"), "before:create", a.before},
		{cb.Query().Before("otel:before:select"), "before:select", a.before},
		{cb.Update().Before("otel:before:update"), "before:update", a.before},
		{cb.Delete().Before("otel:before:delete"), "before:delete", a.before},
		{cb.Row().Before("otel:before:row"), "before:row", a.before},
		{cb.Raw().Before("otel:before:raw"), "before:raw", a.before},
		{cb.Create().After("gorm:create").Before("otel:after:create"), "after:create", a.after},
		{cb.Query().After("gorm:query").Before("otel:after:select"), "after:select", a.after},
		{cb.Update().After("gorm:update").Before("otel:after:update"), "after:update", a.after},
		{cb.Delete().After("gorm:delete").Before("otel:after:delete"), "after:delete", a.after},
		{cb.Row().After("gorm:row").Before("otel:after:row"), "after:row", a.after},
		{cb.Raw().After("gorm:raw").Before("otel:after:raw"), "after:raw", a.after},
	}
	for _, h := range hooks {
		if err := h.callback.Register("slow_query:"+h.name, h.fn); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

type gormRegister interface {
	Register(name string, fn func(*gorm.DB)) error
}

type slowQueryAnnotator struct {
	threshold time.Duration
}

func (a *slowQueryAnnotator) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (a *slowQueryAnnotator) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil || a.threshold <= 0 {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if elapsed := time.Since(start); elapsed > a.threshold {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", a.threshold.Milliseconds()),
		))
	}
}
