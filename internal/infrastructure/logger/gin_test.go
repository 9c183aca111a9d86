package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(t *testing.T, before ...gin.HandlerFunc) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	r := gin.New()
	r.Use(Recovery(base))
	r.Use(before...)
	r.Use(GinMiddleware(base))
	return r, recorded
}

func accessLine(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	lines := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, lines, 1)
	return lines[0]
}

func TestGinMiddleware(t *testing.T) {
	withRequestID := func(c *gin.Context) {
		ctx, _ := WithRequestID(c.Request.Context(), FromContext(c.Request.Context()), "req-7")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}

	t.Run("access line carries request fields", func(t *testing.T) {
		r, recorded := newTestRouter(t, withRequestID)
		r.GET("/wallet", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet?page=2", nil))

		line := accessLine(t, recorded)
		fields := line.ContextMap()
		assert.Equal(t, zapcore.InfoLevel, line.Level)
		assert.Equal(t, "req-7", fields["request_id"])
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, "/wallet", fields["path"])
		assert.Equal(t, "page=2", fields["query"])
		assert.EqualValues(t, http.StatusOK, fields["status"])
	})

	t.Run("later middleware enriches the access line", func(t *testing.T) {
		r, recorded := newTestRouter(t)
		r.Use(func(c *gin.Context) {
			ctx := c.Request.Context()
			ctx, l := WithUserID(ctx, FromContext(ctx), "aff-9")
			ctx, _ = WithRole(ctx, l, "ADMIN")
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
		r.GET("/payouts", func(c *gin.Context) {
			GetGinLogger(c).Info("listing payouts")
			c.Status(http.StatusOK)
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/payouts", nil))

		fields := accessLine(t, recorded).ContextMap()
		assert.Equal(t, "aff-9", fields["user_id"])
		assert.Equal(t, "ADMIN", fields["role"])

		handler := recorded.FilterMessage("listing payouts").All()
		require.Len(t, handler, 1)
		assert.Equal(t, "aff-9", handler[0].ContextMap()["user_id"])
	})

	t.Run("level follows status", func(t *testing.T) {
		for status, level := range map[int]zapcore.Level{
			http.StatusNotFound:            zapcore.WarnLevel,
			http.StatusConflict:            zapcore.WarnLevel,
			http.StatusInternalServerError: zapcore.ErrorLevel,
		} {
			r, recorded := newTestRouter(t)
			r.GET("/x", func(c *gin.Context) { c.Status(status) })
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, level, accessLine(t, recorded).Level, "status %d", status)
		}
	})
}

func TestRecovery(t *testing.T) {
	r, recorded := newTestRouter(t)
	r.GET("/boom", func(c *gin.Context) { panic("ledger exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	panics := recorded.FilterMessage("Panic recovered").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "ledger exploded", panics[0].ContextMap()["error"])
}

func TestGetGinLogger_OutsideMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())

	l := GetGinLogger(c)
	require.NotNil(t, l)
	l.Info("ignored")
}
