package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	auth "github.com/dvsa/dvsa-auth"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_CountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	ctx := context.Background()

	events := []auth.ActivityEvent{
		{EventType: auth.ActivityEventLoginSuccess},
		{EventType: auth.ActivityEventLoginSuccess},
		{EventType: auth.ActivityEventLoginFailure},
		{EventType: auth.ActivityEventSignup},
		{EventType: auth.ActivityEventLogout},
		{EventType: auth.ActivityEventRefresh},
		{EventType: auth.ActivityEventSessionReaped, Count: 1},
		{EventType: auth.ActivityEventSessionReaped, Count: 4},
		{EventType: auth.ActivityEventSessionReaped, Count: 0},
		{EventType: auth.ActivityEventPasswordChanged},
		{EventType: auth.ActivityEventUserDeleted},
	}
	for _, e := range events {
		require.NoError(t, c.Record(ctx, e))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.logins.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.logins.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.signups))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.logouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.refreshes))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.sessionsReaped))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.accountEvents.WithLabelValues(string(auth.ActivityEventPasswordChanged))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.accountEvents.WithLabelValues(string(auth.ActivityEventUserDeleted))))
}

func TestRecordRejection(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRejection(http.StatusUnauthorized)
	c.RecordRejection(http.StatusUnauthorized)
	c.RecordRejection(http.StatusForbidden)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.rejections.WithLabelValues("401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejections.WithLabelValues("403")))
}

func TestMiddleware_RecordsFinalStatus(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	app := fiber.New(fiber.Config{
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			return ctx.Status(fiber.StatusTeapot).SendString(err.Error())
		},
	})
	app.Use(c.Middleware())
	app.Get("/ok", func(ctx *fiber.Ctx) error { return ctx.SendString("ok") })
	app.Get("/fail", func(ctx *fiber.Ctx) error { return errors.New("boom") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "418")))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	require.NoError(t, c.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventSignup}))

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "dvsa_auth_signups_total 1"))
}
