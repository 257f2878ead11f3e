// Package metrics exposes prometheus counters for the auth flows.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	auth "github.com/dvsa/dvsa-auth"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts auth activity. It is an auth.ActivitySink.
type Collector struct {
	logins         *prometheus.CounterVec
	signups        prometheus.Counter
	logouts        prometheus.Counter
	refreshes      prometheus.Counter
	sessionsReaped prometheus.Counter
	accountEvents  *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	requests       *prometheus.CounterVec
}

var _ auth.ActivitySink = (*Collector)(nil)

// NewCollector creates the collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dvsa_auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dvsa_auth_signups_total",
			Help: "Completed signups.",
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dvsa_auth_logouts_total",
			Help: "Sessions ended by logout.",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dvsa_auth_refreshes_total",
			Help: "Access tokens re-minted.",
		}),
		sessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dvsa_auth_sessions_reaped_total",
			Help: "Expired session rows removed.",
		}),
		accountEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dvsa_auth_account_events_total",
			Help: "Password changes, email verifications and account closures.",
		}, []string{"event"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dvsa_auth_middleware_rejections_total",
			Help: "Requests rejected by the auth middleware by status.",
		}, []string{"status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dvsa_http_requests_total",
			Help: "HTTP responses by method and status.",
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		c.logins,
		c.signups,
		c.logouts,
		c.refreshes,
		c.sessionsReaped,
		c.accountEvents,
		c.rejections,
		c.requests,
	)

	return c
}

// Record implements auth.ActivitySink.
func (c *Collector) Record(_ context.Context, event auth.ActivityEvent) error {
	switch event.EventType {
	case auth.ActivityEventLoginSuccess:
		c.logins.WithLabelValues("success").Inc()
	case auth.ActivityEventLoginFailure:
		c.logins.WithLabelValues("failure").Inc()
	case auth.ActivityEventSignup:
		c.signups.Inc()
	case auth.ActivityEventLogout:
		c.logouts.Inc()
	case auth.ActivityEventRefresh:
		c.refreshes.Inc()
	case auth.ActivityEventSessionReaped:
		if event.Count > 0 {
			c.sessionsReaped.Add(float64(event.Count))
		}
	case auth.ActivityEventPasswordChanged, auth.ActivityEventEmailVerified, auth.ActivityEventUserDeleted:
		c.accountEvents.WithLabelValues(string(event.EventType)).Inc()
	}
	return nil
}

// RecordRejection counts a request the auth middleware turned away.
func (c *Collector) RecordRejection(status int) {
	c.rejections.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Middleware counts every response. Errors are rendered with the app
// error handler first so the final status is recorded.
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if err := ctx.Next(); err != nil {
			if herr := ctx.App().Config().ErrorHandler(ctx, err); herr != nil {
				_ = ctx.SendStatus(fiber.StatusInternalServerError)
			}
		}
		c.requests.WithLabelValues(ctx.Method(), strconv.Itoa(ctx.Response().StatusCode())).Inc()
		return nil
	}
}

// Handler serves the prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
