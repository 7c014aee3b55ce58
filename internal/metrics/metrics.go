// Package metrics collects Prometheus metrics for the HTTP surface and the
// auth and chat flows, and serves them for scraping.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinal_assist"

// Verification outcomes recorded by RecordOTPVerification.
const (
	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

type Collector struct {
	gatherer prometheus.Gatherer

	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	otpIssued     prometheus.Counter
	otpVerified   *prometheus.CounterVec
	chatRequests  *prometheus.CounterVec
	chatFirstByte prometheus.Histogram
}

// NewCollector registers every metric on reg. reg is also what Handler serves.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time codes issued",
		}),
		otpVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "OTP verification attempts by result",
		}, []string{"result"}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by mode and outcome",
		}, []string{"mode", "outcome"}),
		chatFirstByte: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_upstream_latency_seconds",
			Help:      "Time until the completion backend answered or started streaming",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60},
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.otpIssued,
		c.otpVerified,
		c.chatRequests,
		c.chatFirstByte,
	)

	return c
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) RecordOTPIssued() {
	c.otpIssued.Inc()
}

func (c *Collector) RecordOTPVerification(result string) {
	c.otpVerified.WithLabelValues(result).Inc()
}

// RecordChatRequest counts one finished chat call. A stream that failed
// after it opened counts as an error; one abandoned by its client counts as
// canceled.
func (c *Collector) RecordChatRequest(mode string, d time.Duration, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	case err != nil:
		outcome = "error"
	}
	c.chatRequests.WithLabelValues(mode, outcome).Inc()
	c.chatFirstByte.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
