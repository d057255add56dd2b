package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	PublishAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialdash_publish_attempts_total",
		Help: "Direct provider publish attempts by provider and result",
	}, []string{"provider", "result"})
	TokenRenewals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialdash_token_renewals_total",
		Help: "Credential renewal attempts by provider and result",
	}, []string{"provider", "result"})
	CredentialsExpired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialdash_credentials_invalidated_total",
		Help: "Accounts moved out of active by resulting status",
	}, []string{"status"})
	RelayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialdash_relay_requests_total",
		Help: "Relay webhook calls by result",
	}, []string{"result"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialdash_rate_limit_rejects_total",
		Help: "Publishes rejected by the provider rate limiter",
	})
	PostsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialdash_posts_claimed_total",
		Help: "Scheduled posts claimed for execution",
	})
	PostsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialdash_posts_completed_total",
		Help: "Scheduled posts that reached a terminal status",
	}, []string{"status"})
	PostsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "socialdash_posts_inflight",
		Help: "Scheduled posts currently executing in this process",
	})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			PublishAttempts,
			TokenRenewals,
			CredentialsExpired,
			RelayRequests,
			RateLimitRejects,
			PostsClaimed,
			PostsCompleted,
			PostsInFlight,
		)
	})
	return promhttp.Handler()
}
