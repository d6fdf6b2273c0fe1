// Package metrics exposes Prometheus counters for authentication and
// reconciliation activity on a package-level registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registry used by this package.
var Registry = prometheus.NewRegistry()

var (
	// AuthAttempts counts authentication outcomes by result
	// (success, badpassword, frozen, toomany, nosuchtarget, reauth).
	AuthAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "services_auth_attempts_total",
			Help: "Authentication attempts by outcome",
		},
		[]string{"result"},
	)

	// ThrottleWarnings counts operator warnings emitted for failed-login
	// streaks.
	ThrottleWarnings = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "services_throttle_warnings_total",
			Help: "Operator warnings for failed login streaks",
		},
	)

	// Sweeps counts reconciliation sweeps run.
	Sweeps = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "services_reconcile_sweeps_total",
			Help: "Privilege reconciliation sweeps",
		},
	)

	// ModeChanges counts add-mode operations issued by the sweep, by mode
	// character.
	ModeChanges = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "services_reconcile_modes_total",
			Help: "Mode changes issued by the reconciliation sweep",
		},
		[]string{"mode"},
	)

	// Evictions counts autoban enforcements.
	Evictions = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "services_reconcile_evictions_total",
			Help: "Users removed from channels by autoban enforcement",
		},
	)

	// Sessions tracks the number of live sessions.
	Sessions = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "services_sessions",
			Help: "Live authenticated sessions",
		},
	)
)

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
