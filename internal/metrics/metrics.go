// Package metrics defines the bot's domain Prometheus collectors and serves
// the exposition endpoint. Transport level counters live in
// core/telegram/middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tunerover"

// SubmissionsTotal counts finished or aborted submission dialogues.
// Label:
//   - outcome: "committed", "duplicate", "cancelled", "denied"
var SubmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Album submission dialogues by final outcome.",
	},
	[]string{"outcome"},
)

// SubmissionStepErrorsTotal counts inputs rejected or failed at a dialogue step.
// Labels:
//   - step: dialogue state the input arrived in
//   - reason: "invalid" (re-prompted), "retryable" (storage failure) or
//     "publish" (album committed but its cover could not be moved into place)
var SubmissionStepErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submission_step_errors_total",
		Help:      "Submission inputs that did not advance the dialogue.",
	},
	[]string{"step", "reason"},
)

// RandomPicksTotal counts random album requests.
// Label:
//   - result: "hit", "empty" or "error"
var RandomPicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "random_picks_total",
		Help:      "Random album requests by result.",
	},
	[]string{"result"},
)

// UsersRegisteredTotal counts first contacts.
var UsersRegisteredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_registered_total",
		Help:      "Users seen for the first time.",
	},
)
