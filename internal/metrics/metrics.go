// Package metrics holds the Prometheus collectors for the webhook pipeline.
// HTTP-level metrics live in the middleware package; these counters track
// the pipeline's business outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_updates_received_total",
			Help: "Total webhook updates handed to the pipeline",
		},
	)

	UpdatesFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_updates_filtered_total",
			Help: "Updates skipped because they carried no plain user text message",
		},
	)

	UsersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_users_created_total",
			Help: "First-contact user records created",
		},
	)

	LLMFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_llm_failures_total",
			Help: "Language-model calls that failed and triggered the fallback reply",
		},
	)

	TelegramSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_telegram_send_failures_total",
			Help: "Replies that could not be delivered to Telegram",
		},
	)

	TurnsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_turns_persisted_total",
			Help: "Conversation turns written to the store",
		},
		[]string{"role"}, // "user" or "model"
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_store_errors_total",
			Help: "Store operations that returned an error",
		},
		[]string{"op"}, // "find_user", "create_user", "list_turns", "append_turn"
	)
)
