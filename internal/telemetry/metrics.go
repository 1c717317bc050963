// Package telemetry registers the Prometheus metrics for the chat runtime.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	MessagesReceived   *prometheus.CounterVec
	CommandsDispatched *prometheus.CounterVec
	CooldownRejections prometheus.Counter
	UnknownCommands    prometheus.Counter
	HandlerErrors      prometheus.Counter

	OutboundSent        *prometheus.CounterVec
	OutboundSendErrors  *prometheus.CounterVec
	OutboundQueueDrops  *prometheus.CounterVec
	OutboundQueueDepth  *prometheus.GaugeVec
	ReconnectAttempts   *prometheus.CounterVec
	ConnectionStateInfo *prometheus.GaugeVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_messages_received_total", Help: "Inbound chat messages published on the bus"}, []string{"platform"})
		CommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_commands_dispatched_total", Help: "Command invocations that reached a handler"}, []string{"command"})
		CooldownRejections = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_cooldown_rejections_total", Help: "Invocations dropped because a cooldown window had not elapsed"})
		UnknownCommands = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_unknown_commands_total", Help: "Messages with the command prefix but no registered handler"})
		HandlerErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_handler_errors_total", Help: "Handler invocations that failed or panicked"})
		OutboundSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_outbound_sent_total", Help: "Messages delivered to a platform"}, []string{"platform"})
		OutboundSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_outbound_send_errors_total", Help: "Send attempts that failed"}, []string{"platform"})
		OutboundQueueDrops = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_outbound_queue_drops_total", Help: "Responses rejected because the queue was full or the connection was down"}, []string{"platform"})
		OutboundQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "bot_outbound_queue_depth", Help: "Responses currently queued"}, []string{"platform"})
		ReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_reconnect_attempts_total", Help: "Connection attempts that failed and will be retried"}, []string{"platform"})
		ConnectionStateInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "bot_connection_state", Help: "Current connection state (1 for the active state, 0 otherwise)"}, []string{"platform", "state"})
	})
}

// SetConnectionState flips the per-state gauge so exactly one state is 1.
func SetConnectionState(platform, state string) {
	if ConnectionStateInfo == nil {
		return
	}
	states := []string{"disabled", "connecting", "connected", "disconnecting", "disconnected", "auth_error", "error"}
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1.0
		}
		ConnectionStateInfo.WithLabelValues(platform, s).Set(v)
	}
}
