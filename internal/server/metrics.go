package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cmdchat_connected_clients",
		Help: "Number of registered client sessions.",
	})
	metricActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cmdchat_active_rooms",
		Help: "Number of rooms with at least one member.",
	})
	metricMessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmdchat_messages_delivered_total",
		Help: "Chat messages accepted and broadcast.",
	})
	metricRateLimitedChats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmdchat_rate_limited_chats_total",
		Help: "Chat messages dropped by the per-session rate limit.",
	})
	metricReapedSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmdchat_reaped_sessions_total",
		Help: "Sessions removed after a failed broadcast write.",
	})
	metricHeartbeatEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmdchat_heartbeat_evictions_total",
		Help: "Sessions evicted by heartbeat timeout.",
	})
	metricHandshakeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmdchat_handshake_failures_total",
		Help: "Rejected handshakes by reason.",
	}, []string{"reason"})
)

// tickerMetrics is the fixed shape of the metrics ticker output.
type tickerMetrics struct {
	Clients  int   `json:"clients"`
	Messages int64 `json:"messages"`
}

// metricsLoop emits {clients, messages} every interval: JSON on stdout
// when CMDCHAT_METRICS_JSON is set, a log line otherwise.
func (s *Server) metricsLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := tickerMetrics{
				Clients:  s.registry.SessionCount(),
				Messages: s.registry.Messages(),
			}
			if s.cfg.MetricsJSON {
				line, err := json.Marshal(m)
				if err != nil {
					s.logger.Error().Err(err).Msg("encode metrics")
					continue
				}
				fmt.Println(string(line))
			} else {
				s.logger.Info().
					Int("clients", m.Clients).
					Int64("messages", m.Messages).
					Msg("metrics")
			}
		}
	}
}

// serveMetricsHTTP exposes the prometheus registry when --metrics-addr
// is configured.
func (s *Server) serveMetricsHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
		}
	}()
	return srv
}
