package monitoring

import (
	"strconv"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Room lifecycle
	roomsCreatedTotal   prometheus.Counter
	roomsActive         prometheus.Gauge
	playersJoinedTotal  prometheus.Counter
	gamesStartedTotal   prometheus.Counter
	scoresSubmitted     prometheus.Counter
	roomsCompletedTotal prometheus.Counter
	gameDuration        prometheus.Histogram

	// Relay
	signalsTotal       *prometheus.CounterVec
	poseFramesRelayed  prometheus.Counter
	wsConnections      prometheus.Gauge
	wsConnectionsTotal prometheus.Counter

	httpRequestDuration *prometheus.HistogramVec
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the collectors with reg. Tests pass a fresh registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		roomsCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dancebattle_rooms_created_total",
			Help: "Total number of rooms created",
		}),

		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dancebattle_rooms_active",
			Help: "Rooms currently stored",
		}),

		playersJoinedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dancebattle_players_joined_total",
			Help: "Total number of successful room joins",
		}),

		gamesStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dancebattle_games_started_total",
			Help: "Total number of games started",
		}),

		scoresSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dancebattle_scores_submitted_total",
			Help: "Total number of accepted score submissions",
		}),

		roomsCompletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dancebattle_rooms_completed_total",
			Help: "Total number of games that produced a winner",
		}),

		gameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dancebattle_game_duration_seconds",
			Help:    "Time from game start to the last score submission",
			Buckets: []float64{15, 30, 60, 120, 180, 300, 600},
		}),

		signalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dancebattle_signals_total",
			Help: "Signaling messages stored, by kind",
		}, []string{"kind"}),

		poseFramesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dancebattle_pose_frames_relayed_total",
			Help: "Pose frames relayed between players",
		}),

		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dancebattle_ws_connections",
			Help: "Open WebSocket connections",
		}),

		wsConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dancebattle_ws_connections_total",
			Help: "Total WebSocket connections accepted",
		}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dancebattle_http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route", "status"}),
	}
}

func (p *PrometheusCollector) RoomCreated() {
	p.roomsCreatedTotal.Inc()
	p.roomsActive.Inc()
}

func (p *PrometheusCollector) RoomDeleted() {
	p.roomsActive.Dec()
}

func (p *PrometheusCollector) PlayerJoined() {
	p.playersJoinedTotal.Inc()
}

func (p *PrometheusCollector) GameStarted() {
	p.gamesStartedTotal.Inc()
}

func (p *PrometheusCollector) ScoreSubmitted() {
	p.scoresSubmitted.Inc()
}

func (p *PrometheusCollector) RoomCompleted(playDuration time.Duration) {
	p.roomsCompletedTotal.Inc()
	p.gameDuration.Observe(playDuration.Seconds())
}

func (p *PrometheusCollector) SignalPosted(kind domain.SignalKind) {
	p.signalsTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) PoseFrameRelayed() {
	p.poseFramesRelayed.Inc()
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.wsConnections.Inc()
	p.wsConnectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() {
	p.wsConnections.Dec()
}

func (p *PrometheusCollector) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	p.httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
