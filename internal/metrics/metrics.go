package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	RoutingCalls    *prometheus.CounterVec   // kind: point|multi, status
	RoutingDuration *prometheus.HistogramVec // kind

	Recomputes    *prometheus.CounterVec // reason
	StaleDiscards *prometheus.CounterVec // kind: plan|adherence
	Adherence     *prometheus.CounterVec // state, including error and unavailable

	ActiveSessions prometheus.Gauge
	PositionFixes  *prometheus.CounterVec // source: nats|http|ws
	NATSConnected  prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RoutingCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldroute_routing_calls_total",
			Help: "Routing provider calls by kind and outcome status.",
		}, []string{"kind", "status"}),
		RoutingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldroute_routing_duration_seconds",
			Help:    "Latency of routing provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind"}),
		Recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldroute_recomputes_total",
			Help: "Session recompute triggers by reason.",
		}, []string{"reason"}),
		StaleDiscards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldroute_stale_results_total",
			Help: "Computation results discarded because a newer request superseded them.",
		}, []string{"kind"}),
		Adherence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldroute_adherence_results_total",
			Help: "Applied adherence results by state.",
		}, []string{"state"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldroute_active_sessions",
			Help: "Number of open live route sessions.",
		}),
		PositionFixes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldroute_position_fixes_total",
			Help: "Position fixes received by source.",
		}, []string{"source"}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldroute_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.RoutingCalls, c.RoutingDuration,
		c.Recomputes, c.StaleDiscards, c.Adherence,
		c.ActiveSessions, c.PositionFixes, c.NATSConnected,
	)

	return c
}

func (c *Collector) RoutingObserve(kind, status string, d time.Duration) {
	c.RoutingCalls.WithLabelValues(kind, status).Inc()
	c.RoutingDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (c *Collector) RecomputeInc(reason string) { c.Recomputes.WithLabelValues(reason).Inc() }
func (c *Collector) StaleInc(kind string)       { c.StaleDiscards.WithLabelValues(kind).Inc() }
func (c *Collector) AdherenceInc(state string)  { c.Adherence.WithLabelValues(state).Inc() }
func (c *Collector) PositionFixInc(src string)  { c.PositionFixes.WithLabelValues(src).Inc() }

func (c *Collector) SessionOpened() { c.ActiveSessions.Inc() }
func (c *Collector) SessionClosed() { c.ActiveSessions.Dec() }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening addr=%s", addr)
	return srv
}
