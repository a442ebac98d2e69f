// Package metrics exposes coordination activity as Prometheus metrics. The
// Collector subscribes to the event bus and keeps its own registry so tests
// and embedded uses never touch the global default registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harrison/coordinator/internal/events"
)

const namespace = "coordinator"

// Collector turns lifecycle events into Prometheus series.
type Collector struct {
	registry *prometheus.Registry

	coordinationsTotal   *prometheus.CounterVec
	coordinationDuration *prometheus.HistogramVec
	agentCallsTotal      *prometheus.CounterVec
	agentDuration        *prometheus.HistogramVec
	agentCostTotal       *prometheus.CounterVec
	gateFailuresTotal    *prometheus.CounterVec
	handoffsTotal        *prometheus.CounterVec
}

// NewCollector creates a Collector with all series registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		coordinationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinations_total",
			Help:      "Finished coordinations by pattern and status.",
		}, []string{"pattern", "status"}),
		coordinationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coordination_duration_seconds",
			Help:      "Wall time of finished coordinations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"pattern"}),
		agentCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_invocations_total",
			Help:      "Agent invocations by agent type and outcome.",
		}, []string{"agent", "outcome"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_invocation_duration_seconds",
			Help:      "Duration of agent invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		agentCostTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_cost_units_total",
			Help:      "Cost units reported by completed agents.",
		}, []string{"agent"}),
		gateFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_gate_failures_total",
			Help:      "Failed quality gate evaluations.",
		}, []string{"gate", "blocking"}),
		handoffsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Handoffs between agents.",
		}, []string{"from", "to"}),
	}

	c.registry.MustRegister(
		c.coordinationsTotal,
		c.coordinationDuration,
		c.agentCallsTotal,
		c.agentDuration,
		c.agentCostTotal,
		c.gateFailuresTotal,
		c.handoffsTotal,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// HandleEvent implements events.Subscriber.
func (c *Collector) HandleEvent(ev events.Event) {
	switch p := ev.Payload.(type) {
	case events.AgentCompletedPayload:
		c.agentCallsTotal.WithLabelValues(ev.AgentType, "completed").Inc()
		c.agentDuration.WithLabelValues(ev.AgentType).Observe(p.Duration.Seconds())
		c.agentCostTotal.WithLabelValues(ev.AgentType).Add(p.CostUnits)
	case events.AgentFailedPayload:
		c.agentCallsTotal.WithLabelValues(ev.AgentType, "failed").Inc()
		c.agentDuration.WithLabelValues(ev.AgentType).Observe(p.Duration.Seconds())
	case events.QualityGateFailedPayload:
		c.gateFailuresTotal.WithLabelValues(p.Gate, strconv.FormatBool(p.Blocking)).Inc()
	case events.HandoffInitiatedPayload:
		c.handoffsTotal.WithLabelValues(p.FromAgent, p.ToAgent).Inc()
	case events.CoordinationFinishedPayload:
		if p.Result == nil {
			return
		}
		pattern := p.Result.CoordinationType
		c.coordinationsTotal.WithLabelValues(pattern, string(p.Result.Status)).Inc()
		c.coordinationDuration.WithLabelValues(pattern).Observe(p.Result.Elapsed.Seconds())
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. The returned address is
// the bound listener address, useful when addr ends in ":0".
func (c *Collector) Serve(ctx context.Context, addr string) (string, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return ln.Addr().String(), done, nil
}
