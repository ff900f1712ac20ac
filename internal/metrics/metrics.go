// Package metrics exports behavior tree activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/joeycumines/btrun/internal/behavior"
	bt "github.com/joeycumines/go-behaviortree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts node transitions and tree runs. It implements
// behavior.Observer, so one Collector can be added to any number of trees.
type Collector struct {
	transitions *prometheus.CounterVec
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

var _ behavior.Observer = (*Collector)(nil)

// NewCollector creates the metrics under namespace and registers them with
// reg.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_status_transitions_total",
				Help:      "Node status changes, by the status entered.",
			},
			[]string{"tree", "node", "status"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tree_runs_total",
				Help:      "Completed tree runs, by outcome.",
			},
			[]string{"tree", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tree_run_duration_seconds",
				Help:      "Wall time of tree runs.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"tree"},
		),
	}
	for _, col := range []prometheus.Collector{c.transitions, c.runs, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return c, nil
}

// OnStatusChange implements behavior.Observer.
func (c *Collector) OnStatusChange(ev behavior.StatusEvent) {
	c.transitions.WithLabelValues(ev.TreeID, ev.NodePath, ev.Current.String()).Inc()
}

// ObserveRun records the result of one run of tree. A non-nil err is
// counted under the outcome "error" whatever the status.
func (c *Collector) ObserveRun(tree string, status bt.Status, err error, d time.Duration) {
	c.runs.WithLabelValues(tree, Outcome(status, err)).Inc()
	c.duration.WithLabelValues(tree).Observe(d.Seconds())
}

// Outcome is the tree_runs_total label for a run result.
func Outcome(status bt.Status, err error) string {
	if err != nil {
		return "error"
	}
	return strings.ToLower(behavior.StatusString(status))
}

// Serve exposes g on http://addr/metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
	return ServeListener(ctx, ln, g, logger)
}

// ServeListener is Serve on an existing listener, which it closes.
func ServeListener(ctx context.Context, ln net.Listener, g prometheus.Gatherer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	select {
	case err := <-done:
		return fmt.Errorf("metrics: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	if err := <-done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}
