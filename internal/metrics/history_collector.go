package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HistoryCounter reports how many results the history currently holds.
type HistoryCounter interface {
	Count(ctx context.Context) (int, error)
}

type historyCollector struct {
	mu     sync.RWMutex
	src    HistoryCounter
	logger *slog.Logger

	depthDesc *prometheus.Desc
}

func newHistoryCollector(src HistoryCounter, logger *slog.Logger) *historyCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &historyCollector{
		src:    src,
		logger: logger,
		depthDesc: prometheus.NewDesc(
			"classifyq_history_depth",
			"Current number of completed results in the history.",
			nil,
			nil,
		),
	}
}

func (c *historyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depthDesc
}

// setSource points the collector at a new history, replacing the old one.
func (c *historyCollector) setSource(src HistoryCounter, logger *slog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.src = src
	if logger != nil {
		c.logger = logger
	}
}

func (c *historyCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	src, logger := c.src, c.logger
	c.mu.RUnlock()
	if src == nil {
		return
	}

	// Keep storage reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := src.Count(ctx)
	if err != nil {
		logger.Warn("prometheus history collector failed", "err", err)
		return
	}
	emitGauge(ch, c.depthDesc, float64(n))
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var (
	registerHistoryCollectorOnce sync.Once
	historyDepth                 = newHistoryCollector(nil, nil)
)

// RegisterHistoryCollector reports src as classifyq_history_depth. The
// collector is registered once per process; later calls swap the source so
// the gauge follows the most recently built application.
func RegisterHistoryCollector(src HistoryCounter, logger *slog.Logger) {
	historyDepth.setSource(src, logger)
	registerHistoryCollectorOnce.Do(func() {
		prometheus.MustRegister(historyDepth)
	})
}
