package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) Count(context.Context) (int, error) { return f.n, f.err }

func collect(c prometheus.Collector) []prometheus.Metric {
	ch := make(chan prometheus.Metric, 4)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	var out []prometheus.Metric
	for m := range ch {
		out = append(out, m)
	}
	return out
}

func TestHistoryCollectorEmitsDepth(t *testing.T) {
	c := newHistoryCollector(fakeCounter{n: 7}, nil)
	got := collect(c)
	if len(got) != 1 {
		t.Fatalf("Expected 1 metric, got %d", len(got))
	}
}

func TestHistoryCollectorSkipsOnError(t *testing.T) {
	c := newHistoryCollector(fakeCounter{err: errors.New("down")}, nil)
	if got := collect(c); len(got) != 0 {
		t.Fatalf("Expected no metrics on error, got %d", len(got))
	}
}

func TestHistoryCollectorNilSource(t *testing.T) {
	c := newHistoryCollector(nil, nil)
	if got := collect(c); len(got) != 0 {
		t.Fatalf("Expected no metrics for nil source, got %d", len(got))
	}
}

func gaugeValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	got := collect(c)
	if len(got) != 1 {
		t.Fatalf("Expected 1 metric, got %d", len(got))
	}
	var m dto.Metric
	if err := got[0].Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRegisterHistoryCollectorFollowsLatestSource(t *testing.T) {
	RegisterHistoryCollector(fakeCounter{n: 2}, nil)
	if v := gaugeValue(t, historyDepth); v != 2 {
		t.Fatalf("depth = %v, want 2", v)
	}

	RegisterHistoryCollector(fakeCounter{n: 9}, nil)
	if v := gaugeValue(t, historyDepth); v != 9 {
		t.Errorf("depth after second registration = %v, want 9", v)
	}
}
