package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Metrics collects the counters the snapshot engine cares about. The
// partitioned log delivers each aggregate's events in order, so a stale-event
// drop in steady state means either a replay (fine) or a producer bug (alert
// on it); snapshot_stale_events_total exists so the difference shows up on a
// dashboard.
type Metrics struct {
	consumerApplied  *CounterVec
	consumerDropped  *CounterVec
	staleEvents      *CounterVec
	commandEmitted   *CounterVec
	commandConflicts *CounterVec
	commandRetries   *CounterVec
	publishFailures  *CounterVec
	batchOutcome     *CounterVec
	consumerPending  *GaugeVec
}

func Init() *Metrics {
	return &Metrics{
		consumerApplied: NewCounterVec(
			"consumer_applied_total",
			"Events applied to the snapshot stores, by kind and event name.",
			[]string{"kind", "event"},
		),
		consumerDropped: NewCounterVec(
			"consumer_dropped_total",
			"Events dropped as duplicates, by kind.",
			[]string{"kind"},
		),
		staleEvents: NewCounterVec(
			"snapshot_stale_events_total",
			"Events dropped because their version did not follow storage, by kind.",
			[]string{"kind"},
		),
		commandEmitted: NewCounterVec(
			"command_events_emitted_total",
			"Events emitted by command handlers, by kind.",
			[]string{"kind"},
		),
		commandConflicts: NewCounterVec(
			"command_version_conflicts_total",
			"Commands rejected on a version token mismatch, by kind.",
			[]string{"kind"},
		),
		commandRetries: NewCounterVec(
			"command_retries_total",
			"Lock-conflict retries inside the command gate, by kind.",
			[]string{"kind"},
		),
		publishFailures: NewCounterVec(
			"publish_failures_total",
			"Post-commit stream publishes that failed, by kind.",
			[]string{"kind"},
		),
		batchOutcome: NewCounterVec(
			"batch_items_total",
			"Batch operation per-item outcomes.",
			[]string{"operation", "outcome"},
		),
		consumerPending: NewGaugeVec(
			"consumer_pending",
			"Pending (unacked) entries per partition stream.",
			[]string{"stream"},
		),
	}
}

func (m *Metrics) IncApplied(kind, event string) { m.consumerApplied.Inc(kind, event) }
func (m *Metrics) IncDuplicate(kind string)      { m.consumerDropped.Inc(kind) }
func (m *Metrics) IncStaleEvent(kind string)     { m.staleEvents.Inc(kind) }
func (m *Metrics) IncEmitted(kind string)        { m.commandEmitted.Inc(kind) }
func (m *Metrics) IncConflict(kind string)       { m.commandConflicts.Inc(kind) }
func (m *Metrics) IncRetry(kind string)          { m.commandRetries.Inc(kind) }
func (m *Metrics) IncPublishFailure(kind string) { m.publishFailures.Inc(kind) }

func (m *Metrics) IncBatchItem(operation, outcome string) {
	m.batchOutcome.Inc(operation, outcome)
}

func (m *Metrics) SetPending(stream string, n int64) {
	m.consumerPending.Set(float64(n), stream)
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []*CounterVec{
		m.consumerApplied,
		m.consumerDropped,
		m.staleEvents,
		m.commandEmitted,
		m.commandConflicts,
		m.commandRetries,
		m.publishFailures,
		m.batchOutcome,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return m.consumerPending.WritePrometheus(w)
}

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labelNames []string) *CounterVec {
	return &CounterVec{
		name:       name,
		help:       help,
		labelNames: labelNames,
		values:     map[string]float64{},
	}
}

func (c *CounterVec) Inc(values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) Value(values ...string) float64 {
	if c == nil {
		return 0
	}
	lbl := labelString(c.labelNames, values)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[lbl]
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, k := range sortedKeys(c.values) {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, c.values[k]); err != nil {
			return err
		}
	}
	return nil
}

type GaugeVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewGaugeVec(name, help string, labelNames []string) *GaugeVec {
	return &GaugeVec{
		name:       name,
		help:       help,
		labelNames: labelNames,
		values:     map[string]float64{},
	}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	lbl := labelString(g.labelNames, values)
	g.mu.Lock()
	g.values[lbl] = v
	g.mu.Unlock()
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, k := range sortedKeys(g.values) {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", g.name, k, g.values[k]); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names))
	for i, n := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%q", n, v))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
