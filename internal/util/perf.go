package util

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// PerfEnabled turns on timing of upstream calls
var PerfEnabled bool

// PerfMetric aggregates the timings recorded under one name
type PerfMetric struct {
	Name      string
	Last      time.Duration
	Count     int64
	TotalTime time.Duration
}

// Average returns the mean duration
func (m PerfMetric) Average() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.Count)
}

// PerfTracker tracks performance metrics across the application
type PerfTracker struct {
	mu       sync.RWMutex
	metrics  map[string]*PerfMetric
	started  time.Time
	counters map[string]*int64
}

var (
	globalPerf     *PerfTracker
	globalPerfOnce sync.Once
)

// NewPerfTracker returns an empty tracker
func NewPerfTracker() *PerfTracker {
	return &PerfTracker{
		metrics:  make(map[string]*PerfMetric),
		started:  time.Now(),
		counters: make(map[string]*int64),
	}
}

// GetPerfTracker returns the global performance tracker
func GetPerfTracker() *PerfTracker {
	globalPerfOnce.Do(func() {
		globalPerf = NewPerfTracker()
	})
	return globalPerf
}

// Record adds one measurement under name
func (pt *PerfTracker) Record(name string, duration time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	metric, ok := pt.metrics[name]
	if !ok {
		metric = &PerfMetric{Name: name}
		pt.metrics[name] = metric
	}
	metric.Count++
	metric.TotalTime += duration
	metric.Last = duration
}

// IncrementCounter increments a named counter atomically
func (pt *PerfTracker) IncrementCounter(name string) {
	pt.mu.Lock()
	counter, ok := pt.counters[name]
	if !ok {
		counter = new(int64)
		pt.counters[name] = counter
	}
	pt.mu.Unlock()

	atomic.AddInt64(counter, 1)
}

// GetCounter returns the current value of a counter
func (pt *PerfTracker) GetCounter(name string) int64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	if counter, ok := pt.counters[name]; ok {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// Metrics returns a copy of all metrics sorted by total time, slowest first
func (pt *PerfTracker) Metrics() []PerfMetric {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	out := make([]PerfMetric, 0, len(pt.metrics))
	for _, m := range pt.metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTime != out[j].TotalTime {
			return out[i].TotalTime > out[j].TotalTime
		}
		return out[i].Name < out[j].Name
	})
	return out
}

var (
	perfTitleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	perfMetricStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1D3"))
	perfSlowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	perfFastStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7BED9F"))
	perfSeparatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#636E72"))
)

// WriteReport prints the timing table to w
func (pt *PerfTracker) WriteReport(w io.Writer) {
	var b strings.Builder

	b.WriteString(perfSeparatorStyle.Render(strings.Repeat("─", 72)))
	b.WriteString("\n")
	b.WriteString(perfTitleStyle.Render("PERFORMANCE REPORT"))
	b.WriteString(fmt.Sprintf("  uptime %s\n", time.Since(pt.started).Round(time.Millisecond)))

	for _, m := range pt.Metrics() {
		total := m.TotalTime.Round(time.Millisecond).String()
		switch {
		case m.TotalTime > 5*time.Second:
			total = perfSlowStyle.Render(total)
		case m.TotalTime < 500*time.Millisecond:
			total = perfFastStyle.Render(total)
		}
		b.WriteString(fmt.Sprintf("  %-36s %10s %6d %10s\n",
			perfMetricStyle.Render(m.Name), total, m.Count, m.Average().Round(time.Millisecond)))
	}

	pt.mu.RLock()
	names := make([]string, 0, len(pt.counters))
	for name := range pt.counters {
		names = append(names, name)
	}
	pt.mu.RUnlock()
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(fmt.Sprintf("  %-36s %d\n", perfMetricStyle.Render(name), pt.GetCounter(name)))
	}

	b.WriteString(perfSeparatorStyle.Render(strings.Repeat("─", 72)))
	b.WriteString("\n")
	_, _ = fmt.Fprint(w, b.String())
}

// TimeFuncWithError times fn under name when profiling is enabled
func TimeFuncWithError[T any](name string, fn func() (T, error)) (T, error) {
	if !PerfEnabled {
		return fn()
	}
	start := time.Now()
	result, err := fn()
	GetPerfTracker().Record(name, time.Since(start))
	if err != nil {
		GetPerfTracker().IncrementCounter(name + " errors")
	}
	return result, err
}
