package stats

import (
	"sort"
	"sync"
	"time"
)

// LatencySummary 单个操作类型的延迟分位统计
type LatencySummary struct {
	Count uint64        `json:"count"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

type latencyMetric struct {
	samples []int64 // 纳秒，环形缓冲区
	nextIdx int
	filled  bool
	count   uint64
	maxNs   int64
}

// Stats 按操作类型统计结果计数与执行延迟
type Stats struct {
	mu       sync.Mutex
	capacity int
	outcomes map[string]uint64
	latency  map[string]*latencyMetric
}

func NewStats(capacity int) *Stats {
	if capacity <= 0 {
		capacity = 2048
	}
	return &Stats{
		capacity: capacity,
		outcomes: make(map[string]uint64),
		latency:  make(map[string]*latencyMetric),
	}
}

// Record 记录一次执行。code 为空表示成功
func (s *Stats) Record(kind, code string, d time.Duration) {
	if s == nil || kind == "" {
		return
	}
	if code == "" {
		code = "ok"
	}
	ns := d.Nanoseconds()
	if ns < 0 {
		ns = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[kind+"/"+code]++

	m, ok := s.latency[kind]
	if !ok {
		m = &latencyMetric{samples: make([]int64, s.capacity)}
		s.latency[kind] = m
	}
	m.samples[m.nextIdx] = ns
	m.nextIdx = (m.nextIdx + 1) % len(m.samples)
	if m.nextIdx == 0 {
		m.filled = true
	}
	m.count++
	if ns > m.maxNs {
		m.maxNs = ns
	}
}

// Outcomes "kind/code" -> 次数，成功记为 "kind/ok"
func (s *Stats) Outcomes() map[string]uint64 {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.outcomes))
	for k, v := range s.outcomes {
		out[k] = v
	}
	return out
}

// Latency 获取分位统计；reset=true 时清空样本（用于区间监控）
func (s *Stats) Latency(reset bool) map[string]LatencySummary {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]LatencySummary, len(s.latency))
	for kind, m := range s.latency {
		n := m.nextIdx
		if m.filled {
			n = len(m.samples)
		}
		if n > 0 {
			values := make([]int64, n)
			copy(values, m.samples[:n])
			sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
			result[kind] = LatencySummary{
				Count: m.count,
				P50:   time.Duration(percentile(values, 0.50)),
				P95:   time.Duration(percentile(values, 0.95)),
				P99:   time.Duration(percentile(values, 0.99)),
				Max:   time.Duration(m.maxNs),
			}
		}
		if reset {
			m.nextIdx = 0
			m.filled = false
			m.count = 0
			m.maxNs = 0
		}
	}
	return result
}

func percentile(sorted []int64, p float64) int64 {
	switch {
	case len(sorted) == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[len(sorted)-1]
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
