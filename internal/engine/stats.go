package engine

import (
	"sync/atomic"
	"time"

	"github.com/asecurityteam/rolling"
)

// statsWindow is the number of recent transactions the rolling averages
// cover.
const statsWindow = 64

// LinkStats summarises recent hardware transactions for one display.
type LinkStats struct {
	Transactions uint64    `json:"transactions"`
	Failures     uint64    `json:"failures"`
	AvgAttempts  float64   `json:"avg_attempts"`
	MaxAttempts  float64   `json:"max_attempts"`
	AvgLatencyMS float64   `json:"avg_latency_ms"`
	LastActivity time.Time `json:"last_activity,omitzero"`
}

type linkStats struct {
	attempts *rolling.PointPolicy
	latency  *rolling.PointPolicy

	transactions atomic.Uint64
	failures     atomic.Uint64
	last         atomic.Int64
}

func newLinkStats() *linkStats {
	return &linkStats{
		attempts: rolling.NewPointPolicy(rolling.NewWindow(statsWindow)),
		latency:  rolling.NewPointPolicy(rolling.NewWindow(statsWindow)),
	}
}

func (s *linkStats) record(attempts int, d time.Duration, err error) {
	s.attempts.Append(float64(attempts))
	s.latency.Append(float64(d) / float64(time.Millisecond))
	if err != nil {
		s.failures.Add(1)
	}
	s.last.Store(time.Now().UnixNano())
	s.transactions.Add(1)
}

func (s *linkStats) snapshot() LinkStats {
	out := LinkStats{
		Transactions: s.transactions.Load(),
		Failures:     s.failures.Load(),
	}
	if out.Transactions == 0 {
		return out
	}
	out.AvgAttempts = s.attempts.Reduce(rolling.Avg)
	out.MaxAttempts = s.attempts.Reduce(rolling.Max)
	out.AvgLatencyMS = s.latency.Reduce(rolling.Avg)
	if ns := s.last.Load(); ns > 0 {
		out.LastActivity = time.Unix(0, ns)
	}
	return out
}
