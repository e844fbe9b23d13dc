package link

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/nerrad567/calibright/internal/ddcci"
)

// ErrSimulatedFault is returned by a SimMonitor when a fault is injected.
var ErrSimulatedFault = errors.New("link: simulated i2c fault")

// SimMonitor is an in-memory DDC/CI monitor. It answers brightness get and
// set requests the way a real display does, and can inject I/O faults.
// Used for development setups without hardware and in tests.
type SimMonitor struct {
	mu      sync.Mutex
	current uint16
	max     uint16
	pending []byte
	faults  int
	writes  []uint16 // values received in set requests, in order
	overlap bool     // a request arrived while a reply was still unread
	closed  bool
}

var _ Handle = (*SimMonitor)(nil)

// NewSimMonitor returns a simulated monitor with the given state.
func NewSimMonitor(current, maxValue uint16) *SimMonitor {
	return &SimMonitor{current: current, max: maxValue}
}

// FailNext makes the next n Write or Read calls fail.
func (s *SimMonitor) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = n
}

// Current returns the simulated brightness.
func (s *SimMonitor) Current() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetValues returns every value written with a set request.
func (s *SimMonitor) SetValues() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.writes...)
}

// Interleaved reports whether a request ever arrived between another
// request and the read of its reply.
func (s *SimMonitor) Interleaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlap
}

// Closed reports whether Close was called.
func (s *SimMonitor) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Write accepts a get or set request.
func (s *SimMonitor) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults > 0 {
		s.faults--
		return ErrSimulatedFault
	}
	if s.pending != nil {
		s.overlap = true
	}

	switch {
	case len(p) == 5 && p[2] == 0x01:
		s.pending = ddcci.EncodeReply(ddcci.Feature(p[3]), s.current, s.max)
	case len(p) == 7 && p[2] == 0x03 && ddcci.Feature(p[3]) == ddcci.Brightness:
		v := binary.BigEndian.Uint16(p[4:6])
		s.writes = append(s.writes, v)
		s.current = min(v, s.max)
		s.pending = nil
	default:
		s.pending = nil
	}
	return nil
}

// Read returns the reply to the last get request, or a null message.
func (s *SimMonitor) Read(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults > 0 {
		s.faults--
		s.pending = nil
		return nil, ErrSimulatedFault
	}

	reply := s.pending
	s.pending = nil
	if reply == nil {
		reply = []byte{0x6E, 0x80, 0xBE}
	}
	if len(reply) > n {
		reply = reply[:n]
	}
	return reply, nil
}

// Close marks the monitor closed.
func (s *SimMonitor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
