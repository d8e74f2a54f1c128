package ui

import (
	"slices"
	"strings"
)

// Sparkline renders throughput as a row of Unicode block characters,
// asitop style. Samples live in a fixed-size ring buffer; rendering
// scales against the maximum value currently in the buffer.
type Sparkline struct {
	ring  []float64
	next  int
	added int
	peak  float64
}

// sparkBars are the eight block heights from lowest to full.
var sparkBars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{ring: make([]float64, capacity)}
}

// Add records a new sample, evicting the oldest once full.
func (s *Sparkline) Add(value float64) {
	s.ring[s.next] = value
	s.next = (s.next + 1) % len(s.ring)
	s.added++
	s.peak = max(s.peak, value)

	// The peak only grows as samples arrive. Rescan once per full
	// revolution so an evicted spike eventually stops flattening the
	// chart.
	if s.added%len(s.ring) == 0 {
		s.rescanMax()
	}
}

func (s *Sparkline) rescanMax() {
	s.peak = max(slices.Max(s.ring), 1)
}

// oldestFirst returns the retained samples in arrival order.
func (s *Sparkline) oldestFirst() []float64 {
	if s.added < len(s.ring) {
		return s.ring[:s.added]
	}
	out := make([]float64, 0, len(s.ring))
	out = append(out, s.ring[s.next:]...)
	return append(out, s.ring[:s.next]...)
}

// Render returns the most recent samples as block characters, oldest
// first. A width of zero or anything past capacity renders the whole
// buffer; positions without a sample yet render as spaces.
func (s *Sparkline) Render(width int) string {
	capacity := len(s.ring)
	if width <= 0 || width > capacity {
		width = capacity
	}

	if s.added == 0 {
		return strings.Repeat(string(sparkBars[0]), width)
	}
	if s.peak <= 0 {
		s.rescanMax()
	}

	samples := s.oldestFirst()
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}

	var sb strings.Builder
	sb.Grow(width * 3) // block chars are 3 bytes in UTF-8
	for _, v := range samples {
		sb.WriteRune(sparkBars[s.barIndex(v)])
	}
	for range width - len(samples) {
		sb.WriteRune(' ')
	}
	return sb.String()
}

// barIndex scales a value against the buffer peak into a bar height.
func (s *Sparkline) barIndex(value float64) int {
	if s.peak <= 0 {
		return 0
	}
	idx := int(value / s.peak * float64(len(sparkBars)-1))
	return min(max(idx, 0), len(sparkBars)-1)
}

// Clear drops all samples and the scale along with them.
func (s *Sparkline) Clear() {
	clear(s.ring)
	s.next = 0
	s.added = 0
	s.peak = 0
}

// Count reports how many samples have ever been added.
func (s *Sparkline) Count() int {
	return s.added
}

// Max reports the current peak.
func (s *Sparkline) Max() float64 {
	return s.peak
}
