package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparkline_EmptyRendersBaseline(t *testing.T) {
	s := NewSparkline(10)

	got := s.Render(0)

	assert.Equal(t, strings.Repeat("▁", 10), got)
}

func TestSparkline_ScalesAgainstMax(t *testing.T) {
	// Given: three samples with a clear peak
	s := NewSparkline(3)
	s.Add(0)
	s.Add(50)
	s.Add(100)

	// When: rendering the full buffer
	got := []rune(s.Render(0))

	// Then: the peak renders as the tallest bar, zero as the lowest
	assert.Len(t, got, 3)
	assert.Equal(t, '▁', got[0])
	assert.Equal(t, '█', got[2])
	assert.Equal(t, 100.0, s.Max())
}

func TestSparkline_PartialFillPadsWithSpaces(t *testing.T) {
	s := NewSparkline(8)
	s.Add(5)
	s.Add(5)

	got := []rune(s.Render(0))

	assert.Len(t, got, 8)
	assert.Equal(t, ' ', got[7], "unfilled tail renders as spaces")
	assert.NotEqual(t, ' ', got[0])
}

func TestSparkline_RingEvictsOldest(t *testing.T) {
	// Given: a full buffer with a high early value
	s := NewSparkline(3)
	s.Add(100)
	s.Add(1)
	s.Add(1)

	// When: adding enough samples to wrap past the peak
	s.Add(1)
	s.Add(1)
	s.Add(1)

	// Then: rescan dropped the evicted peak from the max
	assert.Equal(t, 1.0, s.Max())
	assert.Equal(t, 6, s.Count())
}

func TestSparkline_NarrowWidthKeepsLatestSamples(t *testing.T) {
	// Given: ascending samples filling the buffer
	s := NewSparkline(6)
	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		s.Add(v)
	}

	// When: rendering narrower than capacity
	got := []rune(s.Render(3))

	// Then: only the newest samples remain, ending at the peak
	assert.Len(t, got, 3)
	assert.Equal(t, '█', got[2])
}

func TestSparkline_ClearResets(t *testing.T) {
	s := NewSparkline(4)
	s.Add(10)
	s.Add(20)

	s.Clear()

	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 0.0, s.Max())
	assert.Equal(t, strings.Repeat("▁", 4), s.Render(0))
}
