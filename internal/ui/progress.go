package ui

import (
	"slices"
	"sync"
	"time"
)

// speedSampleInterval is how often throughput is resampled. Sampling
// faster than this mostly measures scheduler noise.
const speedSampleInterval = 500 * time.Millisecond

// etaSmoothingFactor weights a new ETA estimate against the previous
// one. Per-file extraction time varies wildly (a large PDF against a
// small text file), so raw estimates jump around.
const etaSmoothingFactor = 0.3

// speedMeter derives files/sec throughput from the cumulative progress
// counter. Callers must hold the tracker lock.
type speedMeter struct {
	lastCount  int
	lastSample time.Time
	current    float64
	avg        float64
	peak       float64
	sampled    bool
	spark      *Sparkline
}

func newSpeedMeter(now time.Time) *speedMeter {
	return &speedMeter{
		lastSample: now,
		spark:      NewSparkline(60),
	}
}

// observe folds a new cumulative count into the meter. Counts arriving
// closer together than speedSampleInterval are absorbed into the next
// sample.
func (s *speedMeter) observe(count int, now time.Time) {
	elapsed := now.Sub(s.lastSample)
	if elapsed < speedSampleInterval {
		return
	}

	delta := count - s.lastCount
	if delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		s.current = speed

		// Exponentially smoothed average: responsive but stable
		if !s.sampled {
			s.avg = speed
			s.sampled = true
		} else {
			s.avg = 0.2*speed + 0.8*s.avg
		}

		if speed > s.peak {
			s.peak = speed
		}
		s.spark.Add(speed)
	}

	s.lastCount = count
	s.lastSample = now
}

func (s *speedMeter) reset(now time.Time) {
	s.lastCount = 0
	s.lastSample = now
	s.current = 0
	s.avg = 0
	s.peak = 0
	s.sampled = false
	s.spark.Clear()
}

func (s *speedMeter) stats() SpeedStats {
	return SpeedStats{Current: s.current, Avg: s.avg, Peak: s.peak}
}

// stageProgress holds the counters for one crawl stage. Each stage
// counts its own units, so a stage change replaces the whole value.
// Callers must hold the tracker lock.
type stageProgress struct {
	name    Stage
	done    int
	total   int
	file    string
	started time.Time
	lastETA time.Duration
}

// fraction reports completion between 0.0 and 1.0. A done count past
// the announced total caps at 1.0 instead of overshooting.
func (sp *stageProgress) fraction() float64 {
	if sp.total == 0 {
		return 0
	}
	return min(float64(sp.done)/float64(sp.total), 1)
}

// eta projects remaining stage time from progress so far and smooths
// it against the previous estimate.
func (sp *stageProgress) eta() time.Duration {
	progress := sp.fraction()
	if progress <= 0 || progress >= 1 {
		return 0
	}

	elapsed := time.Since(sp.started)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}

	if sp.lastETA == 0 {
		sp.lastETA = raw
	} else {
		sp.lastETA = time.Duration(
			etaSmoothingFactor*float64(raw) +
				(1-etaSmoothingFactor)*float64(sp.lastETA),
		)
	}
	return sp.lastETA
}

// ProgressTracker manages progress state across crawl stages. Safe for
// concurrent use.
type ProgressTracker struct {
	mu        sync.RWMutex
	stage     stageProgress
	startTime time.Time
	errors    []ErrorEvent
	warnings  []ErrorEvent
	speed     *speedMeter
}

// SpeedStats contains throughput metrics for display.
type SpeedStats struct {
	Current float64 // Current files/sec
	Avg     float64 // Smoothed average
	Peak    float64 // Highest rate seen this crawl
}

// ProgressStats is a point-in-time view of tracker state.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// NewProgressTracker starts a tracker in the scanning stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:     stageProgress{name: StageScanning, started: now},
		startTime: now,
		speed:     newSpeedMeter(now),
	}
}

// SetStage transitions to a new stage. Progress, ETA smoothing, and
// throughput all restart.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stageProgress{name: stage, total: total, started: now}
	p.speed.reset(now)
}

// Update updates progress within the current stage.
func (p *ProgressTracker) Update(current int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage.done = current
	if file != "" {
		p.stage.file = file
	}
	p.speed.observe(current, time.Now())
}

// AddError files the event as either an error or a warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := &p.errors
	if event.IsWarn {
		bucket = &p.warnings
	}
	*bucket = append(*bucket, event)
}

// Progress returns current progress as a fraction (0.0-1.0).
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.stage.fraction()
}

// ETA estimates remaining time in the current stage.
// Takes the write lock because smoothing updates the last estimate.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stage.eta()
}

// Elapsed reports how long the tracker has been alive.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.startTime)
}

// Stats returns a snapshot of the current state.
// Takes the write lock because smoothing updates the last estimate.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage.name,
		Current:     p.stage.done,
		Total:       p.stage.total,
		Progress:    p.stage.fraction(),
		ETA:         p.stage.eta(),
		CurrentFile: p.stage.file,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
		Speed:       p.speed.stats(),
	}
}

// Errors returns a copy of the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Clone(p.errors)
}

// Warnings returns a copy of the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Clone(p.warnings)
}

// RenderSparkline returns the throughput sparkline at the given width.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.speed.spark.Render(width)
}

// SpeedStats returns current throughput statistics.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.speed.stats()
}
