// Package profiling wraps runtime/pprof for the --profile-* CLI flags.
// Profiles are the intended way to investigate slow crawls or extraction
// hot spots without instrumenting the code.
package profiling

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Profiler manages CPU, heap, and trace profiling for a single run.
type Profiler struct{}

// NewProfiler returns a ready Profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// start opens the output file and hands it to the collector's begin
// function. The returned cleanup stops the collector and closes the file.
func start(path, kind string, begin func(io.Writer) error, end func()) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s file: %w", kind, err)
	}
	if err := begin(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start %s: %w", kind, err)
	}
	return func() {
		end()
		_ = f.Close()
	}, nil
}

// StartCPU begins CPU profiling into path. The returned cleanup stops
// the profile and flushes it to disk.
func (p *Profiler) StartCPU(path string) (func(), error) {
	return start(path, "CPU profile", pprof.StartCPUProfile, pprof.StopCPUProfile)
}

// StartTrace begins execution tracing into path. The returned cleanup
// ends the trace.
func (p *Profiler) StartTrace(path string) (func(), error) {
	return start(path, "trace", trace.Start, trace.Stop)
}

// WriteHeap writes a point-in-time heap profile to the specified file.
func (p *Profiler) WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Collect garbage first so the snapshot shows live objects only.
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}
