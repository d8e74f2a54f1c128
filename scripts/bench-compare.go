//go:build ignore

// Benchmark regression gate for the store and extract benchmarks.
// Usage: go run scripts/bench-compare.go [options] <current.txt> <baseline.txt>
//
// Both files are plain `go test -bench` output. Benchmarks are matched
// by name and compared on ns/op; anything more than 20% slower than the
// baseline fails the run. Capture a baseline with:
//
//	go test -bench . -benchmem ./internal/store ./internal/extract > bench-baseline.txt
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	// defaultThreshold is the maximum allowed slowdown (20%).
	defaultThreshold = 0.20

	// improvementThreshold marks results worth calling out as faster.
	improvementThreshold = 0.10
)

// benchResult is one parsed benchmark line.
type benchResult struct {
	Name        string  `json:"name"`
	NsPerOp     float64 `json:"ns_per_op"`
	BytesPerOp  int     `json:"bytes_per_op,omitempty"`
	AllocsPerOp int     `json:"allocs_per_op,omitempty"`
}

// comparison pairs a current result with its baseline.
type comparison struct {
	Name     string  `json:"name"`
	Current  float64 `json:"current_ns_per_op"`
	Baseline float64 `json:"baseline_ns_per_op"`
	DeltaPct float64 `json:"delta_percent"`
	Status   string  `json:"status"` // OK, REGRESSION, IMPROVED, NEW, MISSING
}

// report aggregates the whole comparison.
type report struct {
	Total        int           `json:"total_benchmarks"`
	Regressions  int           `json:"regressions"`
	Improvements int           `json:"improvements"`
	Unchanged    int           `json:"unchanged"`
	New          int           `json:"new_benchmarks"`
	Missing      int           `json:"missing_from_current"`
	Results      []*comparison `json:"results"`
	Failed       bool          `json:"regression_failed"`
}

var (
	outputJSON    = flag.Bool("json", false, "Output results as JSON")
	threshold     = flag.Float64("threshold", defaultThreshold, "Regression threshold (0.0-1.0)")
	verbose       = flag.Bool("verbose", false, "Show all benchmark comparisons")
	failOnRegress = flag.Bool("fail", true, "Exit nonzero when a regression is found")
)

// Matches: BenchmarkName-N   iterations   ns/op   [B/op]   [allocs/op]
var benchLine = regexp.MustCompile(`^(Benchmark\S+)\s+\d+\s+([\d.]+)\s+ns/op(?:\s+(\d+)\s+B/op)?(?:\s+(\d+)\s+allocs/op)?`)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <current.txt> <baseline.txt>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Compares go test -bench output against a baseline and flags regressions.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	current, err := parseFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
	baseline, err := parseFile(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}

	rep := compare(current, baseline, *threshold)

	if *outputJSON {
		printJSON(rep)
	} else {
		printText(rep)
	}

	if *failOnRegress && rep.Failed {
		os.Exit(1)
	}
}

// parseFile reads benchmark results out of go test output, keyed by name.
func parseFile(path string) (map[string]*benchResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	results := make(map[string]*benchResult)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if r := parseLine(scanner.Text()); r != nil {
			results[r.Name] = r
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// parseLine parses one benchmark output line, or returns nil for
// non-benchmark lines (headers, PASS, ok ...).
func parseLine(line string) *benchResult {
	m := benchLine.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	r := &benchResult{Name: m[1]}
	r.NsPerOp, _ = strconv.ParseFloat(m[2], 64)
	if m[3] != "" {
		r.BytesPerOp, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		r.AllocsPerOp, _ = strconv.Atoi(m[4])
	}
	return r
}

// compare walks both result sets and classifies every benchmark.
func compare(current, baseline map[string]*benchResult, threshold float64) *report {
	rep := &report{Results: []*comparison{}}

	for name, curr := range current {
		rep.Total++

		base, ok := baseline[name]
		if !ok {
			rep.New++
			if *verbose {
				rep.Results = append(rep.Results, &comparison{
					Name: name, Current: curr.NsPerOp, Status: "NEW",
				})
			}
			continue
		}

		// Positive delta means slower than baseline
		deltaPct := 0.0
		if base.NsPerOp > 0 {
			deltaPct = (curr.NsPerOp - base.NsPerOp) / base.NsPerOp
		}

		c := &comparison{
			Name:     name,
			Current:  curr.NsPerOp,
			Baseline: base.NsPerOp,
			DeltaPct: deltaPct * 100,
		}

		switch {
		case deltaPct > threshold:
			c.Status = "REGRESSION"
			rep.Regressions++
			rep.Failed = true
		case deltaPct < -improvementThreshold:
			c.Status = "IMPROVED"
			rep.Improvements++
		default:
			c.Status = "OK"
			rep.Unchanged++
		}

		if c.Status != "OK" || *verbose {
			rep.Results = append(rep.Results, c)
		}
	}

	// Benchmarks that vanished from the current run usually mean a test
	// was renamed or deleted; surface them so the baseline gets refreshed.
	for name, base := range baseline {
		if _, ok := current[name]; !ok {
			rep.Missing++
			if *verbose {
				rep.Results = append(rep.Results, &comparison{
					Name: name, Baseline: base.NsPerOp, Status: "MISSING",
				})
			}
		}
	}

	return rep
}

func printText(rep *report) {
	rule := strings.Repeat("=", 80)
	fmt.Println(rule)
	fmt.Println("BENCHMARK COMPARISON")
	fmt.Println(rule)
	fmt.Println()

	fmt.Printf("Total Benchmarks: %d\n", rep.Total)
	fmt.Printf("Regressions:      %d (> %.0f%% slower)\n", rep.Regressions, *threshold*100)
	fmt.Printf("Improvements:     %d (> %.0f%% faster)\n", rep.Improvements, improvementThreshold*100)
	fmt.Printf("Unchanged:        %d\n", rep.Unchanged)
	fmt.Printf("New Benchmarks:   %d\n", rep.New)
	fmt.Printf("Missing:          %d\n", rep.Missing)
	fmt.Println()

	if len(rep.Results) > 0 {
		divider := strings.Repeat("-", 80)
		fmt.Println(divider)
		fmt.Printf("%-50s %12s %12s %10s\n", "BENCHMARK", "CURRENT", "BASELINE", "DELTA")
		fmt.Println(divider)

		for _, c := range rep.Results {
			var status string
			switch c.Status {
			case "REGRESSION":
				status = "❌ REGRESS"
			case "IMPROVED":
				status = "✅ FASTER"
			case "NEW":
				status = "🆕 NEW"
			case "MISSING":
				status = "⚠️ MISSING"
			default:
				status = "   OK"
			}

			if c.Baseline > 0 {
				fmt.Printf("%-50s %10.0f ns %10.0f ns %+8.1f%% %s\n",
					truncateName(c.Name, 50), c.Current, c.Baseline, c.DeltaPct, status)
			} else {
				fmt.Printf("%-50s %10.0f ns %12s %10s %s\n",
					truncateName(c.Name, 50), c.Current, "-", "-", status)
			}
		}
		fmt.Println(divider)
	}

	fmt.Println()
	if rep.Failed {
		fmt.Println("❌ FAILED: Performance regression detected!")
		fmt.Printf("   %d benchmark(s) regressed by more than %.0f%%\n", rep.Regressions, *threshold*100)
	} else {
		fmt.Println("✅ PASSED: No significant regressions detected.")
	}
	fmt.Println()
}

func printJSON(rep *report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// truncateName shortens long benchmark names for the table.
func truncateName(name string, maxLen int) string {
	if len(name) > maxLen {
		name = name[:maxLen-3] + "..."
	}
	return name
}
