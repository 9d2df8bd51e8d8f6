package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultRegressionThreshold = 0.30

// defaultTrackedMetrics are the hot paths every request goes through.
var defaultTrackedMetrics = map[string][]string{
	"BenchmarkVerify":             {"ns/op", "allocs/op"},
	"BenchmarkRequirePermission":  {"ns/op", "allocs/op"},
	"BenchmarkIssueAccess":        {"ns/op"},
	"BenchmarkMetricsIncParallel": {"ns/op"},
}

type sampleSet map[string]map[string][]float64

func runBenchCheck(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "benchcheck")
	baselinePath := fs.String("baseline", "", "path to baseline `go test -bench` output")
	candidatePath := fs.String("candidate", "", "path to candidate `go test -bench` output")
	threshold := fs.Float64("threshold", defaultRegressionThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	track := fs.StringSlice("track", nil, "benchmark:unit to compare instead of the defaults (repeatable)")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if *baselinePath == "" || *candidatePath == "" {
		return errors.New("--baseline and --candidate are required")
	}
	if *threshold < 0 {
		return errors.New("--threshold must be >= 0")
	}

	tracked := defaultTrackedMetrics
	if len(*track) > 0 {
		var err error
		if tracked, err = parseTracked(*track); err != nil {
			return err
		}
	}

	baseline, err := parseBenchmarkFile(*baselinePath, tracked)
	if err != nil {
		return fmt.Errorf("parse baseline: %w", err)
	}
	candidate, err := parseBenchmarkFile(*candidatePath, tracked)
	if err != nil {
		return fmt.Errorf("parse candidate: %w", err)
	}

	failures := compareBenchmarks(env.stdout, tracked, baseline, candidate, *threshold)
	if len(failures) > 0 {
		fmt.Fprintln(env.stderr, "performance regression threshold exceeded:")
		for _, failure := range failures {
			fmt.Fprintf(env.stderr, "  - %s\n", failure)
		}
		return exitError{code: 1}
	}
	return nil
}

func parseTracked(specs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(specs))
	for _, spec := range specs {
		name, unit, ok := strings.Cut(spec, ":")
		if !ok || name == "" || unit == "" {
			return nil, fmt.Errorf("--track %q: want benchmark:unit", spec)
		}
		out[name] = append(out[name], unit)
	}
	return out, nil
}

// compareBenchmarks prints one line per tracked metric and returns the
// failures. Benchmarks are visited in name order so output is stable.
func compareBenchmarks(w io.Writer, tracked map[string][]string, baseline, candidate sampleSet, threshold float64) []string {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	fmt.Fprintln(w, "perf regression check:")
	fmt.Fprintln(w, "benchmark metric baseline candidate delta")

	for _, benchmark := range names {
		for _, metric := range tracked[benchmark] {
			baseSamples := baseline[benchmark][metric]
			candidateSamples := candidate[benchmark][metric]
			if len(baseSamples) == 0 || len(candidateSamples) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", benchmark, metric))
				continue
			}

			baseMedian := median(baseSamples)
			candidateMedian := median(candidateSamples)
			if baseMedian <= 0 {
				// 0 allocs/op stays acceptable only while the candidate is also 0.
				if candidateMedian > 0 {
					failures = append(failures, fmt.Sprintf("%s %s rose from 0 to %.3f", benchmark, metric, candidateMedian))
				}
				fmt.Fprintf(w, "%s %s %.3f %.3f\n", benchmark, metric, baseMedian, candidateMedian)
				continue
			}

			delta := (candidateMedian - baseMedian) / baseMedian
			fmt.Fprintf(w, "%s %s %.3f %.3f %+0.2f%%\n", benchmark, metric, baseMedian, candidateMedian, delta*100)
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", benchmark, metric, delta*100, threshold*100))
			}
		}
	}
	return failures
}

func parseBenchmarkFile(path string, tracked map[string][]string) (sampleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseBenchmarks(file, tracked)
}

func parseBenchmarks(r io.Reader, tracked map[string][]string) (sampleSet, error) {
	samples := sampleSet{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := normalizeBenchmarkName(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}

		if _, ok := samples[name]; !ok {
			samples[name] = map[string][]float64{}
		}

		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			unit := fields[i+1]
			samples[name][unit] = append(samples[name][unit], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	copied := make([]float64, len(values))
	copy(copied, values)
	sort.Float64s(copied)

	mid := len(copied) / 2
	if len(copied)%2 == 1 {
		return copied[mid]
	}
	return (copied[mid-1] + copied[mid]) / 2
}
