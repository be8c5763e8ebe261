// Package enrich augments repository records with data from remote APIs.
package enrich

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// API names recorded in Stats.
const (
	APIGitHub  = "github"
	APIGerrit  = "gerrit"
	APIJenkins = "jenkins"
)

const resultSuccess = "success"

// Stats counts remote API calls by API and outcome. Counts are mirrored into
// a Prometheus registry so they can be exported with the run metrics.
type Stats struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec

	mu       sync.Mutex
	success  map[string]int
	errors   map[string]map[string]int
	observer func(api string, failed bool)
}

// NewStats creates Stats with its own registry.
func NewStats() *Stats {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repopulse",
		Name:      "enrich_api_calls_total",
		Help:      "Remote API calls made during enrichment, by api and result.",
	}, []string{"api", "result"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(calls)

	return &Stats{
		registry: registry,
		calls:    calls,
		success:  map[string]int{},
		errors:   map[string]map[string]int{},
	}
}

// Gatherer exposes the counters for export.
func (s *Stats) Gatherer() prometheus.Gatherer {
	return s.registry
}

// Observe registers fn to be called after every recorded call.
func (s *Stats) Observe(fn func(api string, failed bool)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// RecordSuccess counts a successful call.
func (s *Stats) RecordSuccess(api string) {
	s.calls.WithLabelValues(api, resultSuccess).Inc()

	s.mu.Lock()
	s.success[api]++
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(api, false)
	}
}

// RecordError counts a failed call. code is an HTTP status or an error kind.
func (s *Stats) RecordError(api, code string) {
	s.calls.WithLabelValues(api, code).Inc()

	s.mu.Lock()

	if s.errors[api] == nil {
		s.errors[api] = map[string]int{}
	}

	s.errors[api][code]++
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(api, true)
	}
}

// APISummary is the per-API tally.
type APISummary struct {
	API     string         `json:"api"`
	Success int            `json:"success"`
	Errors  map[string]int `json:"errors"`
}

// TotalErrors sums every error code.
func (a APISummary) TotalErrors() int {
	total := 0
	for _, n := range a.Errors {
		total += n
	}

	return total
}

// Summary returns tallies sorted by API name.
func (s *Stats) Summary() []APISummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := map[string]struct{}{}
	for api := range s.success {
		names[api] = struct{}{}
	}

	for api := range s.errors {
		names[api] = struct{}{}
	}

	out := make([]APISummary, 0, len(names))

	for api := range names {
		errs := make(map[string]int, len(s.errors[api]))
		for code, n := range s.errors[api] {
			errs[code] = n
		}

		out = append(out, APISummary{API: api, Success: s.success[api], Errors: errs})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].API < out[j].API })

	return out
}

// HasErrors reports whether any call failed.
func (s *Stats) HasErrors() bool {
	for _, sum := range s.Summary() {
		if sum.TotalErrors() > 0 {
			return true
		}
	}

	return false
}

// Format renders the tallies for the console; empty when no calls were made.
func (s *Stats) Format() string {
	var b strings.Builder

	for _, sum := range s.Summary() {
		fmt.Fprintf(&b, "%s API: %d successful", sum.API, sum.Success)

		total := sum.TotalErrors()
		if total == 0 {
			b.WriteString("\n")

			continue
		}

		fmt.Fprintf(&b, ", %d failed\n", total)

		codes := make([]string, 0, len(sum.Errors))
		for code := range sum.Errors {
			codes = append(codes, code)
		}

		sort.Strings(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  error %s: %d\n", code, sum.Errors[code])
		}
	}

	return b.String()
}
