// Package report aggregates a run's observations and validation outcomes
// into a final summary. Building and rendering are pure; inputs are never
// mutated.
package report

import (
	"fmt"
	"sort"
	"strings"

	"symbion.dev/harness/internal/core/observation"
	"symbion.dev/harness/internal/core/validation"
)

// TopicCount is the number of observations recorded for one topic.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Report is the structured end-of-run summary.
type Report struct {
	RunID         string                  `json:"run_id"`
	TotalMessages int                     `json:"total_messages"`
	Topics        []TopicCount            `json:"topics"`
	Results       []validation.Result     `json:"results"`
	Diagnostics   []validation.Diagnostic `json:"diagnostics,omitempty"`
}

// Build groups observation counts by topic (ascending topic order) and
// attaches the validation outcomes and diagnostics.
func Build(runID string, obs []observation.Observation, results []validation.Result, diags []validation.Diagnostic) Report {
	counts := make(map[string]int)
	for _, o := range obs {
		counts[o.Topic]++
	}

	topics := make([]TopicCount, 0, len(counts))
	for topic, count := range counts {
		topics = append(topics, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Topic < topics[j].Topic })

	return Report{
		RunID:         runID,
		TotalMessages: len(obs),
		Topics:        topics,
		Results:       results,
		Diagnostics:   diags,
	}
}

// HasGaps reports whether the run surfaced any compliance gap: a schema
// failure, an unobserved contract, or an unknown contract reference.
func (r Report) HasGaps() bool {
	for _, res := range r.Results {
		if !res.Passed() {
			return true
		}
	}
	return len(r.Diagnostics) > 0
}

// Render produces the human-readable report text. Output is deterministic
// for a fixed report.
func (r Report) Render() string {
	var b strings.Builder
	rule := strings.Repeat("=", 50)

	fmt.Fprintf(&b, "%s\nCONTRACT TESTING REPORT  (run %s)\n%s\n", rule, r.RunID, rule)
	fmt.Fprintf(&b, "Total messages collected: %d\n", r.TotalMessages)

	if len(r.Topics) > 0 {
		b.WriteString("\nMessages by topic:\n")
		for _, tc := range r.Topics {
			fmt.Fprintf(&b, "  %s: %d\n", tc.Topic, tc.Count)
		}
	}

	if len(r.Results) > 0 {
		b.WriteString("\nContract compliance:\n")
		for _, res := range r.Results {
			status := "ok"
			if !res.Passed() {
				status = fmt.Sprintf("%d schema failure(s)", len(res.Failures))
			} else if res.MatchedCount == 0 {
				status = "unobserved"
			}
			fmt.Fprintf(&b, "  %s / %s: %d message(s), %s\n", res.Plugin, res.Contract, res.MatchedCount, status)
			for _, f := range res.Failures {
				fmt.Fprintf(&b, "    - %s\n", f.SchemaError)
			}
		}
	}

	if len(r.Diagnostics) > 0 {
		b.WriteString("\nDiagnostics:\n")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "  [%s] %s\n", d.Kind, d.Message)
		}
	}

	return b.String()
}
