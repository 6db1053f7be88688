package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symbion.dev/harness/internal/core/observation"
	"symbion.dev/harness/internal/core/validation"
)

func fixedObservations() []observation.Observation {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []observation.Observation{
		{Topic: "symbion/core/heartbeat", Payload: json.RawMessage(`{"ts": 1}`), ReceivedAt: at},
		{Topic: "symbion/notes/created", Payload: json.RawMessage(`{"id": "n1"}`), ReceivedAt: at},
		{Topic: "symbion/core/heartbeat", Payload: json.RawMessage(`{"ts": "bad"}`), ReceivedAt: at},
	}
}

func fixedResults() []validation.Result {
	return []validation.Result{
		{
			Plugin:       "core-plugin",
			Contract:     "heartbeat",
			Topic:        "symbion/core/heartbeat",
			MatchedCount: 2,
			Failures: []validation.Failure{
				{Payload: json.RawMessage(`{"ts": "bad"}`), SchemaError: "expected number, but got string"},
			},
		},
		{
			Plugin:       "notes",
			Contract:     "notes-created@v1",
			Topic:        "symbion/notes/created",
			MatchedCount: 1,
		},
	}
}

func fixedDiagnostics() []validation.Diagnostic {
	return []validation.Diagnostic{
		{
			Kind:     validation.DiagUnobserved,
			Plugin:   "waker",
			Contract: "wake@v1",
			Message:  "no messages observed on topic symbion/hosts/wake",
		},
	}
}

func TestBuild_GroupsTopicsAscending(t *testing.T) {
	r := Build("fixed", fixedObservations(), fixedResults(), fixedDiagnostics())

	assert.Equal(t, 3, r.TotalMessages)
	require.Len(t, r.Topics, 2)
	assert.Equal(t, TopicCount{Topic: "symbion/core/heartbeat", Count: 2}, r.Topics[0])
	assert.Equal(t, TopicCount{Topic: "symbion/notes/created", Count: 1}, r.Topics[1])
}

func TestBuild_DoesNotMutateInputs(t *testing.T) {
	obs := fixedObservations()
	results := fixedResults()
	diags := fixedDiagnostics()

	_ = Build("fixed", obs, results, diags)

	assert.Equal(t, fixedObservations(), obs)
	assert.Equal(t, fixedResults(), results)
	assert.Equal(t, fixedDiagnostics(), diags)
}

func TestHasGaps(t *testing.T) {
	tests := []struct {
		name    string
		results []validation.Result
		diags   []validation.Diagnostic
		want    bool
	}{
		{
			name:    "CleanRun_NoGaps",
			results: []validation.Result{{Plugin: "p", Contract: "c", MatchedCount: 1}},
			want:    false,
		},
		{
			name:    "SchemaFailure_IsGap",
			results: fixedResults(),
			want:    true,
		},
		{
			name:  "DiagnosticOnly_IsGap",
			diags: fixedDiagnostics(),
			want:  true,
		},
		{
			name: "EmptyRun_NoGaps",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Build("fixed", nil, tt.results, tt.diags)
			assert.Equal(t, tt.want, r.HasGaps())
		})
	}
}

func TestRender_Golden(t *testing.T) {
	r := Build("fixed", fixedObservations(), fixedResults(), fixedDiagnostics())

	g := goldie.New(t)
	g.Assert(t, "report", []byte(r.Render()))
}

func TestRender_Deterministic(t *testing.T) {
	r := Build("fixed", fixedObservations(), fixedResults(), fixedDiagnostics())
	assert.Equal(t, r.Render(), r.Render())
}
