package validation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symbion.dev/harness/internal/core/contract"
	"symbion.dev/harness/internal/core/manifest"
	"symbion.dev/harness/internal/core/observation"
	"symbion.dev/harness/internal/logging"
)

func heartbeatContract() contract.Contract {
	return contract.Contract{
		Name:  "heartbeat",
		Topic: "symbion/core/heartbeat",
		Kind:  contract.KindEvent,
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["ts"],
			"properties": {"ts": {"type": "number"}}
		}`),
	}
}

func heartbeatManifest() manifest.Manifest {
	return manifest.Manifest{Name: "core-plugin", Contracts: []string{"heartbeat"}}
}

func observed(topic, payload string) observation.Observation {
	return observation.Observation{
		Topic:      topic,
		Payload:    json.RawMessage(payload),
		ReceivedAt: time.Now(),
	}
}

func TestValidate_ValidPayloadPasses(t *testing.T) {
	contracts := contract.NewStore(heartbeatContract())
	manifests := manifest.NewStore(heartbeatManifest())
	obs := []observation.Observation{observed("symbion/core/heartbeat", `{"ts": 123}`)}

	results, diags := NewValidator(logging.Discard()).Validate(contracts, manifests, obs)

	require.Len(t, results, 1)
	assert.Equal(t, "core-plugin", results[0].Plugin)
	assert.Equal(t, "heartbeat", results[0].Contract)
	assert.Equal(t, 1, results[0].MatchedCount)
	assert.Empty(t, results[0].Failures)
	assert.True(t, results[0].Passed())
	assert.Empty(t, diags)
}

func TestValidate_TypeMismatchIsCaptured(t *testing.T) {
	contracts := contract.NewStore(heartbeatContract())
	manifests := manifest.NewStore(heartbeatManifest())
	obs := []observation.Observation{observed("symbion/core/heartbeat", `{"ts": "not-a-number"}`)}

	results, _ := NewValidator(logging.Discard()).Validate(contracts, manifests, obs)

	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].MatchedCount)
	require.Len(t, results[0].Failures, 1)
	assert.Contains(t, results[0].Failures[0].SchemaError, "ts")
	assert.False(t, results[0].Passed())
}

func TestValidate_UnobservedContractIsDiagnosed(t *testing.T) {
	contracts := contract.NewStore(heartbeatContract())
	manifests := manifest.NewStore(heartbeatManifest())

	results, diags := NewValidator(logging.Discard()).Validate(contracts, manifests, nil)

	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].MatchedCount)
	assert.Empty(t, results[0].Failures)

	require.Len(t, diags, 1)
	assert.Equal(t, DiagUnobserved, diags[0].Kind)
	assert.Equal(t, "heartbeat", diags[0].Contract)
}

func TestValidate_UnknownContractReference(t *testing.T) {
	contracts := contract.NewStore() // empty: nothing resolves
	manifests := manifest.NewStore(manifest.Manifest{
		Name:      "wanderer",
		Contracts: []string{"missing-a", "missing-b"},
	})

	results, diags := NewValidator(logging.Discard()).Validate(contracts, manifests, nil)

	assert.Empty(t, results, "unresolved references must not produce results")
	require.Len(t, diags, 2, "exactly one diagnostic per missing reference")
	for _, d := range diags {
		assert.Equal(t, DiagUnknownContract, d.Kind)
		assert.Equal(t, "wanderer", d.Plugin)
	}
}

func TestValidate_SchemalessContractOnlyCounts(t *testing.T) {
	contracts := contract.NewStore(contract.Contract{
		Name:  "wake",
		Topic: "symbion/hosts/wake",
		Kind:  contract.KindCommand,
	})
	manifests := manifest.NewStore(manifest.Manifest{Name: "waker", Contracts: []string{"wake"}})
	obs := []observation.Observation{
		observed("symbion/hosts/wake", `{"mac": "aa:bb"}`),
		observed("symbion/hosts/wake", `"any shape goes"`),
	}

	results, diags := NewValidator(logging.Discard()).Validate(contracts, manifests, obs)

	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].MatchedCount)
	assert.Empty(t, results[0].Failures)
	assert.Empty(t, diags)
}

func TestValidate_TopicMatchIsExact(t *testing.T) {
	contracts := contract.NewStore(heartbeatContract())
	manifests := manifest.NewStore(heartbeatManifest())
	obs := []observation.Observation{
		observed("symbion/core/heartbeat", `{"ts": 1}`),
		observed("symbion/core/heartbeat/extra", `{"ts": 2}`),
		observed("symbion/other/heartbeat", `{"ts": 3}`),
	}

	results, _ := NewValidator(logging.Discard()).Validate(contracts, manifests, obs)

	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].MatchedCount)
}

func TestValidate_BadSchemaOneFailurePerPayloadContinues(t *testing.T) {
	contracts := contract.NewStore(
		heartbeatContract(),
		contract.Contract{
			Name:   "broken",
			Topic:  "symbion/core/broken",
			Kind:   contract.KindEvent,
			Schema: json.RawMessage(`{"type": ["not", 42]}`),
		},
	)
	manifests := manifest.NewStore(manifest.Manifest{
		Name:      "core-plugin",
		Contracts: []string{"broken", "heartbeat"},
	})
	obs := []observation.Observation{
		observed("symbion/core/broken", `{}`),
		observed("symbion/core/heartbeat", `{"ts": 9}`),
	}

	results, diags := NewValidator(logging.Discard()).Validate(contracts, manifests, obs)

	// The unusable schema surfaces as a diagnostic and must not stop the
	// remaining contracts from being checked.
	require.Len(t, results, 2)
	var sawUnusable bool
	for _, d := range diags {
		if d.Kind == DiagSchemaUnusable {
			sawUnusable = true
		}
	}
	assert.True(t, sawUnusable)

	for _, r := range results {
		if r.Contract == "heartbeat" {
			assert.Equal(t, 1, r.MatchedCount)
			assert.Empty(t, r.Failures)
		}
	}
}

func TestValidate_CountsAreDeterministic(t *testing.T) {
	contracts := contract.NewStore(heartbeatContract())
	manifests := manifest.NewStore(heartbeatManifest())
	obs := []observation.Observation{
		observed("symbion/core/heartbeat", `{"ts": 1}`),
		observed("symbion/core/heartbeat", `{"ts": "bad"}`),
		observed("symbion/core/heartbeat", `{"ts": 3}`),
	}

	v := NewValidator(logging.Discard())
	first, _ := v.Validate(contracts, manifests, obs)
	second, _ := v.Validate(contracts, manifests, obs)

	assert.Equal(t, first, second)
}
