// Package validation checks observed bus traffic against the contracts each
// plugin declares, producing per-contract results and diagnostics for
// compliance gaps.
package validation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"symbion.dev/harness/internal/core/contract"
	"symbion.dev/harness/internal/core/manifest"
	"symbion.dev/harness/internal/core/observation"
)

// Failure records one payload that did not satisfy its contract's schema.
type Failure struct {
	Payload     json.RawMessage `json:"payload"`
	SchemaError string          `json:"schema_error"`
}

// Result is the outcome of checking one (plugin, contract) pair against the
// observation log. Derived data, never mutated after creation.
type Result struct {
	Plugin       string    `json:"plugin"`
	Contract     string    `json:"contract"`
	Topic        string    `json:"topic"`
	MatchedCount int       `json:"matched_count"`
	Failures     []Failure `json:"failures,omitempty"`
}

// Passed reports whether every matched payload satisfied the schema. A
// result with zero matches also passes; unobserved contracts surface as
// diagnostics instead.
func (r Result) Passed() bool {
	return len(r.Failures) == 0
}

// DiagnosticKind classifies a compliance diagnostic.
type DiagnosticKind string

const (
	// DiagUnknownContract flags a declared contract absent from the store.
	DiagUnknownContract DiagnosticKind = "unknown_contract"
	// DiagUnobserved flags a contract with zero matching observations.
	DiagUnobserved DiagnosticKind = "unobserved"
	// DiagSchemaUnusable flags a contract whose schema failed to compile.
	DiagSchemaUnusable DiagnosticKind = "schema_unusable"
)

// Diagnostic is a non-fatal finding attached to the run report.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Plugin   string         `json:"plugin"`
	Contract string         `json:"contract"`
	Message  string         `json:"message"`
}

// Validator evaluates declared contracts against an observation snapshot.
// Compiled schemas are cached per contract name across plugins.
type Validator struct {
	logger   *slog.Logger
	compiled map[string]*jsonschema.Schema
}

// NewValidator returns a Validator logging diagnostics through logger.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		logger:   logger,
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks, for each manifest in start order and each contract it
// declares, every observation whose topic equals the contract's topic.
// Schema failures are captured per payload and never abort the remaining
// payloads, contracts, or plugins. Counts are deterministic for a fixed
// observation snapshot.
func (v *Validator) Validate(contracts *contract.Store, manifests *manifest.Store, obs []observation.Observation) ([]Result, []Diagnostic) {
	var results []Result
	var diags []Diagnostic

	for _, m := range manifests.StartOrder() {
		for _, name := range m.Contracts {
			c, ok := contracts.Get(name)
			if !ok {
				v.logger.Warn("plugin references unknown contract", "plugin", m.Name, "contract", name)
				diags = append(diags, Diagnostic{
					Kind:     DiagUnknownContract,
					Plugin:   m.Name,
					Contract: name,
					Message:  fmt.Sprintf("plugin %s references unknown contract %s", m.Name, name),
				})
				continue
			}

			result, ds := v.checkContract(m.Name, c, obs)
			results = append(results, result)
			diags = append(diags, ds...)
		}
	}

	return results, diags
}

func (v *Validator) checkContract(plugin string, c contract.Contract, obs []observation.Observation) (Result, []Diagnostic) {
	result := Result{Plugin: plugin, Contract: c.Name, Topic: c.Topic}
	var diags []Diagnostic

	var matched []observation.Observation
	for _, o := range obs {
		if o.Topic == c.Topic {
			matched = append(matched, o)
		}
	}
	result.MatchedCount = len(matched)

	if len(matched) == 0 {
		diags = append(diags, Diagnostic{
			Kind:     DiagUnobserved,
			Plugin:   plugin,
			Contract: c.Name,
			Message:  fmt.Sprintf("no messages observed on topic %s", c.Topic),
		})
		return result, diags
	}

	if !c.HasSchema() {
		return result, diags
	}

	schema, err := v.schemaFor(c)
	if err != nil {
		v.logger.Warn("contract schema failed to compile", "contract", c.Name, "error", err)
		diags = append(diags, Diagnostic{
			Kind:     DiagSchemaUnusable,
			Plugin:   plugin,
			Contract: c.Name,
			Message:  fmt.Sprintf("schema failed to compile: %v", err),
		})
		return result, diags
	}

	for _, o := range matched {
		var payload any
		if err := json.Unmarshal(o.Payload, &payload); err != nil {
			// The listener only records parseable JSON, but the result
			// must not depend on that.
			result.Failures = append(result.Failures, Failure{
				Payload:     o.Payload,
				SchemaError: fmt.Sprintf("payload is not valid JSON: %v", err),
			})
			continue
		}
		if err := schema.Validate(payload); err != nil {
			result.Failures = append(result.Failures, Failure{
				Payload:     o.Payload,
				SchemaError: err.Error(),
			})
		}
	}

	return result, diags
}

// schemaFor compiles and caches the contract's schema.
func (v *Validator) schemaFor(c contract.Contract) (*jsonschema.Schema, error) {
	if s, ok := v.compiled[c.Name]; ok {
		return s, nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("harness:///contracts/%s.schema.json", c.Name)
	if err := compiler.AddResource(url, strings.NewReader(string(c.Schema))); err != nil {
		return nil, fmt.Errorf("failed to load schema for %s: %w", c.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", c.Name, err)
	}
	v.compiled[c.Name] = schema
	return schema, nil
}
