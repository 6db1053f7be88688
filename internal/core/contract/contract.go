package contract

import (
	"encoding/json"
	"strings"
)

// Kind categorizes the semantic role of a contract's topic.
type Kind string

const (
	KindCommand Kind = "command"
	KindEvent   Kind = "event"
)

// Contract binds a bus topic to the JSON Schema its payloads must satisfy.
// Contracts are immutable once loaded; identity is the Name field, which may
// carry a version suffix ("heartbeat@v2").
type Contract struct {
	Name    string          `json:"name"`
	Version string          `json:"version,omitempty"`
	Topic   string          `json:"topic"`
	Kind    Kind            `json:"type"`
	Schema  json.RawMessage `json:"schema,omitempty"`
}

// HasSchema reports whether the contract declares a payload schema.
// Contracts without one only assert topic presence.
func (c Contract) HasSchema() bool {
	return len(c.Schema) > 0 && string(c.Schema) != "null"
}

// BaseName returns the contract name without its "@vN" version suffix.
func (c Contract) BaseName() string {
	if i := strings.LastIndex(c.Name, "@"); i > 0 {
		return c.Name[:i]
	}
	return c.Name
}
