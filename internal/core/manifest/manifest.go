// Package manifest loads plugin manifests: the metadata describing how to
// launch and configure one plugin process, including the contracts it claims
// to honor.
package manifest

import "time"

// Manifest describes one plugin process. Identity is the Name field.
type Manifest struct {
	Name                   string            `json:"name"`
	Version                string            `json:"version"`
	Binary                 string            `json:"binary"`
	Description            string            `json:"description,omitempty"`
	Contracts              []string          `json:"contracts"`
	AutoStart              bool              `json:"auto_start"`
	RestartOnFailure       bool              `json:"restart_on_failure"`
	StartupTimeoutSeconds  int               `json:"startup_timeout_seconds"`
	ShutdownTimeoutSeconds int               `json:"shutdown_timeout_seconds"`
	DependsOn              []string          `json:"depends_on"`
	StartPriority          int               `json:"start_priority"`
	Env                    map[string]string `json:"env"`
}

// StartupTimeout returns the declared startup timeout, or a 10s default.
func (m Manifest) StartupTimeout() time.Duration {
	if m.StartupTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.StartupTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the declared shutdown timeout, or a 5s default.
func (m Manifest) ShutdownTimeout() time.Duration {
	if m.ShutdownTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(m.ShutdownTimeoutSeconds) * time.Second
}
