// Package supervisor starts and stops the system under test: the central
// coordinator process plus a set of plugin processes. It is the sole owner
// of every child process handle and guarantees termination at teardown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"symbion.dev/harness/internal/core/manifest"
)

// ErrMissingBinary indicates a plugin manifest declares no binary path.
// Non-fatal: the plugin is skipped.
var ErrMissingBinary = errors.New("plugin manifest has no binary path")

// ErrBuildFailed indicates the plugin's build step exited nonzero.
// Non-fatal: the plugin is skipped.
var ErrBuildFailed = errors.New("plugin build failed")

// StartError wraps any failure to launch a process.
type StartError struct {
	Label string
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Label, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Supervisor launches child processes with merged environment and tears
// them down in reverse start order: plugins first, coordinator last, so
// in-flight plugin shutdown traffic can still reach the coordinator.
type Supervisor struct {
	logger         *slog.Logger
	coordinatorCmd []string
	coordinatorDir string
	buildCmd       []string
	startupGrace   time.Duration

	mu    sync.Mutex
	procs []*ManagedProcess
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithCoordinatorCommand sets the command line and working directory used
// to launch the coordinator.
func WithCoordinatorCommand(args []string, dir string) Option {
	return func(s *Supervisor) {
		s.coordinatorCmd = args
		s.coordinatorDir = dir
	}
}

// WithBuildCommand sets the command run synchronously to build a plugin
// whose binary does not exist yet. Empty means no build step.
func WithBuildCommand(args []string) Option {
	return func(s *Supervisor) { s.buildCmd = args }
}

// WithStartupGrace sets the fixed wait after launching the coordinator.
func WithStartupGrace(d time.Duration) Option {
	return func(s *Supervisor) { s.startupGrace = d }
}

// New returns a Supervisor with no managed processes.
func New(logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:       logger,
		startupGrace: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartCoordinator launches the coordinator with env merged over the
// inherited environment, then waits the fixed startup grace period. This is
// not a readiness probe; a coordinator that dies within the grace period is
// reported as a StartError. Any StartError here is fatal to the run.
func (s *Supervisor) StartCoordinator(ctx context.Context, env map[string]string) (*ManagedProcess, error) {
	if len(s.coordinatorCmd) == 0 {
		return nil, &StartError{Label: "coordinator", Err: errors.New("no coordinator command configured")}
	}

	cmd := exec.Command(s.coordinatorCmd[0], s.coordinatorCmd[1:]...)
	cmd.Dir = s.coordinatorDir
	cmd.Env = mergeEnv(env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Label: "coordinator", Err: err}
	}

	proc := newManagedProcess("coordinator", RoleCoordinator, cmd)
	s.retain(proc)
	s.logger.Info("coordinator started", "pid", proc.PID(), "grace", s.startupGrace)

	select {
	case <-time.After(s.startupGrace):
	case <-proc.done:
		return nil, &StartError{
			Label: "coordinator",
			Err:   fmt.Errorf("exited during startup grace period with code %d", proc.ExitCode()),
		}
	case <-ctx.Done():
		return nil, &StartError{Label: "coordinator", Err: ctx.Err()}
	}

	return proc, nil
}

// StartPlugin launches one plugin process from its manifest. On a missing
// binary path it fails with ErrMissingBinary; on a failed build step with
// ErrBuildFailed. Both are non-fatal to the run, the plugin is skipped.
// Successfully spawned plugins are retained for teardown regardless of
// later crashes.
func (s *Supervisor) StartPlugin(ctx context.Context, m manifest.Manifest) (*ManagedProcess, error) {
	if m.Binary == "" {
		return nil, &StartError{Label: m.Name, Err: ErrMissingBinary}
	}

	if _, err := os.Stat(m.Binary); err != nil && len(s.buildCmd) > 0 {
		if err := s.buildPlugin(ctx, m); err != nil {
			return nil, &StartError{Label: m.Name, Err: err}
		}
	}

	cmd := exec.Command(m.Binary)
	cmd.Env = mergeEnv(m.Env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Label: m.Name, Err: err}
	}

	proc := newManagedProcess(m.Name, RolePlugin, cmd)
	s.retain(proc)
	s.logger.Info("plugin started", "plugin", m.Name, "pid", proc.PID())
	return proc, nil
}

// buildPlugin runs the configured build command in the plugin's source
// directory, two levels above the binary path, and blocks until it ends.
func (s *Supervisor) buildPlugin(ctx context.Context, m manifest.Manifest) error {
	dir := filepath.Dir(filepath.Dir(m.Binary))
	s.logger.Info("building plugin", "plugin", m.Name, "dir", dir)

	build := exec.CommandContext(ctx, s.buildCmd[0], s.buildCmd[1:]...)
	build.Dir = dir
	if out, err := build.CombinedOutput(); err != nil {
		s.logger.Warn("plugin build failed", "plugin", m.Name, "error", err, "output", string(out))
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	return nil
}

// TeardownAll stops every retained process in reverse start order: graceful
// terminate, wait up to gracePeriod, force-kill on timeout. Errors during
// teardown are logged and swallowed so cleanup always completes; calling it
// again produces no additional side effects.
func (s *Supervisor) TeardownAll(gracePeriod time.Duration) {
	s.mu.Lock()
	procs := make([]*ManagedProcess, len(s.procs))
	copy(procs, s.procs)
	s.mu.Unlock()

	for i := len(procs) - 1; i >= 0; i-- {
		s.teardownOne(procs[i], gracePeriod)
	}
}

func (s *Supervisor) teardownOne(p *ManagedProcess, gracePeriod time.Duration) {
	if p.resolved() {
		return
	}

	if !p.IsRunning() {
		p.setDisposition(DispositionExited)
		s.logger.Info("process already exited", "label", p.Label, "exit_code", p.ExitCode())
		return
	}

	if err := p.terminate(); err != nil {
		s.logger.Warn("terminate failed, killing", "label", p.Label, "error", err)
		if err := p.kill(); err != nil {
			s.logger.Warn("kill failed", "label", p.Label, "error", err)
		}
		p.setDisposition(DispositionKilled)
		return
	}

	select {
	case <-p.done:
		p.setDisposition(DispositionTerminated)
		s.logger.Info("process terminated", "label", p.Label)
	case <-time.After(gracePeriod):
		if err := p.kill(); err != nil {
			s.logger.Warn("kill failed", "label", p.Label, "error", err)
		}
		p.setDisposition(DispositionKilled)
		s.logger.Info("process killed after grace period", "label", p.Label)
	}
}

// Processes returns the retained processes in start order.
func (s *Supervisor) Processes() []*ManagedProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ManagedProcess, len(s.procs))
	copy(out, s.procs)
	return out
}

func (s *Supervisor) retain(p *ManagedProcess) {
	s.mu.Lock()
	s.procs = append(s.procs, p)
	s.mu.Unlock()
}

// mergeEnv merges overrides over the inherited process environment.
func mergeEnv(overrides map[string]string) []string {
	env := os.Environ()
	for key, value := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	return env
}
