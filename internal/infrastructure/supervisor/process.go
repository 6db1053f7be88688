package supervisor

import (
	"os/exec"
	"sync"
	"syscall"
)

// Role distinguishes the coordinator from plugin processes.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RolePlugin      Role = "plugin"
)

// Disposition is the terminal state recorded for a managed process at
// teardown. Exactly one disposition is recorded per started process.
type Disposition string

const (
	// DispositionRunning means teardown has not resolved the process yet.
	DispositionRunning Disposition = "running"
	// DispositionExited means the process ended on its own.
	DispositionExited Disposition = "exited"
	// DispositionTerminated means the process stopped after SIGTERM.
	DispositionTerminated Disposition = "terminated"
	// DispositionKilled means the process ignored SIGTERM and was killed.
	DispositionKilled Disposition = "killed"
)

// ManagedProcess is a child process owned by the Supervisor. No other
// component signals or waits on the underlying handle.
type ManagedProcess struct {
	Label string
	Role  Role

	cmd  *exec.Cmd
	done chan struct{}

	mu          sync.Mutex
	running     bool
	exitCode    int
	waitErr     error
	disposition Disposition
}

func newManagedProcess(label string, role Role, cmd *exec.Cmd) *ManagedProcess {
	p := &ManagedProcess{
		Label:       label,
		Role:        role,
		cmd:         cmd,
		done:        make(chan struct{}),
		running:     true,
		exitCode:    -1,
		disposition: DispositionRunning,
	}
	go p.monitor()
	return p
}

// monitor reaps the process and records its exit state.
func (p *ManagedProcess) monitor() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.running = false
	p.waitErr = err
	if exitErr, ok := err.(*exec.ExitError); ok {
		p.exitCode = exitErr.ExitCode()
	} else if err == nil {
		p.exitCode = 0
	}
	p.mu.Unlock()

	close(p.done)
}

// PID returns the operating system process ID.
func (p *ManagedProcess) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// IsRunning reports whether the process has not yet exited.
func (p *ManagedProcess) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ExitCode returns the process exit code, or -1 while running.
func (p *ManagedProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Disposition returns the terminal disposition recorded at teardown.
func (p *ManagedProcess) Disposition() Disposition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disposition
}

func (p *ManagedProcess) setDisposition(d Disposition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposition == DispositionRunning {
		p.disposition = d
	}
}

func (p *ManagedProcess) resolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disposition != DispositionRunning
}

func (p *ManagedProcess) terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *ManagedProcess) kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
