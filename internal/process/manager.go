package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Defaults applied by NewManager to zero Config fields.
const (
	DefaultRestartDelay    = 5 * time.Second
	DefaultGracefulTimeout = 5 * time.Second
	DefaultProbeInterval   = 30 * time.Second

	// probeFailureLimit is the number of consecutive probe failures that
	// get the process killed.
	probeFailureLimit = 3

	// maxLineLength bounds one captured output line.
	maxLineLength = 4096
)

// Config holds configuration for a managed subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	Env []string

	// NoRestart disables restarting after the process exits.
	NoRestart bool

	// RestartDelay is the fixed wait before each restart.
	RestartDelay time.Duration

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// Probe, when set, is run every ProbeInterval while the process is up.
	// Repeated failures kill the process so it is restarted.
	Probe         func(ctx context.Context) error
	ProbeInterval time.Duration

	// OnExit is called after every exit with the wait error (nil on a
	// clean exit or a requested stop).
	OnExit func(err error)
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager runs one subprocess and keeps it running.
type Manager struct {
	config Config
	logger Logger

	mu        sync.RWMutex
	cmd       *exec.Cmd
	status    Status
	restarts  int
	lastError error
	startTime time.Time
	stopping  bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewManager creates a stopped manager.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Name returns the configured process name.
func (m *Manager) Name() string {
	return m.config.Name
}

// Start launches the process and supervises it until Stop or ctx ends.
// The first launch is synchronous; its failure is returned.
func (m *Manager) Start(ctx context.Context) error {
	if m.config.Binary == "" {
		return fmt.Errorf("%w: %s", ErrNoBinary, m.config.Name)
	}

	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.status = StatusStarting
	m.stopping = false
	m.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	cmd, err := m.launch(runCtx)
	if err != nil {
		cancel()
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		m.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.supervise(runCtx, cmd, done)
	return nil
}

// launch starts one instance of the process.
func (m *Manager) launch(ctx context.Context) (*exec.Cmd, error) {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.Command(m.config.Binary, m.config.Args...) //nolint:gosec // binary comes from operator config

	// Own process group so Stop reaches any children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	go m.capture("stdout", stdout)
	go m.capture("stderr", stderr)

	m.logger.Info("process started", "name", m.config.Name, "pid", cmd.Process.Pid)
	return cmd, nil
}

// capture logs the stream one line at a time.
func (m *Manager) capture(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), maxLineLength)
	for scanner.Scan() {
		m.logger.Debug("process output",
			"name", m.config.Name,
			"stream", stream,
			"line", scanner.Text(),
		)
	}
}

// supervise waits for each instance to exit and restarts it.
func (m *Manager) supervise(ctx context.Context, cmd *exec.Cmd, done chan struct{}) {
	defer close(done)

	for {
		err := m.wait(ctx, cmd)

		m.mu.Lock()
		stopping := m.stopping
		m.mu.Unlock()

		if stopping || ctx.Err() != nil {
			m.markExited(nil, false)
			m.logger.Info("process stopped", "name", m.config.Name)
			m.notifyExit(nil)
			return
		}

		m.logger.Warn("process exited", "name", m.config.Name, "error", err)
		m.markExited(err, !m.config.NoRestart)
		m.notifyExit(err)

		if m.config.NoRestart {
			return
		}

		m.mu.Lock()
		if m.config.MaxRestartAttempts > 0 && m.restarts >= m.config.MaxRestartAttempts {
			m.mu.Unlock()
			m.logger.Error("max restart attempts reached", "name", m.config.Name, "attempts", m.config.MaxRestartAttempts)
			return
		}
		m.restarts++
		attempt := m.restarts
		m.mu.Unlock()

		m.logger.Info("restarting process",
			"name", m.config.Name,
			"attempt", attempt,
			"delay", m.config.RestartDelay,
		)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.config.RestartDelay):
			}

			next, err := m.launch(ctx)
			if err == nil {
				cmd = next
				break
			}
			m.logger.Error("failed to restart process", "name", m.config.Name, "error", err)
			m.markExited(err, true)
		}
	}
}

// wait blocks until cmd exits, running the probe meanwhile. A process
// that fails the probe probeFailureLimit times in a row is killed.
func (m *Manager) wait(ctx context.Context, cmd *exec.Cmd) error {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var probe <-chan time.Time
	if m.config.Probe != nil {
		ticker := time.NewTicker(m.config.ProbeInterval)
		defer ticker.Stop()
		probe = ticker.C
	}

	failures := 0
	for {
		select {
		case err := <-exited:
			return err

		case <-ctx.Done():
			// Stop or shutdown: make sure the group is gone before returning.
			m.terminate(cmd, exited)
			return ctx.Err()

		case <-probe:
			probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeInterval)
			err := m.config.Probe(probeCtx)
			cancel()

			if err == nil {
				failures = 0
				continue
			}
			failures++
			m.logger.Warn("process probe failed",
				"name", m.config.Name,
				"error", err,
				"consecutive_failures", failures,
			)
			if failures >= probeFailureLimit {
				m.logger.Error("process unresponsive, killing", "name", m.config.Name)
				_ = signalGroup(cmd, syscall.SIGKILL)
				return fmt.Errorf("killed after %d failed probes: %w", failures, <-exited)
			}
		}
	}
}

// terminate sends SIGTERM, then SIGKILL after the graceful timeout.
func (m *Manager) terminate(cmd *exec.Cmd, exited <-chan error) {
	if err := signalGroup(cmd, syscall.SIGTERM); err != nil {
		m.logger.Warn("failed to send SIGTERM", "name", m.config.Name, "error", err)
	}

	select {
	case <-exited:
		return
	case <-time.After(m.config.GracefulTimeout):
	}

	m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
		"name", m.config.Name,
		"timeout", m.config.GracefulTimeout,
	)
	_ = signalGroup(cmd, syscall.SIGKILL)
	<-exited
}

// signalGroup signals the process group led by cmd. A group that has
// already exited is not an error.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

// Stop terminates the process and waits for supervision to end.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	m.logger.Info("stopping process", "name", m.config.Name)
	cancel()
	<-done
	return nil
}

// Signal sends sig to the running process (not its group).
func (m *Manager) Signal(sig os.Signal) error {
	m.mu.RLock()
	cmd, status := m.cmd, m.status
	m.mu.RUnlock()

	if status != StatusRunning || cmd == nil || cmd.Process == nil {
		return fmt.Errorf("%w: %s", ErrNotRunning, m.config.Name)
	}
	return cmd.Process.Signal(sig)
}

// markExited records an exit. A process awaiting restart is Failed even
// after a clean exit, so it never reads as Stopped while supervised.
func (m *Manager) markExited(err error, restarting bool) {
	m.mu.Lock()
	if err != nil {
		m.lastError = err
	}
	if err != nil || restarting {
		m.status = StatusFailed
	} else {
		m.status = StatusStopped
	}
	m.mu.Unlock()
}

func (m *Manager) notifyExit(err error) {
	if m.config.OnExit != nil {
		m.config.OnExit(err)
	}
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the last error that caused the process to exit.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// RestartCount returns the number of times the process has been restarted.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restarts
}

// PID returns the process ID, or 0 if not running.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}

// Stats is a snapshot of the managed process.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RestartCount: m.restarts,
	}
	if m.status == StatusRunning {
		if m.cmd != nil && m.cmd.Process != nil {
			stats.PID = m.cmd.Process.Pid
		}
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}
