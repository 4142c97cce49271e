package process

import (
	"context"
	"errors"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

// recordingLogger keeps debug lines for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Debug(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "line" {
			if s, ok := args[i+1].(string); ok {
				l.lines = append(l.lines, s)
			}
		}
	}
}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) has(line string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, got := range l.lines {
		if got == line {
			return true
		}
	}
	return false
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{Name: "test-proc", Binary: "/bin/true"})

	if m.config.RestartDelay != DefaultRestartDelay {
		t.Errorf("RestartDelay = %v, want %v", m.config.RestartDelay, DefaultRestartDelay)
	}
	if m.config.GracefulTimeout != DefaultGracefulTimeout {
		t.Errorf("GracefulTimeout = %v, want %v", m.config.GracefulTimeout, DefaultGracefulTimeout)
	}
	if m.config.ProbeInterval != DefaultProbeInterval {
		t.Errorf("ProbeInterval = %v, want %v", m.config.ProbeInterval, DefaultProbeInterval)
	}
	if m.config.MaxRestartAttempts != 0 {
		t.Errorf("MaxRestartAttempts = %d, want 0 (unlimited)", m.config.MaxRestartAttempts)
	}
	if m.Name() != "test-proc" {
		t.Errorf("Name() = %q, want %q", m.Name(), "test-proc")
	}
}

func TestManager_InitialState(t *testing.T) {
	m := NewManager(Config{Name: "idle", Binary: "/bin/true"})

	if m.Status() != StatusStopped {
		t.Errorf("Status() = %v, want %v", m.Status(), StatusStopped)
	}
	if m.IsRunning() || m.PID() != 0 || m.RestartCount() != 0 || m.LastError() != nil {
		t.Error("new manager reports activity")
	}
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() on idle manager error = %v", err)
	}
	if err := m.Signal(syscall.SIGHUP); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Signal() error = %v, want ErrNotRunning", err)
	}
}

func TestManager_StartWithoutBinary(t *testing.T) {
	m := NewManager(Config{Name: "empty"})
	if err := m.Start(context.Background()); !errors.Is(err, ErrNoBinary) {
		t.Errorf("Start() error = %v, want ErrNoBinary", err)
	}
}

func TestManager_StartWithInvalidBinary(t *testing.T) {
	m := NewManager(Config{Name: "missing", Binary: "/nonexistent/daemon"})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want failure")
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %v, want %v", m.Status(), StatusFailed)
	}
	if m.LastError() == nil {
		t.Error("LastError() = nil after failed start")
	}
}

func TestManager_StartAndStop(t *testing.T) {
	m := NewManager(Config{
		Name:            "sleeper",
		Binary:          "/bin/sleep",
		Args:            []string{"30"},
		GracefulTimeout: time.Second,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.IsRunning() || m.PID() == 0 {
		t.Fatalf("after Start: running=%v pid=%d", m.IsRunning(), m.PID())
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	stats := m.Stats()
	if stats.Name != "sleeper" || stats.Status != StatusRunning || stats.PID == 0 {
		t.Errorf("Stats() = %+v", stats)
	}

	start := time.Now()
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("Stop() took %v; SIGTERM should end sleep promptly", elapsed)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() after Stop = %v, want %v", m.Status(), StatusStopped)
	}
	if m.RestartCount() != 0 {
		t.Errorf("RestartCount() = %d after requested stop, want 0", m.RestartCount())
	}
}

func TestManager_StopOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(Config{Name: "sleeper", Binary: "/bin/sleep", Args: []string{"30"}})

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	eventually(t, "stopped status", func() bool { return m.Status() == StatusStopped })
}

func TestManager_RestartsWithFixedDelay(t *testing.T) {
	var mu sync.Mutex
	var exits []time.Time

	m := NewManager(Config{
		Name:               "crasher",
		Binary:             "/bin/sh",
		Args:               []string{"-c", "exit 3"},
		RestartDelay:       40 * time.Millisecond,
		MaxRestartAttempts: 2,
		OnExit: func(error) {
			mu.Lock()
			exits = append(exits, time.Now())
			mu.Unlock()
		},
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop() //nolint:errcheck // best effort

	eventually(t, "three exits", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(exits) == 3
	})

	if m.RestartCount() != 2 {
		t.Errorf("RestartCount() = %d, want 2", m.RestartCount())
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %v, want %v", m.Status(), StatusFailed)
	}
	if err := m.LastError(); err == nil || !strings.Contains(err.Error(), "exit status 3") {
		t.Errorf("LastError() = %v, want exit status 3", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(exits); i++ {
		if gap := exits[i].Sub(exits[i-1]); gap < 40*time.Millisecond {
			t.Errorf("restart %d after %v, want >= 40ms", i, gap)
		}
	}
}

func TestManager_NoRestart(t *testing.T) {
	exited := make(chan error, 2)
	m := NewManager(Config{
		Name:      "oneshot",
		Binary:    "/bin/true",
		NoRestart: true,
		OnExit:    func(err error) { exited <- err },
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case err := <-exited:
		if err != nil {
			t.Errorf("OnExit error = %v, want nil for clean exit", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnExit not called")
	}

	time.Sleep(50 * time.Millisecond)
	if m.RestartCount() != 0 {
		t.Errorf("RestartCount() = %d, want 0", m.RestartCount())
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %v, want %v", m.Status(), StatusStopped)
	}
}

func TestManager_ProbeKillsHungProcess(t *testing.T) {
	m := NewManager(Config{
		Name:          "hung",
		Binary:        "/bin/sleep",
		Args:          []string{"30"},
		NoRestart:     true,
		ProbeInterval: 10 * time.Millisecond,
		Probe: func(context.Context) error {
			return errors.New("no reply")
		},
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	eventually(t, "probe kill", func() bool { return m.Status() == StatusFailed })
	if err := m.LastError(); err == nil || !strings.Contains(err.Error(), "failed probes") {
		t.Errorf("LastError() = %v, want probe failure", err)
	}
}

func TestManager_CapturesOutput(t *testing.T) {
	logger := &recordingLogger{}
	m := NewManager(Config{
		Name:         "talker",
		Binary:       "/bin/sh",
		Args:         []string{"-c", "echo first; echo second >&2; sleep 30"},
		RestartDelay: time.Hour,
	})
	m.SetLogger(logger)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop() //nolint:errcheck // best effort

	eventually(t, "captured output", func() bool {
		return logger.has("first") && logger.has("second")
	})
}

func TestManager_Signal(t *testing.T) {
	m := NewManager(Config{
		Name:      "sleeper",
		Binary:    "/bin/sleep",
		Args:      []string{"30"},
		NoRestart: true,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal() error = %v", err)
	}
	eventually(t, "exit after signal", func() bool { return !m.IsRunning() })
}
