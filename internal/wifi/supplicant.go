package wifi

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/garagedoor/internal/process"
)

// Supplicant defaults.
const (
	DefaultAssociateTimeout = 15 * time.Second

	// associatePoll is how often Connect checks for a completed association.
	associatePoll = 250 * time.Millisecond

	// cliTimeout bounds one wpa_cli invocation.
	cliTimeout = 3 * time.Second

	// ctrlDir is the supplicant control socket directory.
	ctrlDir = "/run/wpa_supplicant"
)

// SupplicantConfig describes the managed wpa_supplicant instance.
type SupplicantConfig struct {
	Interface        string
	SSID             string
	Password         string
	Binary           string
	CLIBinary        string
	ConfigPath       string
	Driver           string
	AssociateTimeout time.Duration
}

// Logger defines the logging interface for this package.
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

// Supplicant is a Radio backed by wpa_supplicant.
type Supplicant struct {
	cfg   SupplicantConfig
	iface *Interface

	// cli runs wpa_cli and returns its combined output.
	cli func(ctx context.Context, args ...string) ([]byte, error)

	logger Logger

	mu  sync.Mutex
	mgr *process.Manager
}

// NewSupplicant creates a supplicant radio for iface.
func NewSupplicant(cfg SupplicantConfig, iface *Interface) *Supplicant {
	if cfg.AssociateTimeout == 0 {
		cfg.AssociateTimeout = DefaultAssociateTimeout
	}
	if cfg.Driver == "" {
		cfg.Driver = "nl80211"
	}
	s := &Supplicant{
		cfg:    cfg,
		iface:  iface,
		logger: noopLogger{},
	}
	s.cli = s.runCLI
	return s
}

// SetLogger sets the logger for the supplicant and its daemon.
func (s *Supplicant) SetLogger(logger Logger) {
	s.logger = logger
}

// IsStarted reports whether the supplicant daemon is under supervision.
// A daemon waiting out its restart delay still counts as started.
func (s *Supplicant) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr != nil && s.mgr.Status() != process.StatusStopped
}

// Start writes the network config and launches wpa_supplicant.
func (s *Supplicant) Start(ctx context.Context) error {
	conf, err := renderConfig(s.cfg.SSID, s.cfg.Password)
	if err != nil {
		return err
	}
	if err := writeConfig(s.cfg.ConfigPath, conf); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mgr != nil && s.mgr.Status() != process.StatusStopped {
		return nil
	}

	mgr := process.NewManager(process.Config{
		Name:   "wpa_supplicant",
		Binary: s.cfg.Binary,
		Args:   supplicantArgs(s.cfg),
		Probe: func(ctx context.Context) error {
			_, err := s.cli(ctx, "-i", s.cfg.Interface, "ping")
			return err
		},
	})
	mgr.SetLogger(s.logger)
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	s.mgr = mgr
	return nil
}

// Stop terminates the supplicant daemon.
func (s *Supplicant) Stop() error {
	s.mu.Lock()
	mgr := s.mgr
	s.mu.Unlock()
	if mgr == nil {
		return nil
	}
	return mgr.Stop()
}

// Connect asks the supplicant to (re)associate and waits up to the
// associate timeout for the link to come up.
func (s *Supplicant) Connect(ctx context.Context) error {
	if !s.IsStarted() {
		return ErrNotStarted
	}

	if out, err := s.cli(ctx, "-i", s.cfg.Interface, "reconnect"); err != nil {
		return fmt.Errorf("%w: wpa_cli reconnect: %w (%s)", ErrAssociationFailed, err, strings.TrimSpace(string(out)))
	}

	deadline := time.NewTimer(s.cfg.AssociateTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(associatePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: no association within %v", ErrAssociationFailed, s.cfg.AssociateTimeout)
		case <-ticker.C:
			if s.IsAssociated() {
				return nil
			}
		}
	}
}

// IsAssociated reports whether the supplicant has completed association.
func (s *Supplicant) IsAssociated() bool {
	if !s.IsStarted() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	out, err := s.cli(ctx, "-i", s.cfg.Interface, "status")
	if err != nil {
		return false
	}
	return parseWPAState(out) == "COMPLETED"
}

// WaitForDisconnect blocks until the interface loses its link.
func (s *Supplicant) WaitForDisconnect(ctx context.Context) error {
	return s.iface.WaitDown(ctx)
}

func (s *Supplicant) runCLI(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()
	return exec.CommandContext(ctx, s.cfg.CLIBinary, append([]string{"-p", ctrlDir}, args...)...).CombinedOutput() //nolint:gosec // binary comes from operator config
}

// supplicantArgs builds the wpa_supplicant command line.
func supplicantArgs(cfg SupplicantConfig) []string {
	return []string{
		"-i", cfg.Interface,
		"-c", cfg.ConfigPath,
		"-D", cfg.Driver,
	}
}

// renderConfig produces a wpa_supplicant config for one network. The SSID
// is hex encoded so any byte sequence is accepted. An empty password
// configures an open network.
func renderConfig(ssid, password string) (string, error) {
	if ssid == "" || len(ssid) > 32 {
		return "", fmt.Errorf("%w: ssid must be 1 to 32 bytes", ErrInvalidCredentials)
	}
	if password != "" {
		if len(password) < 8 || len(password) > 63 {
			return "", fmt.Errorf("%w: passphrase must be 8 to 63 characters", ErrInvalidCredentials)
		}
		for _, r := range password {
			if r < 0x20 || r > 0x7e || r == '"' {
				return "", fmt.Errorf("%w: passphrase must be printable ASCII without quotes", ErrInvalidCredentials)
			}
		}
	}

	var b strings.Builder
	b.WriteString("ctrl_interface=" + ctrlDir + "\n")
	b.WriteString("update_config=0\n")
	b.WriteString("ap_scan=1\n\n")
	b.WriteString("network={\n")
	b.WriteString("\tssid=" + hex.EncodeToString([]byte(ssid)) + "\n")
	b.WriteString("\tscan_ssid=1\n")
	if password == "" {
		b.WriteString("\tkey_mgmt=NONE\n")
	} else {
		b.WriteString("\tpsk=\"" + password + "\"\n")
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// writeConfig writes the config with owner-only permissions.
func writeConfig(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating supplicant config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing supplicant config: %w", err)
	}
	return nil
}

// parseWPAState extracts wpa_state from `wpa_cli status` output.
func parseWPAState(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "wpa_state="); ok {
			return v
		}
	}
	return ""
}
