package wifi

import (
	"context"
	"syscall"

	"github.com/nerrad567/garagedoor/internal/process"
)

// DHCP runs the DHCP client daemon for one interface.
type DHCP struct {
	mgr *process.Manager
}

// NewDHCP creates a DHCP task running binary in the foreground on iface.
// extra is appended to the default arguments.
func NewDHCP(binary, iface string, extra []string) *DHCP {
	return &DHCP{
		mgr: process.NewManager(process.Config{
			Name:   "dhcp",
			Binary: binary,
			Args:   dhcpArgs(iface, extra),
		}),
	}
}

// SetLogger sets the logger for the daemon.
func (d *DHCP) SetLogger(logger Logger) {
	d.mgr.SetLogger(logger)
}

// Run keeps the DHCP client running until ctx is cancelled.
func (d *DHCP) Run(ctx context.Context) error {
	if err := d.mgr.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	_ = d.mgr.Stop()
	return ctx.Err()
}

// Renew asks the client for a fresh lease, used after the link returns.
func (d *DHCP) Renew() error {
	return d.mgr.Signal(syscall.SIGUSR1)
}

// Stats returns the daemon's process statistics.
func (d *DHCP) Stats() process.Stats {
	return d.mgr.Stats()
}

// dhcpArgs keeps udhcpc in the foreground on iface.
func dhcpArgs(iface string, extra []string) []string {
	args := []string{"-f", "-i", iface}
	return append(args, extra...)
}
