// Package process supervises the long-running helper daemons the
// controller depends on, such as wpa_supplicant and the DHCP client.
//
// Features:
//   - Start/stop with SIGTERM, then SIGKILL, sent to the process group
//   - Restart after a fixed delay, without limit unless configured
//   - Optional watchdog probe that kills a hung daemon
//   - Line-by-line capture of stdout/stderr into the debug log
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:   "udhcpc",
//	    Binary: "/sbin/udhcpc",
//	    Args:   []string{"-f", "-i", "wlan0"},
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
