// Package wifi realises the connectivity collaborators on Linux.
//
//   - Supplicant is a Radio backed by a managed wpa_supplicant daemon,
//     driven with wpa_cli.
//   - Static is a Radio for interfaces configured outside the controller
//     (wired, or WiFi set up by the OS).
//   - Interface is a Stack reading carrier and IPv4 address over netlink.
//   - DHCP runs the DHCP client daemon as the network stack task.
//
// All daemons run under process.Manager, so a crashed supplicant or DHCP
// client is restarted after the usual fixed delay.
package wifi
