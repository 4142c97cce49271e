package wifi

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/vishvananda/netlink"
)

// downPoll backs up the netlink subscription while waiting for link loss.
const downPoll = time.Second

// Interface reads link state and addresses of one network interface.
type Interface struct {
	name string

	linkByName func(name string) (netlink.Link, error)
	addrList   func(link netlink.Link, family int) ([]netlink.Addr, error)
	subscribe  func(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error
}

// NewInterface returns a netlink view of the named interface.
func NewInterface(name string) *Interface {
	return &Interface{
		name:       name,
		linkByName: netlink.LinkByName,
		addrList:   netlink.AddrList,
		subscribe:  netlink.LinkSubscribe,
	}
}

// Name returns the interface name.
func (i *Interface) Name() string {
	return i.name
}

func (i *Interface) link() (netlink.Link, error) {
	link, err := i.linkByName(i.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInterfaceNotFound, i.name, err)
	}
	return link, nil
}

// LinkUp reports whether the interface is operationally up.
func (i *Interface) LinkUp() bool {
	link, err := i.link()
	if err != nil {
		return false
	}
	return attrsUp(link.Attrs())
}

// attrsUp treats "unknown" operstate with a running carrier as up; some
// drivers never report a proper operstate.
func attrsUp(attrs *netlink.LinkAttrs) bool {
	switch attrs.OperState {
	case netlink.OperUp:
		return true
	case netlink.OperUnknown:
		return attrs.Flags&net.FlagUp != 0 && attrs.Flags&net.FlagRunning != 0
	default:
		return false
	}
}

// Address returns the first IPv4 address on the interface.
func (i *Interface) Address() (netip.Addr, bool) {
	link, err := i.link()
	if err != nil {
		return netip.Addr{}, false
	}
	addrs, err := i.addrList(link, netlink.FAMILY_V4)
	if err != nil {
		return netip.Addr{}, false
	}
	for _, a := range addrs {
		if a.IPNet == nil {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.IPNet.IP.To4()); ok {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// WaitDown blocks until the interface stops being operationally up.
//
// Link updates come from a netlink subscription; the state is also polled
// so a dropped subscription cannot wedge the caller.
func (i *Interface) WaitDown(ctx context.Context) error {
	ch := make(chan netlink.LinkUpdate, 8)
	done := make(chan struct{})
	var updates <-chan netlink.LinkUpdate
	if err := i.subscribe(ch, done); err == nil {
		updates = ch
		defer func() {
			close(done)
			// The subscriber keeps sending until its socket closes, then
			// closes ch.
			go func() {
				for range ch {
				}
			}()
		}()
	} else {
		// Fall back to polling alone.
		close(done)
	}

	ticker := time.NewTicker(downPoll)
	defer ticker.Stop()

	for {
		if !i.LinkUp() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if u.Link != nil && u.Link.Attrs().Name == i.name && !attrsUp(u.Link.Attrs()) {
				return nil
			}
		case <-ticker.C:
		}
	}
}
