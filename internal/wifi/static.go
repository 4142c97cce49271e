package wifi

import (
	"context"
	"fmt"
)

// Static is a Radio for an interface brought up outside the controller.
// It is always started and counts as associated while the link is up.
type Static struct {
	iface *Interface
}

// NewStatic returns a static radio over iface.
func NewStatic(iface *Interface) *Static {
	return &Static{iface: iface}
}

// IsStarted always reports true.
func (s *Static) IsStarted() bool { return true }

// Start is a no-op.
func (s *Static) Start(context.Context) error { return nil }

// Connect succeeds when the link is already up.
func (s *Static) Connect(context.Context) error {
	if s.iface.LinkUp() {
		return nil
	}
	return fmt.Errorf("%w: %s is down", ErrAssociationFailed, s.iface.Name())
}

// IsAssociated reports the link state.
func (s *Static) IsAssociated() bool {
	return s.iface.LinkUp()
}

// WaitForDisconnect blocks until the link goes down.
func (s *Static) WaitForDisconnect(ctx context.Context) error {
	return s.iface.WaitDown(ctx)
}
