// Package connectivity keeps the controller attached to the network and
// the bus.
//
// A Supervisor walks the connection forward through four states:
//
//	Disconnected → LinkUp → AddressAcquired → BusConnected
//
// and falls back to Disconnected when the radio loses association. It
// never gives up: a failed step is logged, followed by a fixed RetryDelay,
// and attempted again.
//
// The supervisor drives three collaborators: a Radio (association), a
// Stack (link and address, driven by its own task such as a DHCP client)
// and a Session (the bus connection). Each is an interface so the loop can
// be tested with fakes.
//
// # Usage
//
//	sup := connectivity.NewSupervisor(radio, stack, session)
//	sup.SetLogger(logger.With("component", "connectivity"))
//	go sup.Run(ctx)
//
//	if err := sup.WaitFor(ctx, connectivity.BusConnected); err != nil {
//	    return err
//	}
package connectivity
