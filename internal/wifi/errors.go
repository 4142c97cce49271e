package wifi

import "errors"

var (
	// ErrAssociationFailed is returned when the radio does not associate in time.
	ErrAssociationFailed = errors.New("wifi: association failed")

	// ErrNotStarted is returned by Connect before Start.
	ErrNotStarted = errors.New("wifi: client mode not started")

	// ErrInvalidCredentials is returned when the SSID or passphrase cannot
	// be written to a supplicant config.
	ErrInvalidCredentials = errors.New("wifi: invalid credentials")

	// ErrInterfaceNotFound is returned when the network interface is missing.
	ErrInterfaceNotFound = errors.New("wifi: interface not found")
)
