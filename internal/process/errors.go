package process

import "errors"

var (
	// ErrAlreadyRunning is returned by Start on a running manager.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrNotRunning is returned by Signal when no process is running.
	ErrNotRunning = errors.New("process: not running")

	// ErrNoBinary is returned by Start when Config.Binary is empty.
	ErrNoBinary = errors.New("process: no binary configured")
)
