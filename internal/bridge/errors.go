package bridge

import "errors"

var (
	// ErrNotConnected is returned by host calls while no host is connected.
	ErrNotConnected = errors.New("host not connected")

	// ErrRemote wraps an error reported by the host for a call.
	ErrRemote = errors.New("host call failed")
)
