package testutil

import "errors"

// ErrSimulated is a sentinel error for injecting host failures in tests.
var ErrSimulated = errors.New("simulated error for testing")
