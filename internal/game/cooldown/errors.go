package cooldown

import "errors"

// Sentinel errors for the cooldown ledger.
var (
	// ErrCorrupt is returned by a Store whose persisted data cannot be trusted.
	// The ledger recovers by starting empty.
	ErrCorrupt = errors.New("cooldown store corrupt")
)
