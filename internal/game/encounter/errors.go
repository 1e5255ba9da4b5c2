package encounter

import "errors"

// Sentinel errors for the encounter controller.
var (
	ErrEncounterActive = errors.New("patrol encounter already underway")
	ErrSpawnFailed     = errors.New("patrol entity creation failed")
	ErrNotActive       = errors.New("no patrol encounter active")
)
