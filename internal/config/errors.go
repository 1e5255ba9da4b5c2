package config

import "errors"

// ErrInvalid is returned when a configuration document fails validation.
var ErrInvalid = errors.New("invalid configuration")
