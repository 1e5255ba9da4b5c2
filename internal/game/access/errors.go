package access

import "errors"

// ErrServiceUnavailable is returned by a BlockChecker whose backing service is not loaded.
// The gate treats it as "not blocked".
var ErrServiceUnavailable = errors.New("block-check service unavailable")
