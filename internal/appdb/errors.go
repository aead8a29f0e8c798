package appdb

import "errors"

// ErrNotFound is returned when a fetch targets an id/domain/key with no row,
// matching wsstore's taxonomy for the same case at the app and account tiers.
var ErrNotFound = errors.New("appdb: not found")
