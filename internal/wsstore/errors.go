package wsstore

import "errors"

// Sentinel errors matching §7's error taxonomy for the store layer.
var (
	// ErrValidation is returned when new attributes/content fail schema
	// validation. Surfaced to the caller as-is; never retried.
	ErrValidation = errors.New("wsstore: validation error")

	// ErrIntegrity is returned when a post-write invariant is violated
	// (e.g. a CRDT post-image mismatch surfaced by crdtdoc). Fatal: the
	// enclosing transaction is rolled back.
	ErrIntegrity = errors.New("wsstore: integrity error")

	// ErrNotFound is returned when a fetch targets an id with no row.
	ErrNotFound = errors.New("wsstore: not found")

	// ErrTombstoned is returned when a remote write targets an id shadowed
	// by an existing tombstone; the caller should silently drop it.
	ErrTombstoned = errors.New("wsstore: id is tombstoned")
)
