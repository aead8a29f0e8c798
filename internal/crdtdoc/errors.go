package crdtdoc

import "errors"

// Sentinel errors matching §4.1's failure modes and §7's error taxonomy.
var (
	// ErrInvalidInput is returned when Update's input fails schema
	// validation. Classified as a ValidationError by upper layers.
	ErrInvalidInput = errors.New("crdtdoc: invalid input")

	// ErrInternalInvariant is returned when the post-transaction
	// projection fails to revalidate against schema — a diff-algorithm
	// bug, not a caller error. Classified as an IntegrityError.
	ErrInternalInvariant = errors.New("crdtdoc: post-transaction invariant violated")

	// ErrNothingToUndo/ErrNothingToRedo are returned by Undo/Redo when there
	// is nothing to revert/reapply.
	ErrNothingToUndo = errors.New("crdtdoc: nothing to undo")
	ErrNothingToRedo = errors.New("crdtdoc: nothing to redo")
)
