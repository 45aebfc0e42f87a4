package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrTransitionConflict indicates a state change the workflow forbids.
	ErrTransitionConflict = errors.New("transition conflict")
	// ErrNotApproved indicates a document operation attempted before approval.
	ErrNotApproved = errors.New("order not approved")
	// ErrNeedsRegeneration indicates an approved order whose PDF binary is missing.
	ErrNeedsRegeneration = errors.New("document needs regeneration")
	// ErrGenerationFailure indicates the PDF render pipeline failed.
	ErrGenerationFailure = errors.New("document generation failed")
	// ErrStorageFailure indicates the blob store rejected a read or write.
	ErrStorageFailure = errors.New("storage failure")
)
