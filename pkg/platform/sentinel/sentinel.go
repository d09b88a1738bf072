package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into Result variants.
//
// These represent factual states about stored records, not rule violations:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a uniqueness or one-to-one constraint was violated
// - ErrInvalidState: record is in the wrong state for the requested write
// - ErrUnavailable: backing store temporarily unreachable
//
// Business-rule violations never use sentinels; they are Result variants.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
