// Package domain holds the typed identifiers shared across services. IDs are
// distinct types over uuid.UUID so an assessment id can never be passed where
// an application id is expected.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned by the Parse helpers when a raw identifier fails
// the trust-boundary checks. Callers match with errors.Is.
var ErrInvalidID = errors.New("invalid id")

type (
	ApplicationID  uuid.UUID
	AssessmentID   uuid.UUID
	UserID         uuid.UUID
	RegionID       uuid.UUID
	DeliveryUnitID uuid.UUID
)

// CRN is the case reference number identifying a subject. It is the only
// subject identifier the core holds; all case data lives upstream.
type CRN string

func (c CRN) String() string { return string(c) }

// Valid reports whether the CRN has the expected shape: one letter followed
// by six digits, e.g. X320741.
func (c CRN) Valid() bool {
	s := string(c)
	if len(s) != 7 {
		return false
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ApplicationID) String() string { return uuid.UUID(id).String() }

func (id AssessmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AssessmentID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) String() string { return uuid.UUID(id).String() }

func (id RegionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RegionID) String() string { return uuid.UUID(id).String() }

func (id DeliveryUnitID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DeliveryUnitID) String() string { return uuid.UUID(id).String() }

func NewApplicationID() ApplicationID   { return ApplicationID(uuid.New()) }
func NewAssessmentID() AssessmentID     { return AssessmentID(uuid.New()) }
func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewRegionID() RegionID             { return RegionID(uuid.New()) }
func NewDeliveryUnitID() DeliveryUnitID { return DeliveryUnitID(uuid.New()) }

// parseUUID enforces the trust-boundary invariant: ids must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(kind, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s: %w", kind, ErrInvalidID)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q: %w", kind, raw, ErrInvalidID)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s is nil: %w", kind, ErrInvalidID)
	}
	return parsed, nil
}

func ParseApplicationID(raw string) (ApplicationID, error) {
	parsed, err := parseUUID("application id", raw)
	return ApplicationID(parsed), err
}

func ParseAssessmentID(raw string) (AssessmentID, error) {
	parsed, err := parseUUID("assessment id", raw)
	return AssessmentID(parsed), err
}

func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID("user id", raw)
	return UserID(parsed), err
}
