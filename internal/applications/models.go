// Package applications owns the referral application lifecycle: draft
// editing, submission, and soft-deletion. An application is mutable only
// while it is an undeleted draft; submission freezes it and creates exactly
// one assessment.
package applications

import (
	"time"

	"casework/pkg/domain"
)

// EntityType is the label carried by NotFound results for this aggregate.
const EntityType = "Application"

// Application is the referral aggregate root.
type Application struct {
	ID                domain.ApplicationID
	CRN               domain.CRN
	CreatedByUserID   domain.UserID
	ProbationRegionID domain.RegionID

	// Previous out-of-region placement, nullable pair: both set or both nil.
	PreviousRegionID       *domain.RegionID
	PreviousDeliveryUnitID *domain.DeliveryUnitID

	// Document is the referral form payload, opaque JSON from the core's
	// perspective.
	Document string

	CreatedAt   time.Time
	SubmittedAt *time.Time
	DeletedAt   *time.Time

	// ArrivalDate is stamped at submission: the supplied arrival date at
	// midnight UTC.
	ArrivalDate *time.Time

	// Risk and eligibility fields, copied verbatim from the submission.
	NeedsAccessibleProperty bool
	HasHistoryOfArson       bool
	IsRegisteredSexOffender bool

	DutyToReferSubmissionDate *time.Time
	DutyToReferOutcome        string
	DutyToReferLocalAuthority string

	PersonReleaseDate *time.Time
	// ReleaseTypes is the submission's release-type list serialized as one
	// comma-delimited string.
	ReleaseTypes string

	// ResolvedDeliveryUnit is the optional delivery-unit relation resolved at
	// submission. Nil when the reference was absent or unknown.
	ResolvedDeliveryUnit *DeliveryUnit
}

// IsSubmitted reports whether the application left the draft state.
func (a *Application) IsSubmitted() bool { return a.SubmittedAt != nil }

// IsDeleted reports whether the draft was soft-deleted.
func (a *Application) IsDeleted() bool { return a.DeletedAt != nil }

// DeliveryUnit is organizational reference data.
type DeliveryUnit struct {
	ID   domain.DeliveryUnitID
	Name string
}

// Submission carries the data supplied when a draft is submitted.
type Submission struct {
	// ArrivalDate is a calendar date; the service combines it with midnight
	// UTC for the stored timestamp.
	ArrivalDate time.Time

	// SummaryData is the opaque summary payload handed to assessment
	// creation.
	SummaryData string

	NeedsAccessibleProperty bool
	HasHistoryOfArson       bool
	IsRegisteredSexOffender bool

	DutyToReferSubmissionDate *time.Time
	DutyToReferOutcome        string
	DutyToReferLocalAuthority string

	PersonReleaseDate *time.Time
	ReleaseTypes      []string

	// ProbationDeliveryUnitID optionally references reference data; absence
	// or an unknown id both produce a nil relation.
	ProbationDeliveryUnitID *domain.DeliveryUnitID

	// PreviousRegionID and PreviousDeliveryUnitID record an out-of-region
	// placement and travel as a pair: supplying one without the other fails
	// field validation.
	PreviousRegionID       *domain.RegionID
	PreviousDeliveryUnitID *domain.DeliveryUnitID
}
