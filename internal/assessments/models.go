// Package assessments owns the assessment lifecycle: allocation,
// reallocation, deallocation, update, and rejection. An assessment is
// created at application submission, never deleted, and keeps an append-only
// history of notes across every transition.
package assessments

import (
	"time"

	"github.com/google/uuid"

	"casework/pkg/domain"
)

// EntityType is the label carried by NotFound results for this aggregate.
const EntityType = "Assessment"

// Decision is the assessment outcome.
type Decision string

const (
	DecisionAccepted Decision = "ACCEPTED"
	DecisionRejected Decision = "REJECTED"
)

// Status is the derived workflow state used by summary filtering.
type Status string

const (
	StatusUnallocated Status = "unallocated"
	StatusInReview    Status = "in_review"
	StatusClosed      Status = "closed"
	StatusRejected    Status = "rejected"
)

// Assessment is the aggregate created one-to-one with a submitted
// application.
type Assessment struct {
	ID            domain.AssessmentID
	ApplicationID domain.ApplicationID
	CRN           domain.CRN

	ProbationRegionID domain.RegionID

	// SummaryData is the opaque summary payload captured at submission.
	SummaryData string
	// ArrivalDate is copied from the application at creation so summary
	// rows are served from this aggregate alone.
	ArrivalDate *time.Time
	// Document is the rejection-time referral document snapshot.
	Document string

	CreatedAt time.Time

	AllocatedToUserID *domain.UserID
	AllocatedAt       *time.Time

	Decision    *Decision
	SubmittedAt *time.Time
	CompletedAt *time.Time

	// ReallocatedAt non-nil marks this record superseded and read-only,
	// independent of Decision.
	ReallocatedAt *time.Time

	// ReleaseDate and AccommodationRequiredFromDate change one per update
	// and must stay ordered: release on or before accommodation required.
	ReleaseDate                   *time.Time
	AccommodationRequiredFromDate *time.Time

	RejectionRationale    string
	RejectionReason       *RejectionReason
	RejectionReasonDetail string

	// Notes is the append-only transition history.
	Notes []HistoryNote
}

// IsReadOnly reports whether the record was superseded by reallocation.
func (a *Assessment) IsReadOnly() bool { return a.ReallocatedAt != nil }

// CurrentStatus derives the workflow state for summary filtering.
func (a *Assessment) CurrentStatus() Status {
	switch {
	case a.Decision != nil && *a.Decision == DecisionRejected:
		return StatusRejected
	case a.CompletedAt != nil:
		return StatusClosed
	case a.AllocatedToUserID == nil:
		return StatusUnallocated
	default:
		return StatusInReview
	}
}

// NoteType distinguishes system-generated transition notes from
// user-authored commentary.
type NoteType string

const (
	NoteTypeSystem NoteType = "system"
	NoteTypeUser   NoteType = "user"
)

// HistoryNote is one entry in an assessment's append-only history.
type HistoryNote struct {
	ID           uuid.UUID
	AssessmentID domain.AssessmentID
	Type         NoteType
	// Tag labels the transition a system note records, e.g. REJECTED.
	Tag           string
	Message       string
	CreatedAt     time.Time
	CreatedByID   domain.UserID
	CreatedByName string
}

// RejectionReason is reference data attached when an assessment is rejected.
type RejectionReason struct {
	ID   uuid.UUID
	Name string
}

// Summary is the flattened row the search/report layer works with. Name is
// filled by redaction-aware enrichment, never by the store.
type Summary struct {
	ID            domain.AssessmentID
	ApplicationID domain.ApplicationID
	CRN           domain.CRN
	Name          string
	Status        Status
	CreatedAt     time.Time
	ArrivalDate   *time.Time
}

// SummaryQuery scopes and pages a summary listing.
type SummaryQuery struct {
	RegionID domain.RegionID
	CRN      *domain.CRN
	Statuses []Status

	Page     int
	PerPage  int
	SortBy   SortField
	SortDesc bool
}

// SortField names a backing sort key supported by the stores.
type SortField string

const (
	SortFieldCreatedAt   SortField = "created_at"
	SortFieldCRN         SortField = "crn"
	SortFieldArrivalDate SortField = "arrival_date"
	SortFieldStatus      SortField = "status"
)

// PageInfo is the pagination metadata returned with a summary page.
type PageInfo struct {
	TotalResults int
	TotalPages   int
	Page         int
	PerPage      int
}
