// Package events captures domain events emitted by lifecycle transitions.
// Events are written through a store seam so services stay sink-agnostic:
// tests use the in-memory store, production writes a transactional outbox.
package events

import (
	"time"

	"casework/pkg/domain"
)

// Kind names a lifecycle transition worth recording.
type Kind string

const (
	KindReferralSubmitted      Kind = "referral_submitted"
	KindDraftReferralDeleted   Kind = "draft_referral_deleted"
	KindAssessmentUpdated      Kind = "assessment_updated"
	KindAssessmentRejected     Kind = "assessment_rejected"
	KindAssessmentDeallocated  Kind = "assessment_deallocated"
	KindAssessmentReallocated  Kind = "assessment_reallocated"
)

// Event is emitted from domain logic after a successful transition. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Kind      Kind
	Timestamp time.Time

	// ApplicationID is set on every event; AssessmentID only on assessment
	// transitions.
	ApplicationID domain.ApplicationID
	AssessmentID  domain.AssessmentID

	// CRN of the subject the record concerns.
	CRN domain.CRN

	// ActorID and ActorName identify who triggered the transition.
	ActorID   domain.UserID
	ActorName string

	// RequestID is the correlation id from the request context.
	RequestID string

	// Detail carries transition-specific key/values (e.g. which date field
	// an assessment update changed).
	Detail map[string]string
}
