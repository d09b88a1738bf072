package assessments

import (
	"context"

	"github.com/google/uuid"

	"casework/pkg/domain"
)

// Error Contract:
// All store methods follow this pattern:
// - Return sentinel.ErrNotFound (optionally wrapped) when the record does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// Store persists assessments and their history notes.
type Store interface {
	FindByID(ctx context.Context, id domain.AssessmentID) (*Assessment, error)
	Save(ctx context.Context, assessment *Assessment) (*Assessment, error)
	// FindSummaries returns one page of flattened rows scoped by the query,
	// plus the unpaged total.
	FindSummaries(ctx context.Context, query SummaryQuery) ([]Summary, int, error)
}

// RejectionReasonStore resolves rejection-reason reference data.
type RejectionReasonStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*RejectionReason, error)
}
