package assessments

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"casework/pkg/domain"
	"casework/pkg/platform/sentinel"
)

// InMemoryStore keeps assessments in a map for tests and dev.
type InMemoryStore struct {
	mu          sync.RWMutex
	assessments map[domain.AssessmentID]Assessment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{assessments: make(map[domain.AssessmentID]Assessment)}
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.AssessmentID) (*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.assessments[id]; ok {
		copied := a
		copied.Notes = append([]HistoryNote(nil), a.Notes...)
		return &copied, nil
	}
	return nil, fmt.Errorf("assessment %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Save(_ context.Context, assessment *Assessment) (*Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *assessment
	stored.Notes = append([]HistoryNote(nil), assessment.Notes...)
	s.assessments[assessment.ID] = stored
	copied := stored
	copied.Notes = append([]HistoryNote(nil), stored.Notes...)
	return &copied, nil
}

func (s *InMemoryStore) FindSummaries(_ context.Context, query SummaryQuery) ([]Summary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []Summary
	for _, a := range s.assessments {
		if a.ProbationRegionID != query.RegionID {
			continue
		}
		if a.ReallocatedAt != nil {
			continue // superseded records stay out of work lists
		}
		if query.CRN != nil && a.CRN != *query.CRN {
			continue
		}
		status := a.CurrentStatus()
		if len(query.Statuses) > 0 && !containsStatus(query.Statuses, status) {
			continue
		}
		rows = append(rows, Summary{
			ID:            a.ID,
			ApplicationID: a.ApplicationID,
			CRN:           a.CRN,
			Status:        status,
			CreatedAt:     a.CreatedAt,
			ArrivalDate:   a.ArrivalDate,
		})
	}

	sortSummaries(rows, query.SortBy, query.SortDesc)

	total := len(rows)
	perPage := query.PerPage
	if perPage <= 0 {
		perPage = total
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return rows[start:end], total, nil
}

func containsStatus(statuses []Status, status Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func sortSummaries(rows []Summary, field SortField, desc bool) {
	less := func(i, j int) bool {
		switch field {
		case SortFieldCRN:
			return rows[i].CRN < rows[j].CRN
		case SortFieldStatus:
			return rows[i].Status < rows[j].Status
		case SortFieldArrivalDate:
			a, b := rows[i].ArrivalDate, rows[j].ArrivalDate
			switch {
			case a == nil:
				return b != nil
			case b == nil:
				return false
			default:
				return a.Before(*b)
			}
		default:
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
	}
	if desc {
		sort.SliceStable(rows, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(rows, less)
}

// InMemoryRejectionReasonStore holds rejection-reason reference data.
type InMemoryRejectionReasonStore struct {
	mu      sync.RWMutex
	reasons map[uuid.UUID]RejectionReason
}

func NewInMemoryRejectionReasonStore() *InMemoryRejectionReasonStore {
	return &InMemoryRejectionReasonStore{reasons: make(map[uuid.UUID]RejectionReason)}
}

func (s *InMemoryRejectionReasonStore) Seed(reason RejectionReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons[reason.ID] = reason
}

func (s *InMemoryRejectionReasonStore) FindByID(_ context.Context, id uuid.UUID) (*RejectionReason, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reasons[id]; ok {
		copied := r
		return &copied, nil
	}
	return nil, fmt.Errorf("rejection reason %s: %w", id, sentinel.ErrNotFound)
}
