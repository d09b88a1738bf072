package assessments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"casework/internal/applications"
	"casework/internal/events"
	"casework/internal/locks"
	"casework/internal/person"
	"casework/pkg/domain"
	"casework/pkg/platform/sentinel"
	txcontext "casework/pkg/platform/tx"
	"casework/pkg/requestcontext"
	"casework/pkg/results"
)

// Validation messages are part of the service contract; callers and tests
// match them verbatim.
const (
	MsgBothDates  = "Cannot update both dates"
	MsgReadOnly   = "The application has been reallocated, this assessment is read only"
	msgAccomPfx   = "Accommodation required from date cannot be before release date: "
	msgReleasePfx = "Release date cannot be after accommodation required from date: "
)

// Authorizer is the set of capability checks gating assessment operations.
type Authorizer interface {
	CanViewAssessment(actor requestcontext.ActorInfo) bool
	CanDeallocateTask(actor requestcontext.ActorInfo) bool
	CanReallocateTask(actor requestcontext.ActorInfo) bool
}

// SubjectResolver answers the subject-access question for one CRN.
type SubjectResolver interface {
	ResolveOne(ctx context.Context, crn domain.CRN, strategy person.AccessStrategy) (person.SummaryInfoResult, error)
}

// EventPublisher records domain events after successful transitions.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// Metrics is the slice of platform metrics this service increments.
type Metrics interface {
	IncAssessmentsRejected()
	IncAssessmentsDeallocated()
	IncAssessmentsReallocated()
}

// Service owns assessment lifecycle transitions. The fixed check order for
// every mutation is existence, then capability authorization, then
// business-rule validation; rejectAssessment additionally checks subject
// access (after the read-only check) before mutating.
type Service struct {
	store      Store
	reasons    RejectionReasonStore
	locker     locks.Coordinator
	authorizer Authorizer
	subjects   SubjectResolver
	publisher  EventPublisher
	runner     txcontext.Runner
	metrics    Metrics
	logger     *slog.Logger

	defaultPageSize int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(metrics Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithTxRunner makes every mutation run as one unit of work. Pair a
// SQLRunner with the postgres stores; the in-memory stores keep the
// default NopRunner.
func WithTxRunner(runner txcontext.Runner) Option {
	return func(s *Service) { s.runner = runner }
}

func NewService(
	store Store,
	reasons RejectionReasonStore,
	locker locks.Coordinator,
	authorizer Authorizer,
	subjects SubjectResolver,
	publisher EventPublisher,
	defaultPageSize int,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("assessment store is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("lock coordinator is required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if subjects == nil {
		return nil, fmt.Errorf("subject resolver is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	if defaultPageSize <= 0 {
		return nil, fmt.Errorf("default page size must be positive, got %d", defaultPageSize)
	}

	svc := &Service{
		store:           store,
		reasons:         reasons,
		locker:          locker,
		authorizer:      authorizer,
		subjects:        subjects,
		publisher:       publisher,
		runner:          txcontext.NewNopRunner(),
		defaultPageSize: defaultPageSize,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateAssessment implements applications.AssessmentCreator: submission
// produces exactly one assessment, created unallocated.
func (s *Service) CreateAssessment(ctx context.Context, app *applications.Application, summaryData string) error {
	assessment := &Assessment{
		ID:                domain.NewAssessmentID(),
		ApplicationID:     app.ID,
		CRN:               app.CRN,
		ProbationRegionID: app.ProbationRegionID,
		SummaryData:       summaryData,
		// The arrival date is denormalized onto the assessment so summary
		// listings never reach back into the applications aggregate.
		ArrivalDate: app.ArrivalDate,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if _, err := s.store.Save(ctx, assessment); err != nil {
		return fmt.Errorf("create assessment for application %s: %w", app.ID, err)
	}
	return nil
}

// load translates the store's not-found sentinel into the NotFound variant.
func (s *Service) load(ctx context.Context, id domain.AssessmentID) (*Assessment, results.Result[*Assessment], error) {
	assessment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, results.NotFound[*Assessment](EntityType, id.String()), nil
		}
		return nil, results.Result[*Assessment]{}, err
	}
	return assessment, results.Result[*Assessment]{}, nil
}

// GetAssessment loads an assessment and validates the caller may view it.
// Read-only: no lock.
func (s *Service) GetAssessment(ctx context.Context, id domain.AssessmentID) (results.Result[*Assessment], error) {
	assessment, failure, err := s.load(ctx, id)
	if err != nil {
		return results.Result[*Assessment]{}, err
	}
	if assessment == nil {
		return failure, nil
	}
	if !s.authorizer.CanViewAssessment(requestcontext.Actor(ctx)) {
		return results.Unauthorised[*Assessment](), nil
	}
	return results.Success(assessment), nil
}

// UpdateAssessment applies the supplied date field(s). The two dates are
// mutually exclusive per update, and the pair must stay ordered: release
// before accommodation-required-from. Nothing persists and no event is
// emitted on a validation failure.
func (s *Service) UpdateAssessment(ctx context.Context, id domain.AssessmentID, releaseDate, accommodationRequiredFromDate *time.Time) (results.Result[*Assessment], error) {
	var res results.Result[*Assessment]
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.updateAssessment(ctx, id, releaseDate, accommodationRequiredFromDate)
		return err
	})
	if err != nil {
		return results.Result[*Assessment]{}, err
	}
	return res, nil
}

func (s *Service) updateAssessment(ctx context.Context, id domain.AssessmentID, releaseDate, accommodationRequiredFromDate *time.Time) (results.Result[*Assessment], error) {
	release, err := s.locker.Acquire(ctx, uuid.UUID(id))
	if err != nil {
		return results.Result[*Assessment]{}, fmt.Errorf("lock assessment %s: %w", id, err)
	}
	defer release()

	assessment, failure, err := s.load(ctx, id)
	if err != nil {
		return results.Result[*Assessment]{}, err
	}
	if assessment == nil {
		return failure, nil
	}
	if !s.authorizer.CanViewAssessment(requestcontext.Actor(ctx)) {
		return results.Unauthorised[*Assessment](), nil
	}

	if releaseDate != nil && accommodationRequiredFromDate != nil {
		return results.GeneralValidationError[*Assessment](MsgBothDates), nil
	}

	if accommodationRequiredFromDate != nil {
		if existing := assessment.ReleaseDate; existing != nil && accommodationRequiredFromDate.Before(*existing) {
			return results.GeneralValidationError[*Assessment](msgAccomPfx + existing.Format(time.DateOnly)), nil
		}
		assessment.AccommodationRequiredFromDate = accommodationRequiredFromDate
	}
	if releaseDate != nil {
		if existing := assessment.AccommodationRequiredFromDate; existing != nil && releaseDate.After(*existing) {
			return results.GeneralValidationError[*Assessment](msgReleasePfx + existing.Format(time.DateOnly)), nil
		}
		assessment.ReleaseDate = releaseDate
	}

	detail := map[string]string{}
	if releaseDate != nil {
		detail["releaseDate"] = releaseDate.Format(time.DateOnly)
	}
	if accommodationRequiredFromDate != nil {
		detail["accommodationRequiredFromDate"] = accommodationRequiredFromDate.Format(time.DateOnly)
	}
	// The event is recorded before the aggregate write so a publisher fault
	// leaves the in-memory store untouched too; under a SQLRunner both land
	// or roll back together.
	if err := s.emit(ctx, events.KindAssessmentUpdated, assessment, detail); err != nil {
		return results.Result[*Assessment]{}, err
	}

	saved, err := s.store.Save(ctx, assessment)
	if err != nil {
		return results.Result[*Assessment]{}, err
	}

	return results.Success(saved), nil
}

// RejectionRequest carries the data supplied when rejecting an assessment.
type RejectionRequest struct {
	Document          string
	Rationale         string
	RejectionReasonID *uuid.UUID
	RejectionDetail   string
	IsWithdrawn       bool
}

// RejectAssessment rejects an assessment. Check order: existence, view
// capability, reallocated-read-only, then subject access — a restricted or
// unknown subject makes the whole operation unauthorised.
func (s *Service) RejectAssessment(ctx context.Context, id domain.AssessmentID, req RejectionRequest) (results.Result[*Assessment], error) {
	var res results.Result[*Assessment]
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.rejectAssessment(ctx, id, req)
		return err
	})
	if err != nil {
		return results.Result[*Assessment]{}, err
	}
	if res.IsSuccess() {
		if s.metrics != nil {
			s.metrics.IncAssessmentsRejected()
		}
		s.logger.InfoContext(ctx, "assessment rejected",
			"assessment_id", res.Value().ID.String(), "withdrawn", req.IsWithdrawn)
	}
	return res, nil
}

func (s *Service) rejectAssessment(ctx context.Context, id domain.AssessmentID, req RejectionRequest) (results.Result[*Assessment], error) {
	release, err := s.locker.Acquire(ctx, uuid.UUID(id))
	if err != nil {
		return results.Result[*Assessment]{}, fmt.Errorf("lock assessment %s: %w", id, err)
	}
	defer release()

	assessment, failure, err := s.load(ctx, id)
	if err != nil {
		return results.Result[*Assessment]{}, err
	}
	if assessment == nil {
		return failure, nil
	}

	actor := requestcontext.Actor(ctx)
	if !s.authorizer.CanViewAssessment(actor) {
		return results.Unauthorised[*Assessment](), nil
	}
	if assessment.IsReadOnly() {
		return results.GeneralValidationError[*Assessment](MsgReadOnly), nil
	}

	subject, err := s.subjects.ResolveOne(ctx, assessment.CRN, person.StrategyCheckAccess)
	if err != nil {
		return results.Result[*Assessment]{}, fmt.Errorf("resolve subject %s: %w", assessment.CRN, err)
	}
	if subject.Kind() != person.SummaryFull {
		return results.Unauthorised[*Assessment](), nil
	}

	now := requestcontext.Now(ctx)
	decision := DecisionRejected
	assessment.Decision = &decision
	assessment.RejectionRationale = req.Rationale
	assessment.Document = req.Document
	assessment.RejectionReasonDetail = req.RejectionDetail
	assessment.RejectionReason = s.resolveRejectionReason(ctx, req.RejectionReasonID)
	assessment.SubmittedAt = &now
	// A rejection reopens nothing: completedAt is cleared whatever it held.
	assessment.CompletedAt = nil

	assessment.Notes = append(assessment.Notes, HistoryNote{
		ID:            uuid.New(),
		AssessmentID:  assessment.ID,
		Type:          NoteTypeSystem,
		Tag:           string(DecisionRejected),
		Message:       req.Rationale,
		CreatedAt:     now,
		CreatedByID:   actor.ID,
		CreatedByName: actor.Name,
	})

	detail := map[string]string{"withdrawn": fmt.Sprintf("%t", req.IsWithdrawn)}
	if err := s.emit(ctx, events.KindAssessmentRejected, assessment, detail); err != nil {
		return results.Result[*Assessment]{}, err
	}

	saved, err := s.store.Save(ctx, assessment)
	if err != nil {
		return results.Result[*Assessment]{}, err
	}

	return results.Success(saved), nil
}

// resolveRejectionReason tolerates an absent or unknown reference.
func (s *Service) resolveRejectionReason(ctx context.Context, id *uuid.UUID) *RejectionReason {
	if id == nil || s.reasons == nil {
		return nil
	}
	reason, err := s.reasons.FindByID(ctx, *id)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "rejection reason lookup failed",
				"rejection_reason_id", id.String(), "error", err)
		}
		return nil
	}
	return reason
}

// DeallocateAssessment returns an assessment to the unallocated pool:
// assignee, allocation time, decision, and submission time all reset.
func (s *Service) DeallocateAssessment(ctx context.Context, id domain.AssessmentID) (results.Result[*Assessment], error) {
	var res results.Result[*Assessment]
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.deallocateAssessment(ctx, id)
		return err
	})
	if err != nil {
		return results.Result[*Assessment]{}, err
	}
	if res.IsSuccess() && s.metrics != nil {
		s.metrics.IncAssessmentsDeallocated()
	}
	return res, nil
}

func (s *Service) deallocateAssessment(ctx context.Context, id domain.AssessmentID) (results.Result[*Assessment], error) {
	release, err := s.locker.Acquire(ctx, uuid.UUID(id))
	if err != nil {
		return results.Result[*Assessment]{}, fmt.Errorf("lock assessment %s: %w", id, err)
	}
	defer release()

	assessment, failure, err := s.load(ctx, id)
	if err != nil {
		return results.Result[*Assessment]{}, err
	}
	if assessment == nil {
		return failure, nil
	}

	actor := requestcontext.Actor(ctx)
	if !s.authorizer.CanDeallocateTask(actor) {
		return results.Unauthorised[*Assessment](), nil
	}

	assessment.AllocatedToUserID = nil
	assessment.AllocatedAt = nil
	assessment.Decision = nil
	assessment.SubmittedAt = nil

	now := requestcontext.Now(ctx)
	assessment.Notes = append(assessment.Notes, HistoryNote{
		ID:            uuid.New(),
		AssessmentID:  assessment.ID,
		Type:          NoteTypeSystem,
		Tag:           "DEALLOCATED",
		CreatedAt:     now,
		CreatedByID:   actor.ID,
		CreatedByName: actor.Name,
	})

	if err := s.emit(ctx, events.KindAssessmentDeallocated, assessment, nil); err != nil {
		return results.Result[*Assessment]{}, err
	}

	saved, err := s.store.Save(ctx, assessment)
	if err != nil {
		return results.Result[*Assessment]{}, err
	}

	return results.Success(saved), nil
}

// ReallocateAssessmentToMe allocates the assessment to the requesting user.
// The new allocation time is strictly after the previous one even under a
// pinned clock, and any prior decision is cleared.
func (s *Service) ReallocateAssessmentToMe(ctx context.Context, id domain.AssessmentID) (results.Result[*Assessment], error) {
	var res results.Result[*Assessment]
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.reallocateAssessmentToMe(ctx, id)
		return err
	})
	if err != nil {
		return results.Result[*Assessment]{}, err
	}
	if res.IsSuccess() && s.metrics != nil {
		s.metrics.IncAssessmentsReallocated()
	}
	return res, nil
}

func (s *Service) reallocateAssessmentToMe(ctx context.Context, id domain.AssessmentID) (results.Result[*Assessment], error) {
	release, err := s.locker.Acquire(ctx, uuid.UUID(id))
	if err != nil {
		return results.Result[*Assessment]{}, fmt.Errorf("lock assessment %s: %w", id, err)
	}
	defer release()

	assessment, failure, err := s.load(ctx, id)
	if err != nil {
		return results.Result[*Assessment]{}, err
	}
	if assessment == nil {
		return failure, nil
	}

	actor := requestcontext.Actor(ctx)
	if !s.authorizer.CanReallocateTask(actor) {
		return results.Unauthorised[*Assessment](), nil
	}

	allocatedAt := requestcontext.Now(ctx)
	if prev := assessment.AllocatedAt; prev != nil && !allocatedAt.After(*prev) {
		allocatedAt = prev.Add(time.Microsecond)
	}

	actorID := actor.ID
	assessment.AllocatedToUserID = &actorID
	assessment.AllocatedAt = &allocatedAt
	assessment.Decision = nil

	assessment.Notes = append(assessment.Notes, HistoryNote{
		ID:            uuid.New(),
		AssessmentID:  assessment.ID,
		Type:          NoteTypeSystem,
		Tag:           "REALLOCATED",
		CreatedAt:     allocatedAt,
		CreatedByID:   actor.ID,
		CreatedByName: actor.Name,
	})

	if err := s.emit(ctx, events.KindAssessmentReallocated, assessment, nil); err != nil {
		return results.Result[*Assessment]{}, err
	}

	saved, err := s.store.Save(ctx, assessment)
	if err != nil {
		return results.Result[*Assessment]{}, err
	}

	return results.Success(saved), nil
}

// sortFieldAliases maps caller-facing sort names to backing sort keys.
// Derived display fields (e.g. the enriched person name) have no backing
// index and fall through to the default.
var sortFieldAliases = map[string]SortField{
	"createdAt":   SortFieldCreatedAt,
	"crn":         SortFieldCRN,
	"arrivalDate": SortFieldArrivalDate,
	"status":      SortFieldStatus,
}

// GetSummariesForUser returns one page of assessment summaries scoped to
// the requesting user's home region, with optional CRN and status filters.
// An unsupported sort field silently falls back to created_at rather than
// failing.
func (s *Service) GetSummariesForUser(ctx context.Context, crn *domain.CRN, statuses []Status, page int, sortBy string, sortDesc bool) ([]Summary, PageInfo, error) {
	actor := requestcontext.Actor(ctx)

	sortField, ok := sortFieldAliases[sortBy]
	if !ok {
		if sortBy != "" {
			s.logger.DebugContext(ctx, "unsupported sort field, using default",
				"requested", sortBy)
		}
		sortField = SortFieldCreatedAt
	}

	if page <= 0 {
		page = 1
	}

	query := SummaryQuery{
		RegionID: actor.RegionID,
		CRN:      crn,
		Statuses: statuses,
		Page:     page,
		PerPage:  s.defaultPageSize,
		SortBy:   sortField,
		SortDesc: sortDesc,
	}

	rows, total, err := s.store.FindSummaries(ctx, query)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("find assessment summaries: %w", err)
	}

	totalPages := total / s.defaultPageSize
	if total%s.defaultPageSize != 0 {
		totalPages++
	}
	return rows, PageInfo{
		TotalResults: total,
		TotalPages:   totalPages,
		Page:         page,
		PerPage:      s.defaultPageSize,
	}, nil
}

func (s *Service) emit(ctx context.Context, kind events.Kind, assessment *Assessment, detail map[string]string) error {
	actor := requestcontext.Actor(ctx)
	if err := s.publisher.Emit(ctx, events.Event{
		Kind:          kind,
		Timestamp:     requestcontext.Now(ctx),
		ApplicationID: assessment.ApplicationID,
		AssessmentID:  assessment.ID,
		CRN:           assessment.CRN,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		RequestID:     requestcontext.RequestID(ctx),
		Detail:        detail,
	}); err != nil {
		return fmt.Errorf("emit %s for assessment %s: %w", kind, assessment.ID, err)
	}
	return nil
}
