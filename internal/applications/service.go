package applications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"casework/internal/events"
	"casework/internal/locks"
	"casework/pkg/domain"
	"casework/pkg/platform/sentinel"
	txcontext "casework/pkg/platform/tx"
	"casework/pkg/requestcontext"
	"casework/pkg/results"
)

// Validation messages are part of the service contract; callers and tests
// match them verbatim.
const (
	MsgAlreadySubmitted = "This application has already been submitted"
	MsgAlreadyDeleted   = "This application has already been deleted"
	MsgDeleteSubmitted  = "Cannot mark as deleted: temporary accommodation application already submitted."
)

// AssessmentCreator creates the one assessment a submission produces. The
// assessments service implements it; the interface lives here to keep the
// dependency pointing application-ward.
type AssessmentCreator interface {
	CreateAssessment(ctx context.Context, app *Application, summaryData string) error
}

// EventPublisher records domain events after successful transitions.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// Authorizer is the capability check used by the delete path.
type Authorizer interface {
	CanDeleteApplication(actor requestcontext.ActorInfo) bool
}

// Metrics is the slice of platform metrics this service increments.
type Metrics interface {
	IncReferralsSubmitted()
	IncDraftReferralsDeleted()
}

// Service owns application lifecycle transitions. Every read-modify-write
// acquires the aggregate lock before loading, so two concurrent submissions
// of one application serialize: the second observes submittedAt set and gets
// the already-submitted validation error.
type Service struct {
	store         Store
	deliveryUnits DeliveryUnitStore
	locker        locks.Coordinator
	creator       AssessmentCreator
	publisher     EventPublisher
	authorizer    Authorizer
	runner        txcontext.Runner
	metrics       Metrics
	logger        *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(metrics Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithTxRunner sets the unit of work every mutation runs in. The postgres
// wiring passes a SQLRunner so a collaborator fault rolls back the whole
// operation; the default NopRunner serves the in-memory stores.
func WithTxRunner(runner txcontext.Runner) Option {
	return func(s *Service) { s.runner = runner }
}

func NewService(
	store Store,
	deliveryUnits DeliveryUnitStore,
	locker locks.Coordinator,
	creator AssessmentCreator,
	publisher EventPublisher,
	authorizer Authorizer,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("application store is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("lock coordinator is required")
	}
	if creator == nil {
		return nil, fmt.Errorf("assessment creator is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}

	svc := &Service{
		store:         store,
		deliveryUnits: deliveryUnits,
		locker:        locker,
		creator:       creator,
		publisher:     publisher,
		authorizer:    authorizer,
		runner:        txcontext.NewNopRunner(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// loadDraftForWrite runs the fixed check sequence shared by update and
// submit: existence, ownership, submitted-state, deleted-state. Callers hold
// the aggregate lock.
func (s *Service) loadDraftForWrite(ctx context.Context, id domain.ApplicationID) (*Application, results.Result[*Application], error) {
	app, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, results.NotFound[*Application](EntityType, id.String()), nil
		}
		return nil, results.Result[*Application]{}, err
	}

	actor := requestcontext.Actor(ctx)
	if app.CreatedByUserID != actor.ID {
		return nil, results.Unauthorised[*Application](), nil
	}
	if app.IsSubmitted() {
		return nil, results.GeneralValidationError[*Application](MsgAlreadySubmitted), nil
	}
	if app.IsDeleted() {
		return nil, results.GeneralValidationError[*Application](MsgAlreadyDeleted), nil
	}
	return app, results.Result[*Application]{}, nil
}

// UpdateApplication replaces the draft's document payload. Only the creator
// may edit, and only while the application is an undeleted draft.
func (s *Service) UpdateApplication(ctx context.Context, id domain.ApplicationID, document string) (results.Result[*Application], error) {
	var res results.Result[*Application]
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.updateApplication(ctx, id, document)
		return err
	})
	if err != nil {
		return results.Result[*Application]{}, err
	}
	return res, nil
}

func (s *Service) updateApplication(ctx context.Context, id domain.ApplicationID, document string) (results.Result[*Application], error) {
	release, err := s.locker.Acquire(ctx, uuid.UUID(id))
	if err != nil {
		return results.Result[*Application]{}, fmt.Errorf("lock application %s: %w", id, err)
	}
	defer release()

	app, failure, err := s.loadDraftForWrite(ctx, id)
	if err != nil {
		return results.Result[*Application]{}, err
	}
	if app == nil {
		return failure, nil
	}

	app.Document = document
	saved, err := s.store.Save(ctx, app)
	if err != nil {
		return results.Result[*Application]{}, err
	}
	return results.Success(saved), nil
}

// SubmitApplication moves a draft to submitted: stamps submittedAt, copies
// the submission's risk and eligibility fields verbatim, resolves the
// optional delivery-unit reference, creates exactly one assessment, and
// emits the referral-submitted event. The whole transition is one unit of
// work; a fault in any collaborator persists nothing.
func (s *Service) SubmitApplication(ctx context.Context, id domain.ApplicationID, submission Submission) (results.Result[*Application], error) {
	var res results.Result[*Application]
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.submitApplication(ctx, id, submission)
		return err
	})
	if err != nil {
		return results.Result[*Application]{}, err
	}

	if res.IsSuccess() {
		if s.metrics != nil {
			s.metrics.IncReferralsSubmitted()
		}
		s.logger.InfoContext(ctx, "referral submitted",
			"application_id", res.Value().ID.String(), "crn", res.Value().CRN.String())
	}
	return res, nil
}

func (s *Service) submitApplication(ctx context.Context, id domain.ApplicationID, submission Submission) (results.Result[*Application], error) {
	release, err := s.locker.Acquire(ctx, uuid.UUID(id))
	if err != nil {
		return results.Result[*Application]{}, fmt.Errorf("lock application %s: %w", id, err)
	}
	defer release()

	app, failure, err := s.loadDraftForWrite(ctx, id)
	if err != nil {
		return results.Result[*Application]{}, err
	}
	if app == nil {
		return failure, nil
	}

	// The previous region and delivery unit travel as a pair.
	if (submission.PreviousRegionID == nil) != (submission.PreviousDeliveryUnitID == nil) {
		return results.FieldValidationError[*Application](map[string]string{
			"previousProbationRegionId": "must be supplied together with previousProbationDeliveryUnitId",
		}), nil
	}

	now := requestcontext.Now(ctx)
	app.SubmittedAt = &now

	// Arrival is a calendar date; store it as midnight UTC.
	arrival := time.Date(
		submission.ArrivalDate.Year(), submission.ArrivalDate.Month(), submission.ArrivalDate.Day(),
		0, 0, 0, 0, time.UTC,
	)
	app.ArrivalDate = &arrival

	app.NeedsAccessibleProperty = submission.NeedsAccessibleProperty
	app.HasHistoryOfArson = submission.HasHistoryOfArson
	app.IsRegisteredSexOffender = submission.IsRegisteredSexOffender
	app.DutyToReferSubmissionDate = submission.DutyToReferSubmissionDate
	app.DutyToReferOutcome = submission.DutyToReferOutcome
	app.DutyToReferLocalAuthority = submission.DutyToReferLocalAuthority
	app.PersonReleaseDate = submission.PersonReleaseDate
	app.ReleaseTypes = strings.Join(submission.ReleaseTypes, ",")
	app.PreviousRegionID = submission.PreviousRegionID
	app.PreviousDeliveryUnitID = submission.PreviousDeliveryUnitID

	app.ResolvedDeliveryUnit = s.resolveDeliveryUnit(ctx, submission.ProbationDeliveryUnitID)

	// Collaborators run before the aggregate write so the in-memory backend
	// also leaves the draft untouched when one of them faults; the SQL
	// backend rolls the whole unit of work back either way.
	if err := s.creator.CreateAssessment(ctx, app, submission.SummaryData); err != nil {
		return results.Result[*Application]{}, fmt.Errorf("create assessment for application %s: %w", id, err)
	}

	actor := requestcontext.Actor(ctx)
	if err := s.publisher.Emit(ctx, events.Event{
		Kind:          events.KindReferralSubmitted,
		Timestamp:     now,
		ApplicationID: app.ID,
		CRN:           app.CRN,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		RequestID:     requestcontext.RequestID(ctx),
	}); err != nil {
		return results.Result[*Application]{}, fmt.Errorf("emit referral submitted for %s: %w", id, err)
	}

	saved, err := s.store.Save(ctx, app)
	if err != nil {
		return results.Result[*Application]{}, err
	}
	return results.Success(saved), nil
}

// resolveDeliveryUnit tolerates both an absent reference and an unknown id,
// producing a nil relation; any other store failure is logged and likewise
// degrades to nil rather than blocking submission.
func (s *Service) resolveDeliveryUnit(ctx context.Context, id *domain.DeliveryUnitID) *DeliveryUnit {
	if id == nil || s.deliveryUnits == nil {
		return nil
	}
	unit, err := s.deliveryUnits.FindByID(ctx, *id)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "delivery unit lookup failed",
				"delivery_unit_id", id.String(), "error", err)
		}
		return nil
	}
	return unit
}

// MarkAsDeleted soft-deletes a draft. Capability check, not ownership: any
// user who may delete applications can remove a colleague's draft. The write
// flushes synchronously so the draft is uneditable the moment this returns.
func (s *Service) MarkAsDeleted(ctx context.Context, id domain.ApplicationID) (results.Result[*Application], error) {
	var res results.Result[*Application]
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.markAsDeleted(ctx, id)
		return err
	})
	if err != nil {
		return results.Result[*Application]{}, err
	}
	if res.IsSuccess() {
		if s.metrics != nil {
			s.metrics.IncDraftReferralsDeleted()
		}
		actor := requestcontext.Actor(ctx)
		s.logger.InfoContext(ctx, "draft referral deleted",
			"application_id", res.Value().ID.String(), "actor_id", actor.ID.String())
	}
	return res, nil
}

func (s *Service) markAsDeleted(ctx context.Context, id domain.ApplicationID) (results.Result[*Application], error) {
	release, err := s.locker.Acquire(ctx, uuid.UUID(id))
	if err != nil {
		return results.Result[*Application]{}, fmt.Errorf("lock application %s: %w", id, err)
	}
	defer release()

	app, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return results.NotFound[*Application](EntityType, id.String()), nil
		}
		return results.Result[*Application]{}, err
	}

	actor := requestcontext.Actor(ctx)
	if !s.authorizer.CanDeleteApplication(actor) {
		return results.Unauthorised[*Application](), nil
	}
	if app.IsSubmitted() {
		return results.GeneralValidationError[*Application](MsgDeleteSubmitted), nil
	}
	// Deleted records are immutable for every lifecycle operation.
	if app.IsDeleted() {
		return results.GeneralValidationError[*Application](MsgAlreadyDeleted), nil
	}

	now := requestcontext.Now(ctx)
	app.DeletedAt = &now

	if err := s.publisher.Emit(ctx, events.Event{
		Kind:          events.KindDraftReferralDeleted,
		Timestamp:     now,
		ApplicationID: app.ID,
		CRN:           app.CRN,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		RequestID:     requestcontext.RequestID(ctx),
	}); err != nil {
		return results.Result[*Application]{}, fmt.Errorf("emit draft deleted for %s: %w", id, err)
	}

	saved, err := s.store.SaveAndFlush(ctx, app)
	if err != nil {
		return results.Result[*Application]{}, err
	}

	return results.Success(saved), nil
}
