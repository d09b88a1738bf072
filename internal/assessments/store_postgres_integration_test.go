//go:build integration

package assessments_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"casework/internal/applications"
	"casework/internal/assessments"
	"casework/internal/events"
	"casework/internal/locks"
	"casework/pkg/domain"
	txcontext "casework/pkg/platform/tx"
	"casework/pkg/testutil/containers"
)

// =============================================================================
// Postgres Store Integration Suite
// =============================================================================
// Justification for integration tests: the SQL status derivation, the
// whitelisted ORDER BY, the notes append idempotency, and the advisory-lock
// serialization only exist against a real PostgreSQL instance.

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	apps     *applications.PostgresStore
	store    *assessments.PostgresStore
	outbox   *events.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.apps = applications.NewPostgresStore(s.postgres.DB)
	s.store = assessments.NewPostgresStore(s.postgres.DB)
	s.outbox = events.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"assessment_notes", "assessments", "assessment_rejection_reasons",
		"applications", "probation_delivery_units", "domain_events_outbox")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedApplication(region domain.RegionID) *applications.Application {
	app := &applications.Application{
		ID:                domain.NewApplicationID(),
		CRN:               "X320741",
		CreatedByUserID:   domain.NewUserID(),
		ProbationRegionID: region,
		Document:          `{"draft":true}`,
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := s.apps.Save(context.Background(), app)
	s.Require().NoError(err)
	return app
}

func (s *PostgresStoreSuite) seedAssessment(app *applications.Application) *assessments.Assessment {
	assessment := &assessments.Assessment{
		ID:                domain.NewAssessmentID(),
		ApplicationID:     app.ID,
		CRN:               app.CRN,
		ProbationRegionID: app.ProbationRegionID,
		SummaryData:       `{"summary":"ok"}`,
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := s.store.Save(context.Background(), assessment)
	s.Require().NoError(err)
	return assessment
}

func (s *PostgresStoreSuite) TestSaveAndFindRoundTrip() {
	ctx := context.Background()
	region := domain.NewRegionID()
	app := s.seedApplication(region)
	assessment := s.seedAssessment(app)

	reasonID := uuid.New()
	_, err := s.postgres.DB.ExecContext(ctx,
		`INSERT INTO assessment_rejection_reasons (id, name) VALUES ($1, $2)`,
		reasonID, "Not eligible")
	s.Require().NoError(err)

	decision := assessments.DecisionRejected
	now := time.Now().UTC().Truncate(time.Microsecond)
	assessment.Decision = &decision
	assessment.SubmittedAt = &now
	assessment.RejectionRationale = "insufficient information"
	assessment.RejectionReason = &assessments.RejectionReason{ID: reasonID}
	assessment.RejectionReasonDetail = "outside region"
	assessment.Notes = append(assessment.Notes, assessments.HistoryNote{
		ID:            uuid.New(),
		AssessmentID:  assessment.ID,
		Type:          assessments.NoteTypeSystem,
		Tag:           "REJECTED",
		Message:       "insufficient information",
		CreatedAt:     now,
		CreatedByID:   domain.NewUserID(),
		CreatedByName: "Ana Assessor",
	})

	_, err = s.store.Save(ctx, assessment)
	s.Require().NoError(err)
	// Saving again must not duplicate notes.
	_, err = s.store.Save(ctx, assessment)
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, assessment.ID)
	s.Require().NoError(err)
	s.Equal(assessments.DecisionRejected, *found.Decision)
	s.Equal("insufficient information", found.RejectionRationale)
	s.Equal("Not eligible", found.RejectionReason.Name)
	s.Equal("outside region", found.RejectionReasonDetail)
	s.Require().Len(found.Notes, 1)
	s.Equal("REJECTED", found.Notes[0].Tag)
	s.Equal(assessments.StatusRejected, found.CurrentStatus())
}

func (s *PostgresStoreSuite) TestFindSummaries() {
	ctx := context.Background()
	region := domain.NewRegionID()
	app := s.seedApplication(region)

	unallocated := s.seedAssessment(app)
	claimed := s.seedAssessment(app)
	userID := domain.NewUserID()
	allocatedAt := time.Now().UTC()
	claimed.AllocatedToUserID = &userID
	claimed.AllocatedAt = &allocatedAt
	_, err := s.store.Save(ctx, claimed)
	s.Require().NoError(err)

	// Reallocated records never appear.
	superseded := s.seedAssessment(app)
	superseded.ReallocatedAt = &allocatedAt
	_, err = s.store.Save(ctx, superseded)
	s.Require().NoError(err)

	// Another region's work stays invisible.
	otherApp := s.seedApplication(domain.NewRegionID())
	s.seedAssessment(otherApp)

	rows, total, err := s.store.FindSummaries(ctx, assessments.SummaryQuery{
		RegionID: region,
		Page:     1,
		PerPage:  10,
		SortBy:   assessments.SortFieldCreatedAt,
	})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(rows, 2)

	rows, total, err = s.store.FindSummaries(ctx, assessments.SummaryQuery{
		RegionID: region,
		Statuses: []assessments.Status{assessments.StatusUnallocated},
		Page:     1,
		PerPage:  10,
		SortBy:   assessments.SortFieldCreatedAt,
	})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(rows, 1)
	s.Equal(unallocated.ID, rows[0].ID)
	s.Equal(assessments.StatusUnallocated, rows[0].Status)
}

// TestAdvisoryLockSerialization proves two transactions on the same
// aggregate cannot mutate concurrently: the second blocks until the first
// commits.
func (s *PostgresStoreSuite) TestAdvisoryLockSerialization() {
	ctx := context.Background()
	region := domain.NewRegionID()
	app := s.seedApplication(region)
	assessment := s.seedAssessment(app)

	locker := locks.NewAdvisoryLocker(s.postgres.DB)

	tx1, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	ctx1 := txcontext.WithTx(ctx, tx1)
	release1, err := locker.Acquire(ctx1, uuid.UUID(assessment.ID))
	s.Require().NoError(err)
	defer release1()

	acquired := make(chan struct{})
	go func() {
		tx2, err := s.postgres.DB.BeginTx(ctx, nil)
		if err != nil {
			close(acquired)
			return
		}
		defer func() { _ = tx2.Commit() }()
		ctx2 := txcontext.WithTx(ctx, tx2)
		release2, err := locker.Acquire(ctx2, uuid.UUID(assessment.ID))
		if err == nil {
			release2()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		s.Fail("second transaction acquired the lock while the first held it")
	case <-time.After(300 * time.Millisecond):
	}

	s.Require().NoError(tx1.Commit())

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		s.Fail("second transaction never acquired the lock after commit")
	}
}

func (s *PostgresStoreSuite) TestOutboxWriteSharesTransaction() {
	ctx := context.Background()
	region := domain.NewRegionID()
	app := s.seedApplication(region)
	assessment := s.seedAssessment(app)

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := txcontext.WithTx(ctx, tx)

	err = s.outbox.Append(txCtx, events.Event{
		Kind:          events.KindAssessmentRejected,
		Timestamp:     time.Now().UTC(),
		ApplicationID: app.ID,
		AssessmentID:  assessment.ID,
		CRN:           assessment.CRN,
	})
	s.Require().NoError(err)

	// Not visible before commit.
	var count int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM domain_events_outbox`).Scan(&count))
	s.Zero(count)

	s.Require().NoError(tx.Commit())
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM domain_events_outbox`).Scan(&count))
	s.Equal(1, count)
}
