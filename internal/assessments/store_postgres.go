package assessments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"casework/pkg/domain"
	"casework/pkg/platform/sentinel"
	txcontext "casework/pkg/platform/tx"
)

// PostgresStore persists assessments in PostgreSQL. Statements run on the
// context transaction when one is present, so writes share the unit of work
// that holds the aggregate's advisory lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const assessmentColumns = `
	a.id, a.application_id, a.crn, a.probation_region_id,
	a.summary_data, a.arrival_date, a.document, a.created_at,
	a.allocated_to_user_id, a.allocated_at,
	a.decision, a.submitted_at, a.completed_at, a.reallocated_at,
	a.release_date, a.accommodation_required_from_date,
	a.rejection_rationale, a.rejection_reason_id, a.rejection_reason_detail
`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.AssessmentID) (*Assessment, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		SELECT `+assessmentColumns+`, r.name
		FROM assessments a
		LEFT JOIN assessment_rejection_reasons r ON r.id = a.rejection_reason_id
		WHERE a.id = $1`, uuid.UUID(id))

	assessment, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find assessment %s: %w", id, err)
	}
	if err := s.loadNotes(ctx, assessment); err != nil {
		return nil, err
	}
	return assessment, nil
}

func (s *PostgresStore) Save(ctx context.Context, assessment *Assessment) (*Assessment, error) {
	var allocatedTo, decision, reasonID any
	if assessment.AllocatedToUserID != nil {
		allocatedTo = uuid.UUID(*assessment.AllocatedToUserID)
	}
	if assessment.Decision != nil {
		decision = string(*assessment.Decision)
	}
	if assessment.RejectionReason != nil {
		reasonID = assessment.RejectionReason.ID
	}

	run := s.runner(ctx)
	_, err := run.ExecContext(ctx, `
		INSERT INTO assessments (
			id, application_id, crn, probation_region_id,
			summary_data, arrival_date, document, created_at,
			allocated_to_user_id, allocated_at,
			decision, submitted_at, completed_at, reallocated_at,
			release_date, accommodation_required_from_date,
			rejection_rationale, rejection_reason_id, rejection_reason_detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			allocated_to_user_id = EXCLUDED.allocated_to_user_id,
			allocated_at = EXCLUDED.allocated_at,
			decision = EXCLUDED.decision,
			submitted_at = EXCLUDED.submitted_at,
			completed_at = EXCLUDED.completed_at,
			reallocated_at = EXCLUDED.reallocated_at,
			release_date = EXCLUDED.release_date,
			accommodation_required_from_date = EXCLUDED.accommodation_required_from_date,
			rejection_rationale = EXCLUDED.rejection_rationale,
			rejection_reason_id = EXCLUDED.rejection_reason_id,
			rejection_reason_detail = EXCLUDED.rejection_reason_detail
	`,
		uuid.UUID(assessment.ID), uuid.UUID(assessment.ApplicationID), assessment.CRN.String(),
		uuid.UUID(assessment.ProbationRegionID),
		assessment.SummaryData, assessment.ArrivalDate, assessment.Document, assessment.CreatedAt,
		allocatedTo, assessment.AllocatedAt,
		decision, assessment.SubmittedAt, assessment.CompletedAt, assessment.ReallocatedAt,
		assessment.ReleaseDate, assessment.AccommodationRequiredFromDate,
		assessment.RejectionRationale, reasonID, assessment.RejectionReasonDetail,
	)
	if err != nil {
		return nil, fmt.Errorf("save assessment %s: %w", assessment.ID, err)
	}

	// Notes are append-only; ON CONFLICT DO NOTHING makes re-saving the
	// aggregate idempotent for notes already written.
	for _, note := range assessment.Notes {
		_, err := run.ExecContext(ctx, `
			INSERT INTO assessment_notes (
				id, assessment_id, note_type, tag, message,
				created_at, created_by_user_id, created_by_name
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`,
			note.ID, uuid.UUID(note.AssessmentID), string(note.Type), note.Tag, note.Message,
			note.CreatedAt, uuid.UUID(note.CreatedByID), note.CreatedByName,
		)
		if err != nil {
			return nil, fmt.Errorf("save note %s for assessment %s: %w", note.ID, assessment.ID, err)
		}
	}
	return assessment, nil
}

// FindSummaries selects one page of flattened rows. Reallocated records are
// excluded: they are superseded history, not open work.
func (s *PostgresStore) FindSummaries(ctx context.Context, query SummaryQuery) ([]Summary, int, error) {
	where := []string{"a.probation_region_id = $1", "a.reallocated_at IS NULL"}
	args := []any{uuid.UUID(query.RegionID)}

	if query.CRN != nil {
		args = append(args, query.CRN.String())
		where = append(where, fmt.Sprintf("a.crn = $%d", len(args)))
	}
	if len(query.Statuses) > 0 {
		statuses := make([]string, 0, len(query.Statuses))
		for _, st := range query.Statuses {
			statuses = append(statuses, string(st))
		}
		args = append(args, "{"+strings.Join(statuses, ",")+"}")
		where = append(where, fmt.Sprintf(statusExpr+" = ANY($%d::text[])", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	err := s.runner(ctx).QueryRowContext(ctx, `
		SELECT count(*)
		FROM assessments a
		WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count assessment summaries: %w", err)
	}

	offset := (query.Page - 1) * query.PerPage
	args = append(args, query.PerPage, offset)
	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT a.id, a.application_id, a.crn, `+statusExpr+`, a.created_at, a.arrival_date
		FROM assessments a
		WHERE `+whereClause+`
		ORDER BY `+orderClause(query.SortBy, query.SortDesc)+`
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query assessment summaries: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var (
			summary       Summary
			assessmentID  uuid.UUID
			applicationID uuid.UUID
			crn, status   string
			arrivalDate   sql.NullTime
		)
		if err := rows.Scan(&assessmentID, &applicationID, &crn, &status, &summary.CreatedAt, &arrivalDate); err != nil {
			return nil, 0, fmt.Errorf("scan assessment summary: %w", err)
		}
		summary.ID = domain.AssessmentID(assessmentID)
		summary.ApplicationID = domain.ApplicationID(applicationID)
		summary.CRN = domain.CRN(crn)
		summary.Status = Status(status)
		if arrivalDate.Valid {
			summary.ArrivalDate = &arrivalDate.Time
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate assessment summaries: %w", err)
	}
	return summaries, total, nil
}

// statusExpr mirrors Assessment.CurrentStatus in SQL so filtering and the
// returned column agree with the in-memory derivation.
const statusExpr = `(CASE
	WHEN a.decision = 'REJECTED' THEN 'rejected'
	WHEN a.completed_at IS NOT NULL THEN 'closed'
	WHEN a.allocated_to_user_id IS NULL THEN 'unallocated'
	ELSE 'in_review'
END)`

// orderClause whitelists sort expressions; SortField values never come from
// caller input unchecked, the service translates aliases first.
func orderClause(field SortField, desc bool) string {
	var expr string
	switch field {
	case SortFieldCRN:
		expr = "a.crn"
	case SortFieldArrivalDate:
		expr = "a.arrival_date"
	case SortFieldStatus:
		expr = statusExpr
	default:
		expr = "a.created_at"
	}
	if desc {
		return expr + " DESC"
	}
	return expr + " ASC"
}

func (s *PostgresStore) loadNotes(ctx context.Context, assessment *Assessment) error {
	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT id, assessment_id, note_type, tag, message,
		       created_at, created_by_user_id, created_by_name
		FROM assessment_notes
		WHERE assessment_id = $1
		ORDER BY created_at ASC`, uuid.UUID(assessment.ID))
	if err != nil {
		return fmt.Errorf("load notes for assessment %s: %w", assessment.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			note         HistoryNote
			assessmentID uuid.UUID
			noteType     string
		)
		if err := rows.Scan(&note.ID, &assessmentID, &noteType, &note.Tag, &note.Message,
			&note.CreatedAt, (*uuid.UUID)(&note.CreatedByID), &note.CreatedByName); err != nil {
			return fmt.Errorf("scan note for assessment %s: %w", assessment.ID, err)
		}
		note.AssessmentID = domain.AssessmentID(assessmentID)
		note.Type = NoteType(noteType)
		assessment.Notes = append(assessment.Notes, note)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*Assessment, error) {
	var (
		a                        Assessment
		id, applicationID        uuid.UUID
		region                   uuid.UUID
		crn                      string
		allocatedTo, reasonID    uuid.NullUUID
		decision, reasonName     sql.NullString
		allocatedAt, submittedAt sql.NullTime
		completedAt, reallocAt   sql.NullTime
		releaseDate, accomDate   sql.NullTime
		arrivalDate              sql.NullTime
	)

	err := row.Scan(
		&id, &applicationID, &crn, &region,
		&a.SummaryData, &arrivalDate, &a.Document, &a.CreatedAt,
		&allocatedTo, &allocatedAt,
		&decision, &submittedAt, &completedAt, &reallocAt,
		&releaseDate, &accomDate,
		&a.RejectionRationale, &reasonID, &a.RejectionReasonDetail,
		&reasonName,
	)
	if err != nil {
		return nil, err
	}

	a.ID = domain.AssessmentID(id)
	a.ApplicationID = domain.ApplicationID(applicationID)
	a.CRN = domain.CRN(crn)
	a.ProbationRegionID = domain.RegionID(region)
	if arrivalDate.Valid {
		a.ArrivalDate = &arrivalDate.Time
	}
	if allocatedTo.Valid {
		userID := domain.UserID(allocatedTo.UUID)
		a.AllocatedToUserID = &userID
	}
	if allocatedAt.Valid {
		a.AllocatedAt = &allocatedAt.Time
	}
	if decision.Valid {
		d := Decision(decision.String)
		a.Decision = &d
	}
	if submittedAt.Valid {
		a.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	if reallocAt.Valid {
		a.ReallocatedAt = &reallocAt.Time
	}
	if releaseDate.Valid {
		a.ReleaseDate = &releaseDate.Time
	}
	if accomDate.Valid {
		a.AccommodationRequiredFromDate = &accomDate.Time
	}
	if reasonID.Valid {
		a.RejectionReason = &RejectionReason{ID: reasonID.UUID, Name: reasonName.String}
	}
	return &a, nil
}

// PostgresRejectionReasonStore resolves rejection-reason reference data.
type PostgresRejectionReasonStore struct {
	db *sql.DB
}

func NewPostgresRejectionReasonStore(db *sql.DB) *PostgresRejectionReasonStore {
	return &PostgresRejectionReasonStore{db: db}
}

func (s *PostgresRejectionReasonStore) FindByID(ctx context.Context, id uuid.UUID) (*RejectionReason, error) {
	var reason RejectionReason
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM assessment_rejection_reasons WHERE id = $1`, id).
		Scan(&reason.ID, &reason.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rejection reason %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find rejection reason %s: %w", id, err)
	}
	return &reason, nil
}
