package applications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"casework/pkg/domain"
	"casework/pkg/platform/sentinel"
	txcontext "casework/pkg/platform/tx"
)

// PostgresStore persists applications in PostgreSQL. All statements run on
// the context transaction when one is present, so lifecycle writes share the
// unit of work that holds the aggregate's advisory lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const applicationColumns = `
	id, crn, created_by_user_id, probation_region_id,
	previous_region_id, previous_delivery_unit_id,
	document, created_at, submitted_at, deleted_at, arrival_date,
	needs_accessible_property, has_history_of_arson, is_registered_sex_offender,
	dtr_submission_date, dtr_outcome, dtr_local_authority,
	person_release_date, release_types, resolved_delivery_unit_id
`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ApplicationID) (*Application, error) {
	row := s.runner(ctx).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, uuid.UUID(id))

	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find application %s: %w", id, err)
	}
	if app.ResolvedDeliveryUnit != nil {
		if err := s.loadDeliveryUnit(ctx, app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func (s *PostgresStore) Save(ctx context.Context, app *Application) (*Application, error) {
	var (
		prevRegion, prevUnit, resolvedUnit any
	)
	if app.PreviousRegionID != nil {
		prevRegion = uuid.UUID(*app.PreviousRegionID)
	}
	if app.PreviousDeliveryUnitID != nil {
		prevUnit = uuid.UUID(*app.PreviousDeliveryUnitID)
	}
	if app.ResolvedDeliveryUnit != nil {
		resolvedUnit = uuid.UUID(app.ResolvedDeliveryUnit.ID)
	}

	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			submitted_at = EXCLUDED.submitted_at,
			deleted_at = EXCLUDED.deleted_at,
			arrival_date = EXCLUDED.arrival_date,
			needs_accessible_property = EXCLUDED.needs_accessible_property,
			has_history_of_arson = EXCLUDED.has_history_of_arson,
			is_registered_sex_offender = EXCLUDED.is_registered_sex_offender,
			dtr_submission_date = EXCLUDED.dtr_submission_date,
			dtr_outcome = EXCLUDED.dtr_outcome,
			dtr_local_authority = EXCLUDED.dtr_local_authority,
			person_release_date = EXCLUDED.person_release_date,
			release_types = EXCLUDED.release_types,
			resolved_delivery_unit_id = EXCLUDED.resolved_delivery_unit_id
	`,
		uuid.UUID(app.ID), app.CRN.String(), uuid.UUID(app.CreatedByUserID), uuid.UUID(app.ProbationRegionID),
		prevRegion, prevUnit,
		app.Document, app.CreatedAt, app.SubmittedAt, app.DeletedAt, app.ArrivalDate,
		app.NeedsAccessibleProperty, app.HasHistoryOfArson, app.IsRegisteredSexOffender,
		app.DutyToReferSubmissionDate, app.DutyToReferOutcome, app.DutyToReferLocalAuthority,
		app.PersonReleaseDate, app.ReleaseTypes, resolvedUnit,
	)
	if err != nil {
		return nil, fmt.Errorf("save application %s: %w", app.ID, err)
	}
	return app, nil
}

// SaveAndFlush commits the write immediately when no surrounding transaction
// exists; inside a transaction it degrades to Save and the caller's commit is
// the flush.
func (s *PostgresStore) SaveAndFlush(ctx context.Context, app *Application) (*Application, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.Save(ctx, app)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin flush tx: %w", err)
	}
	saved, err := s.Save(txcontext.WithTx(ctx, tx), app)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("flush application %s: %w", app.ID, err)
	}
	return saved, nil
}

func (s *PostgresStore) loadDeliveryUnit(ctx context.Context, app *Application) error {
	row := s.runner(ctx).QueryRowContext(ctx,
		`SELECT id, name FROM probation_delivery_units WHERE id = $1`,
		uuid.UUID(app.ResolvedDeliveryUnit.ID))

	var unitID uuid.UUID
	var name string
	if err := row.Scan(&unitID, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			app.ResolvedDeliveryUnit = nil
			return nil
		}
		return fmt.Errorf("load delivery unit for application %s: %w", app.ID, err)
	}
	app.ResolvedDeliveryUnit = &DeliveryUnit{ID: domain.DeliveryUnitID(unitID), Name: name}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*Application, error) {
	var (
		app                              Application
		appID, createdBy, region         uuid.UUID
		crn                              string
		prevRegion, prevUnit, resolvedID uuid.NullUUID
		dtrOutcome, dtrAuthority         sql.NullString
		releaseTypes                     sql.NullString
		submittedAt, deletedAt           sql.NullTime
		arrivalDate, dtrDate, releaseAt  sql.NullTime
	)

	err := row.Scan(
		&appID, &crn, &createdBy, &region,
		&prevRegion, &prevUnit,
		&app.Document, &app.CreatedAt, &submittedAt, &deletedAt, &arrivalDate,
		&app.NeedsAccessibleProperty, &app.HasHistoryOfArson, &app.IsRegisteredSexOffender,
		&dtrDate, &dtrOutcome, &dtrAuthority,
		&releaseAt, &releaseTypes, &resolvedID,
	)
	if err != nil {
		return nil, err
	}

	app.ID = domain.ApplicationID(appID)
	app.CRN = domain.CRN(crn)
	app.CreatedByUserID = domain.UserID(createdBy)
	app.ProbationRegionID = domain.RegionID(region)
	if prevRegion.Valid {
		id := domain.RegionID(prevRegion.UUID)
		app.PreviousRegionID = &id
	}
	if prevUnit.Valid {
		id := domain.DeliveryUnitID(prevUnit.UUID)
		app.PreviousDeliveryUnitID = &id
	}
	if submittedAt.Valid {
		app.SubmittedAt = &submittedAt.Time
	}
	if deletedAt.Valid {
		app.DeletedAt = &deletedAt.Time
	}
	if arrivalDate.Valid {
		app.ArrivalDate = &arrivalDate.Time
	}
	if dtrDate.Valid {
		app.DutyToReferSubmissionDate = &dtrDate.Time
	}
	app.DutyToReferOutcome = dtrOutcome.String
	app.DutyToReferLocalAuthority = dtrAuthority.String
	if releaseAt.Valid {
		app.PersonReleaseDate = &releaseAt.Time
	}
	app.ReleaseTypes = releaseTypes.String
	if resolvedID.Valid {
		// Name loads in a second query; FindByID fills it in.
		app.ResolvedDeliveryUnit = &DeliveryUnit{ID: domain.DeliveryUnitID(resolvedID.UUID)}
	}
	return &app, nil
}

// PostgresDeliveryUnitStore resolves delivery-unit reference data.
type PostgresDeliveryUnitStore struct {
	db *sql.DB
}

func NewPostgresDeliveryUnitStore(db *sql.DB) *PostgresDeliveryUnitStore {
	return &PostgresDeliveryUnitStore{db: db}
}

func (s *PostgresDeliveryUnitStore) FindByID(ctx context.Context, id domain.DeliveryUnitID) (*DeliveryUnit, error) {
	var unitID uuid.UUID
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM probation_delivery_units WHERE id = $1`, uuid.UUID(id)).
		Scan(&unitID, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delivery unit %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find delivery unit %s: %w", id, err)
	}
	return &DeliveryUnit{ID: domain.DeliveryUnitID(unitID), Name: name}, nil
}
