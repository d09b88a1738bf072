//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// project schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS probation_delivery_units (
	id   uuid PRIMARY KEY,
	name text NOT NULL
);

CREATE TABLE IF NOT EXISTS applications (
	id                         uuid PRIMARY KEY,
	crn                        text NOT NULL,
	created_by_user_id         uuid NOT NULL,
	probation_region_id        uuid NOT NULL,
	previous_region_id         uuid,
	previous_delivery_unit_id  uuid,
	document                   text NOT NULL DEFAULT '',
	created_at                 timestamptz NOT NULL,
	submitted_at               timestamptz,
	deleted_at                 timestamptz,
	arrival_date               timestamptz,
	needs_accessible_property  boolean NOT NULL DEFAULT false,
	has_history_of_arson       boolean NOT NULL DEFAULT false,
	is_registered_sex_offender boolean NOT NULL DEFAULT false,
	dtr_submission_date        timestamptz,
	dtr_outcome                text,
	dtr_local_authority        text,
	person_release_date        timestamptz,
	release_types              text,
	resolved_delivery_unit_id  uuid REFERENCES probation_delivery_units(id)
);

CREATE TABLE IF NOT EXISTS assessment_rejection_reasons (
	id   uuid PRIMARY KEY,
	name text NOT NULL
);

CREATE TABLE IF NOT EXISTS assessments (
	id                               uuid PRIMARY KEY,
	application_id                   uuid NOT NULL REFERENCES applications(id),
	crn                              text NOT NULL,
	probation_region_id              uuid NOT NULL,
	summary_data                     text NOT NULL DEFAULT '',
	arrival_date                     timestamptz,
	document                         text NOT NULL DEFAULT '',
	created_at                       timestamptz NOT NULL,
	allocated_to_user_id             uuid,
	allocated_at                     timestamptz,
	decision                         text,
	submitted_at                     timestamptz,
	completed_at                     timestamptz,
	reallocated_at                   timestamptz,
	release_date                     timestamptz,
	accommodation_required_from_date timestamptz,
	rejection_rationale              text NOT NULL DEFAULT '',
	rejection_reason_id              uuid REFERENCES assessment_rejection_reasons(id),
	rejection_reason_detail          text NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS assessment_notes (
	id                 uuid PRIMARY KEY,
	assessment_id      uuid NOT NULL REFERENCES assessments(id),
	note_type          text NOT NULL,
	tag                text NOT NULL,
	message            text NOT NULL DEFAULT '',
	created_at         timestamptz NOT NULL,
	created_by_user_id uuid NOT NULL,
	created_by_name    text NOT NULL
);

CREATE TABLE IF NOT EXISTS domain_events_outbox (
	id             uuid PRIMARY KEY,
	aggregate_type text NOT NULL,
	aggregate_id   uuid NOT NULL,
	event_type     text NOT NULL,
	payload        jsonb NOT NULL,
	created_at     timestamptz NOT NULL
);
`

// NewPostgresContainer starts a PostgreSQL container, applies the schema,
// and tears everything down when the test finishes.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("casework"),
		tcpostgres.WithUsername("casework"),
		tcpostgres.WithPassword("casework"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{Container: container, DB: db}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// TruncateTables clears the named tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf("TRUNCATE %s CASCADE", strings.Join(tables, ", ")))
	return err
}
