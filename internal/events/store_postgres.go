package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "casework/pkg/platform/tx"
)

// PostgresStore implements Store using the transactional outbox pattern:
// events land in the outbox table inside the same transaction as the state
// change, so an event exists exactly when its transition committed. A relay
// drains the table downstream.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON written to the outbox row.
type outboxPayload struct {
	ID            string            `json:"id"`
	Kind          string            `json:"kind"`
	Timestamp     string            `json:"timestamp"`
	ApplicationID string            `json:"applicationId,omitempty"`
	AssessmentID  string            `json:"assessmentId,omitempty"`
	CRN           string            `json:"crn,omitempty"`
	ActorID       string            `json:"actorId,omitempty"`
	ActorName     string            `json:"actorName,omitempty"`
	RequestID     string            `json:"requestId,omitempty"`
	Detail        map[string]string `json:"detail,omitempty"`
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:        eventID.String(),
		Kind:      string(event.Kind),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		CRN:       event.CRN.String(),
		ActorName: event.ActorName,
		RequestID: event.RequestID,
		Detail:    event.Detail,
	}
	if !event.ApplicationID.IsNil() {
		payload.ApplicationID = event.ApplicationID.String()
	}
	if !event.AssessmentID.IsNil() {
		payload.AssessmentID = event.AssessmentID.String()
	}
	if !event.ActorID.IsNil() {
		payload.ActorID = event.ActorID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	aggregateType := "application"
	aggregateID := payload.ApplicationID
	if !event.AssessmentID.IsNil() {
		aggregateType = "assessment"
		aggregateID = payload.AssessmentID
	}

	query := `
		INSERT INTO domain_events_outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		string(event.Kind),
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}
