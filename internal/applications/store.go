package applications

import (
	"context"

	"casework/pkg/domain"
)

// Error Contract:
// All store methods follow this pattern:
// - Return sentinel.ErrNotFound (optionally wrapped) when the record does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// Store persists applications.
type Store interface {
	FindByID(ctx context.Context, id domain.ApplicationID) (*Application, error)
	Save(ctx context.Context, app *Application) (*Application, error)
	// SaveAndFlush durably commits before returning. The soft-delete path
	// uses it so the record is gone-for-edit the moment the call returns.
	SaveAndFlush(ctx context.Context, app *Application) (*Application, error)
}

// DeliveryUnitStore resolves delivery-unit reference data.
type DeliveryUnitStore interface {
	FindByID(ctx context.Context, id domain.DeliveryUnitID) (*DeliveryUnit, error)
}
