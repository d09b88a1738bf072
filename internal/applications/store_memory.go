package applications

import (
	"context"
	"fmt"
	"sync"

	"casework/pkg/domain"
	"casework/pkg/platform/sentinel"
)

// In-memory stores keep the initial implementation lightweight and testable.
// They intentionally favor clarity over performance.
type InMemoryStore struct {
	mu   sync.RWMutex
	apps map[domain.ApplicationID]Application
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{apps: make(map[domain.ApplicationID]Application)}
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ApplicationID) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if app, ok := s.apps[id]; ok {
		copied := app
		return &copied, nil
	}
	return nil, fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Save(_ context.Context, app *Application) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ID] = *app
	copied := *app
	return &copied, nil
}

// SaveAndFlush is identical to Save for the in-memory store; there is no
// deferred write to flush.
func (s *InMemoryStore) SaveAndFlush(ctx context.Context, app *Application) (*Application, error) {
	return s.Save(ctx, app)
}

// InMemoryDeliveryUnitStore holds delivery-unit reference data for tests.
type InMemoryDeliveryUnitStore struct {
	mu    sync.RWMutex
	units map[domain.DeliveryUnitID]DeliveryUnit
}

func NewInMemoryDeliveryUnitStore() *InMemoryDeliveryUnitStore {
	return &InMemoryDeliveryUnitStore{units: make(map[domain.DeliveryUnitID]DeliveryUnit)}
}

func (s *InMemoryDeliveryUnitStore) Seed(unit DeliveryUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[unit.ID] = unit
}

func (s *InMemoryDeliveryUnitStore) FindByID(_ context.Context, id domain.DeliveryUnitID) (*DeliveryUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if unit, ok := s.units[id]; ok {
		copied := unit
		return &copied, nil
	}
	return nil, fmt.Errorf("delivery unit %s: %w", id, sentinel.ErrNotFound)
}
