// Package settings holds the process-wide mutable preferences: the selected
// model identifier and the sidebar fold state. Both are loaded once at startup
// and written through to the store on every change.
package settings

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tailedflox9-maker/studychat/internal/models"
)

// backend is the slice of the store the manager persists through.
type backend interface {
	LoadAPISettings(ctx context.Context, defaultModel string) (*models.APISettings, error)
	SaveAPISettings(ctx context.Context, settings *models.APISettings) error
	LoadUIState(ctx context.Context) (*models.UIState, error)
	SaveUIState(ctx context.Context, state *models.UIState) error
}

// Manager caches the persisted settings slots. Reads are served from memory;
// writes update memory first and then the store, keeping local state
// authoritative when the write fails.
type Manager struct {
	store  backend
	logger *slog.Logger

	mu  sync.RWMutex
	api models.APISettings
	ui  models.UIState
}

// Load reads both settings slots, applying defaults for missing fields.
// A failed read is fatal at startup since nothing sensible can stream without
// a model selection.
func Load(ctx context.Context, store backend, defaultModel string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	api, err := store.LoadAPISettings(ctx, defaultModel)
	if err != nil {
		return nil, err
	}
	ui, err := store.LoadUIState(ctx)
	if err != nil {
		return nil, err
	}

	return &Manager{
		store:  store,
		logger: logger,
		api:    *api,
		ui:     *ui,
	}, nil
}

// CurrentModel returns the selected model identifier.
func (m *Manager) CurrentModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.api.SelectedModel
}

// SetModel selects a model and persists the choice. The in-memory selection
// sticks even when the write fails; the error is surfaced for user messaging.
func (m *Manager) SetModel(ctx context.Context, model string) error {
	m.mu.Lock()
	m.api.SelectedModel = model
	api := m.api
	m.mu.Unlock()

	if err := m.store.SaveAPISettings(ctx, &api); err != nil {
		m.logger.Warn("model selection not persisted", "model", model, "error", err)
		return err
	}
	return nil
}

// SidebarFolded returns the persisted sidebar fold state.
func (m *Manager) SidebarFolded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ui.SidebarFolded
}

// SetSidebarFolded stores the fold state. Best-effort; a lost preference
// write is logged and otherwise ignored.
func (m *Manager) SetSidebarFolded(ctx context.Context, folded bool) {
	m.mu.Lock()
	m.ui.SidebarFolded = folded
	ui := m.ui
	m.mu.Unlock()

	if err := m.store.SaveUIState(ctx, &ui); err != nil {
		m.logger.Warn("sidebar state not persisted", "error", err)
	}
}
