package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// SettingsService reads and saves site settings.
// Pack visibility is read on every plan page, so it is kept in memory after the first load.
type SettingsService struct {
	store  SettingsStore
	logger *slog.Logger

	mu         sync.RWMutex
	visibility model.PackVisibility
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(store SettingsStore, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		logger: logger.With("component", "service.settings"),
	}
}

// PackVisibility returns the pack switches. A failed load shows every pack.
func (s *SettingsService) PackVisibility(ctx context.Context) model.PackVisibility {
	s.mu.RLock()
	v := s.visibility
	s.mu.RUnlock()
	if v != nil {
		return v
	}

	loaded, err := s.store.PackVisibility(ctx)
	if err != nil {
		s.logger.Warn("failed to load pack visibility, showing all packs", "error", err)
		return model.DefaultPackVisibility()
	}

	s.mu.Lock()
	s.visibility = loaded
	s.mu.Unlock()
	return loaded
}

// SavePackVisibility stores the switches and refreshes the in-memory copy.
func (s *SettingsService) SavePackVisibility(ctx context.Context, v model.PackVisibility) error {
	v = v.Normalize()
	if err := s.store.SavePackVisibility(ctx, v); err != nil {
		return fmt.Errorf("failed to save pack visibility: %w", err)
	}

	s.mu.Lock()
	s.visibility = v
	s.mu.Unlock()

	s.logger.Info("pack visibility saved",
		"free", v.IsActive(model.PackFree),
		"pro", v.IsActive(model.PackPro),
		"ultimate", v.IsActive(model.PackUltimate))
	return nil
}
