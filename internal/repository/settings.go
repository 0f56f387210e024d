package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/myfreehouseplans/catalog/internal/model"
)

const packVisibilityKey = "pack_visibility"

// SettingsRepository stores site-wide settings as JSON documents.
type SettingsRepository struct {
	repo *Repository
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(repo *Repository) *SettingsRepository {
	return &SettingsRepository{repo: repo}
}

// Get decodes the setting stored under key into dst.
func (r *SettingsRepository) Get(ctx context.Context, key string, dst any) error {
	var raw []byte
	err := r.repo.pool.QueryRow(ctx, `SELECT value FROM site_settings WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return nil
}

// Put stores value under key.
func (r *SettingsRepository) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	_, err = r.repo.pool.Exec(ctx, `
		INSERT INTO site_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// PackVisibility loads the pack switches, defaulting every pack to visible.
func (r *SettingsRepository) PackVisibility(ctx context.Context) (model.PackVisibility, error) {
	var stored map[string]bool
	if err := r.Get(ctx, packVisibilityKey, &stored); err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.DefaultPackVisibility(), nil
		}
		return nil, err
	}

	v := model.PackVisibility{}
	for k, active := range stored {
		if n, err := strconv.Atoi(k); err == nil {
			v[model.Pack(n)] = active
		}
	}
	return v.Normalize(), nil
}

// SavePackVisibility stores the pack switches.
func (r *SettingsRepository) SavePackVisibility(ctx context.Context, v model.PackVisibility) error {
	stored := make(map[string]bool, len(v))
	for p, active := range v.Normalize() {
		stored[strconv.Itoa(int(p))] = active
	}
	return r.Put(ctx, packVisibilityKey, stored)
}
