package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
)

// InsertActivity appends an audit trail entry
func (u *unit) InsertActivity(ctx context.Context, entry *models.ActivityLog) error {
	return sqlxGet(ctx, u.q, &entry.ID, `
		INSERT INTO activity_logs (actor, action, entity, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		entry.Actor, entry.Action, entry.Entity, entry.EntityID, entry.Details, entry.CreatedAt)
}

// InsertActivity appends an audit trail entry outside of any transaction
func (s *Store) InsertActivity(ctx context.Context, entry *models.ActivityLog) error {
	return s.pool().InsertActivity(ctx, entry)
}

// GetActivities returns audit entries for one entity, oldest first
func (s *Store) GetActivities(ctx context.Context, entity string, entityID int64) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := sqlxSelect(ctx, s.db, &entries,
		"SELECT * FROM activity_logs WHERE entity = ? AND entity_id = ? ORDER BY id", entity, entityID)
	return entries, err
}

// GetSetting retrieves a stored setting value
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := sqlxGet(ctx, s.db, &value, "SELECT setting_value FROM settings WHERE setting_key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	return value, err
}

// GetSettings retrieves all stored settings
func (s *Store) GetSettings(ctx context.Context) (map[string]string, error) {
	var rows []models.Setting
	if err := s.db.SelectContext(ctx, &rows, "SELECT setting_key, setting_value, updated_at FROM settings"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// PutSetting creates or replaces a setting
func (s *Store) PutSetting(ctx context.Context, key, value string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO settings (setting_key, setting_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (setting_key) DO UPDATE SET setting_value = excluded.setting_value,
			updated_at = excluded.updated_at`),
		key, value, at)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := sqlxGet(ctx, s.db, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = ?)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		"INSERT INTO processed_events (event_id, event_type, processed_at) VALUES (?, ?, ?) ON CONFLICT (event_id) DO NOTHING"),
		eventID, eventType, at)
	return err
}
