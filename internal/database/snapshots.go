package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"livemenu/internal/models"
)

// LoadSnapshot reads every stored section. An empty store yields an empty
// snapshot and no error.
func (db *DB) LoadSnapshot(ctx context.Context) (models.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, data FROM menu_sections`)
	if err != nil {
		return models.Snapshot{}, err
	}
	defer rows.Close()

	snap := models.NewSnapshot()
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return models.Snapshot{}, err
		}
		section, err := decodeSection(key, []byte(data))
		if err != nil {
			return models.Snapshot{}, err
		}
		snap.Sections[models.SectionKey(key)] = section
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// SaveSnapshot replaces the stored menu with snap in one transaction.
func (db *DB) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_sections`); err != nil {
		return err
	}

	now := time.Now()
	for _, key := range models.SectionKeys {
		section, ok := snap.Sections[key]
		if !ok {
			continue
		}
		data, err := json.Marshal(section)
		if err != nil {
			return fmt.Errorf("encode section %s: %w", key, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO menu_sections (key, title, data, updated_at) VALUES (?, ?, ?, ?)`,
			string(key), section.Title, string(data), now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func decodeSection(key string, data []byte) (models.MenuSection, error) {
	var section models.MenuSection
	if err := json.Unmarshal(data, &section); err != nil {
		return models.MenuSection{}, fmt.Errorf("%w: section %s: %v", models.ErrInvalidSectionData, key, err)
	}
	return section, nil
}
