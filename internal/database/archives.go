package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"livemenu/internal/models"
)

// CreateArchive stores a deep copy of snap and returns its id.
func (db *DB) CreateArchive(ctx context.Context, snap models.Snapshot, note string) (models.ArchiveInfo, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return models.ArchiveInfo{}, fmt.Errorf("encode archive: %w", err)
	}

	info := models.ArchiveInfo{
		ID:         uuid.NewString(),
		Note:       note,
		ArchivedAt: time.Now().UTC(),
		Items:      snap.ItemCount(),
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO archives (id, note, items, data, archived_at) VALUES (?, ?, ?, ?, ?)`,
		info.ID, info.Note, info.Items, string(data), info.ArchivedAt)
	if err != nil {
		return models.ArchiveInfo{}, err
	}
	return info, nil
}

// ListArchives returns archive headers, newest first.
func (db *DB) ListArchives(ctx context.Context) ([]models.ArchiveInfo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, note, items, archived_at FROM archives ORDER BY archived_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ArchiveInfo
	for rows.Next() {
		var info models.ArchiveInfo
		if err := rows.Scan(&info.ID, &info.Note, &info.Items, &info.ArchivedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (db *DB) GetArchive(ctx context.Context, id string) (*models.Archive, error) {
	var (
		archive models.Archive
		data    string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, note, data, archived_at FROM archives WHERE id = ?`, id,
	).Scan(&archive.ID, &archive.Note, &data, &archive.ArchivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &archive.Snapshot); err != nil {
		return nil, fmt.Errorf("%w: archive %s: %v", models.ErrInvalidSectionData, id, err)
	}
	return &archive, nil
}
