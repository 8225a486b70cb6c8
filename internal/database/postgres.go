package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"livemenu/internal/models"
)

// PGStore is the PostgreSQL menu and archive store. Sections and archives
// are kept as JSONB documents.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

func NewPGStore(ctx context.Context, dsn string, maxConns int32, logger *zerolog.Logger) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	s := &PGStore{pool: pool, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS menu_sections (
			key TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS archives (
			id UUID PRIMARY KEY,
			note TEXT NOT NULL DEFAULT '',
			items INTEGER NOT NULL DEFAULT 0,
			data JSONB NOT NULL,
			archived_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_archives_archived_at ON archives(archived_at DESC)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) LoadSnapshot(ctx context.Context) (models.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, data FROM menu_sections`)
	if err != nil {
		return models.Snapshot{}, err
	}
	defer rows.Close()

	snap := models.NewSnapshot()
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return models.Snapshot{}, err
		}
		section, err := decodeSection(key, data)
		if err != nil {
			return models.Snapshot{}, err
		}
		snap.Sections[models.SectionKey(key)] = section
	}
	return snap, rows.Err()
}

func (s *PGStore) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM menu_sections`); err != nil {
			return err
		}
		for _, key := range models.SectionKeys {
			section, ok := snap.Sections[key]
			if !ok {
				continue
			}
			data, err := json.Marshal(section)
			if err != nil {
				return fmt.Errorf("encode section %s: %w", key, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO menu_sections (key, title, data, updated_at) VALUES ($1, $2, $3, now())`,
				string(key), section.Title, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PGStore) CreateArchive(ctx context.Context, snap models.Snapshot, note string) (models.ArchiveInfo, error) {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO archives (id, note, items, data, archived_at) VALUES ($1, $2, $3, $4, $5)`,
		info.ID, info.Note, info.Items, data, info.ArchivedAt)
	if err != nil {
		return models.ArchiveInfo{}, err
	}
	return info, nil
}

func (s *PGStore) ListArchives(ctx context.Context) ([]models.ArchiveInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, note, items, archived_at FROM archives ORDER BY archived_at DESC`)
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

func (s *PGStore) GetArchive(ctx context.Context, id string) (*models.Archive, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, id)
	}

	var (
		archive models.Archive
		data    []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, note, data, archived_at FROM archives WHERE id = $1`, id,
	).Scan(&archive.ID, &archive.Note, &data, &archive.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &archive.Snapshot); err != nil {
		return nil, fmt.Errorf("%w: archive %s: %v", models.ErrInvalidSectionData, id, err)
	}
	return &archive, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
