package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"livemenu/internal/models"
)

// LocalSink stores artifacts under a directory.
type LocalSink struct {
	Dir string
}

func NewLocalSink(dir string) (*LocalSink, error) {
	// Создаем директорию для выгрузок
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating export directory: %w", err)
	}
	return &LocalSink{Dir: dir}, nil
}

func (s *LocalSink) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, filepath.FromSlash(k)), nil
}

func (s *LocalSink) Put(_ context.Context, key, contentType string, data []byte) (models.ArtifactRef, error) {
	p, err := s.path(key)
	if err != nil {
		return models.ArtifactRef{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return models.ArtifactRef{}, fmt.Errorf("create dir for %s: %w", key, err)
	}

	// written aside and renamed into place
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return models.ArtifactRef{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return models.ArtifactRef{}, fmt.Errorf("rename %s: %w", key, err)
	}

	return models.ArtifactRef{
		Name:        path.Base(key),
		ContentType: contentType,
		Location:    key,
		Size:        int64(len(data)),
	}, nil
}

func (s *LocalSink) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}
