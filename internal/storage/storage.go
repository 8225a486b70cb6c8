package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"livemenu/internal/models"
)

var (
	ErrNotFound   = errors.New("artifact not found")
	ErrInvalidKey = errors.New("invalid artifact key")
)

// Sink keeps export artifacts. Keys are slash separated and relative.
type Sink interface {
	Put(ctx context.Context, key, contentType string, data []byte) (models.ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Key joins parts into a clean artifact key.
func Key(parts ...string) string {
	return path.Join(parts...)
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." || k != strings.TrimPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	return k, nil
}
