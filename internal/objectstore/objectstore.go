// Package objectstore хранит файлы функций save_to_file, read_from_file
// и download_file: в локальной директории или в S3-совместимом хранилище.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/shaiso/Sequencer/internal/config"
)

var (
	// ErrNotFound — объект не найден.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidName — недопустимое имя объекта.
	ErrInvalidName = errors.New("invalid object name")

	// ErrTooLarge — объект больше допустимого размера.
	ErrTooLarge = errors.New("object too large")
)

// Object — сохранённый объект.
type Object struct {
	Name     string
	Location string
	Size     int64
}

// Store — хранилище объектов.
type Store interface {
	// Put сохраняет содержимое r под именем name. size < 0 — размер неизвестен.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (Object, error)

	// Get читает объект целиком, не более limit байт (limit <= 0 — без ограничения).
	Get(ctx context.Context, name string, limit int64) ([]byte, error)
}

// New создаёт хранилище по конфигурации.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageS3:
		return NewMinIO(ctx, cfg.S3)
	case config.StorageLocal, "":
		return NewLocal(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// CleanName проверяет имя объекта и приводит его к каноническому виду.
// Допускаются вложенные пути без выхода за корень хранилища.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}

	cleaned := path.Clean("/" + name)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q escapes storage root", ErrInvalidName, name)
		}
	}
	return cleaned, nil
}

// readAll читает r, но не более limit байт.
func readAll(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
