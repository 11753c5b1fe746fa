package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local хранит объекты в директории на диске.
type Local struct {
	dir string
}

// NewLocal создаёт хранилище в dir. Директория создаётся при необходимости.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage: empty directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &Local{dir: abs}, nil
}

// Dir возвращает корневую директорию.
func (l *Local) Dir() string { return l.dir }

func (l *Local) pathFor(name string) (string, string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", "", err
	}
	return clean, filepath.Join(l.dir, filepath.FromSlash(clean)), nil
}

// Put записывает объект в файл.
func (l *Local) Put(ctx context.Context, name string, r io.Reader, _ int64, _ string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	clean, p, err := l.pathFor(name)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Object{}, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(p)
	if err != nil {
		return Object{}, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return Object{}, fmt.Errorf("write file: %w", err)
	}

	return Object{Name: clean, Location: p, Size: n}, nil
}

// Get читает объект из файла.
func (l *Local) Get(ctx context.Context, name string, limit int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, p, err := l.pathFor(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return readAll(f, limit)
}
