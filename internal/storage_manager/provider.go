// Package storage_manager provides blob storage for file-backed document stores.
// Local directories and S3 buckets are supported; callers get prefix-scoped
// providers so that several stores can share one bucket or directory.
package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Read when the object does not exist.
var ErrNotFound = errors.New("object not found")

// FileProvider is a flat key/blob store addressed by slash-separated paths.
type FileProvider interface {
	// Read returns the object content or ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)
	// Write creates or replaces the object.
	Write(ctx context.Context, path string, data []byte) error
	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, path string) error
	// List returns every object path below prefix, recursively.
	List(ctx context.Context, prefix string) ([]string, error)
}

// LocalFileProvider stores objects as files below a base directory.
type LocalFileProvider struct {
	baseDir string
}

// NewLocalFileProvider creates a provider rooted at baseDir.
func NewLocalFileProvider(baseDir string) *LocalFileProvider {
	return &LocalFileProvider{baseDir: baseDir}
}

func (p *LocalFileProvider) full(path string) string {
	return filepath.Join(p.baseDir, filepath.FromSlash(path))
}

// Read reads a file.
func (p *LocalFileProvider) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(p.full(path)) //nolint:gosec // G304: path is below the configured base dir
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return data, err
}

// Write writes a file atomically by renaming a temp file into place.
func (p *LocalFileProvider) Write(_ context.Context, path string, data []byte) error {
	full := p.full(path)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), full)
}

// Delete removes a file.
func (p *LocalFileProvider) Delete(_ context.Context, path string) error {
	err := os.Remove(p.full(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List walks the directory below prefix. Temp files from in-flight writes are skipped.
func (p *LocalFileProvider) List(_ context.Context, prefix string) ([]string, error) {
	var result []string
	err := filepath.WalkDir(p.full(prefix), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(p.baseDir, path)
		if err != nil {
			return err
		}
		result = append(result, filepath.ToSlash(rel))
		return nil
	})
	return result, err
}

// PrefixedFileProvider scopes another provider to a namespace.
type PrefixedFileProvider struct {
	provider FileProvider
	prefix   string
}

// NewPrefixedFileProvider wraps provider so every path is placed under prefix.
func NewPrefixedFileProvider(provider FileProvider, prefix string) *PrefixedFileProvider {
	return &PrefixedFileProvider{provider: provider, prefix: strings.Trim(prefix, "/")}
}

func (p *PrefixedFileProvider) scoped(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}

func (p *PrefixedFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.provider.Read(ctx, p.scoped(path))
}

func (p *PrefixedFileProvider) Write(ctx context.Context, path string, data []byte) error {
	return p.provider.Write(ctx, p.scoped(path), data)
}

func (p *PrefixedFileProvider) Delete(ctx context.Context, path string) error {
	return p.provider.Delete(ctx, p.scoped(path))
}

// List strips the namespace from the returned paths.
func (p *PrefixedFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	files, err := p.provider.List(ctx, p.scoped(prefix))
	if err != nil {
		return nil, err
	}
	strip := p.scoped("")
	result := make([]string, 0, len(files))
	for _, f := range files {
		if rel, ok := strings.CutPrefix(f, strip); ok {
			result = append(result, rel)
		}
	}
	return result, nil
}
