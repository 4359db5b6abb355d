// Package filestore provides a triage.Store backed by a single JSON file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/intake/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/intake/internal/triage/filestore")

const filePerm = 0o640

// Store reads and writes the routing document at path. Writes go to a temp file in the
// same directory which is synced and renamed over the target, so readers see either the
// old or the new document and never a torn one.
type Store struct {
	path string
}

// New returns a Store for path. The parent directory is created if missing.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("filestore: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string { return s.path }

// Load parses the document file. A missing file yields triage.ErrNoConfig.
func (s *Store) Load(ctx context.Context) (*triage.Config, error) {
	_, span := tracer.Start(ctx, "filestore.Load", trace.WithAttributes(
		attribute.String("file.path", s.path),
	))
	defer span.End()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, triage.ErrNoConfig
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var cfg triage.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	span.SetAttributes(attribute.Int("file.size", len(data)))
	return &cfg, nil
}

// Save writes cfg as indented JSON, replacing the file atomically.
func (s *Store) Save(ctx context.Context, cfg *triage.Config) error {
	_, span := tracer.Start(ctx, "filestore.Save", trace.WithAttributes(
		attribute.String("file.path", s.path),
		attribute.Int("triage.rules", len(cfg.Rules)),
	))
	defer span.End()

	if err := s.write(cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Store) write(cfg *triage.Config) (err error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err = tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
