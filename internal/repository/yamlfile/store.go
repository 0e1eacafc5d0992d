package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/appolinair2355/Mon/internal/domain/models"
)

// DefaultPath is where the document lives when no path is configured.
const DefaultPath = "data/ecoles.yaml"

// Store keeps the whole document in a single YAML file.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore prepares the data directory and seeds an empty document when the file is absent.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = DefaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &Store{path: path, logger: logger}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.Save(context.Background(), models.NewDocument()); err != nil {
			return nil, err
		}
		logger.Info("created empty data file", zap.String("path", path))
	}
	return s, nil
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and decodes the file. An empty file decodes to an empty document.
func (s *Store) Load(_ context.Context) (models.Document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return models.Document{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	doc := models.NewDocument()
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return models.Document{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	doc.Normalize()
	return doc, nil
}

// Save writes the document to a temporary file in the same directory and renames it
// over the target, so readers never observe a partial document.
func (s *Store) Save(_ context.Context, doc models.Document) error {
	doc.Normalize()
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.logger.Debug("document saved", zap.String("path", s.path), zap.Int("bytes", len(raw)))
	return nil
}
