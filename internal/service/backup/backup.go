package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/appolinair2355/Mon/internal/domain/models"
	"github.com/appolinair2355/Mon/internal/repository/sheets"
	"github.com/appolinair2355/Mon/internal/service/spreadsheet"
)

// Sheet names used by the roster mirror.
const (
	MirrorEcoliers = "Ecoliers"
	MirrorEleves   = "Eleves"
)

// Exporter writes the dataset as a workbook.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}

// Roster reads the tagged students.
type Roster interface {
	AllStudents(ctx context.Context) []models.TaggedStudent
}

// Result describes one backup run.
type Result struct {
	File     string
	Mirrored bool
}

// Service writes .xlsx snapshots and optionally mirrors the roster to Google Sheets.
type Service struct {
	exporter Exporter
	roster   Roster
	mirror   sheets.Repository
	dir      string
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires a backup service. mirror may be nil.
func NewService(exporter Exporter, roster Roster, mirror sheets.Repository, dir string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		exporter: exporter,
		roster:   roster,
		mirror:   mirror,
		dir:      dir,
		logger:   logger,
		now:      time.Now,
	}
}

// Run writes a snapshot then mirrors the roster. Both steps are attempted; errors are joined.
func (s *Service) Run(ctx context.Context) (Result, error) {
	var result Result

	file, snapErr := s.WriteSnapshot(ctx)
	if snapErr == nil {
		result.File = file
	}

	var mirrorErr error
	if s.mirror != nil {
		if mirrorErr = s.MirrorRoster(ctx); mirrorErr == nil {
			result.Mirrored = true
		}
	}

	return result, errors.Join(snapErr, mirrorErr)
}

// WriteSnapshot exports the dataset into the backup directory and returns the file path.
func (s *Service) WriteSnapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	path := filepath.Join(s.dir, spreadsheet.ExportFilename(s.now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}

	if err := s.exporter.Export(ctx, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("export snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close snapshot: %w", err)
	}

	s.logger.Info("snapshot written", zap.String("file", path))
	return path, nil
}

// MirrorRoster replaces the Ecoliers and Eleves sheets with the current students.
func (s *Service) MirrorRoster(ctx context.Context) error {
	if s.mirror == nil {
		return errors.New("roster mirror not configured")
	}

	rows := map[models.Category][][]interface{}{
		models.CategoryEcolier: {spreadsheet.StudentHeaders()},
		models.CategoryEleve:   {spreadsheet.StudentHeaders()},
	}
	for _, st := range s.roster.AllStudents(ctx) {
		row, err := spreadsheet.StudentRow(st)
		if err != nil {
			s.logger.Warn("tuition not computable", zap.String("category", string(st.Type)), zap.Int("id", st.ID), zap.Error(err))
		}
		rows[st.Type] = append(rows[st.Type], row)
	}

	if err := s.mirror.ReplaceSheet(ctx, MirrorEcoliers, rows[models.CategoryEcolier]); err != nil {
		return fmt.Errorf("mirror ecoliers: %w", err)
	}
	if err := s.mirror.ReplaceSheet(ctx, MirrorEleves, rows[models.CategoryEleve]); err != nil {
		return fmt.Errorf("mirror eleves: %w", err)
	}

	s.logger.Info("roster mirrored",
		zap.Int("ecoliers", len(rows[models.CategoryEcolier])-1),
		zap.Int("eleves", len(rows[models.CategoryEleve])-1))
	return nil
}
