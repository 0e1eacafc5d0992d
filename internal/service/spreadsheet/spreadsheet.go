package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/appolinair2355/Mon/internal/domain/models"
	"github.com/appolinair2355/Mon/internal/service/school"
)

const (
	SheetEcoliers = "Écoliers"
	SheetEleves   = "Élèves"
	SheetNotes    = "Notes"

	// ImportRegistrar is recorded as nom_enregistreur on imported students.
	ImportRegistrar = "Import Excel"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	studentHeaders = []string{"ID", "Nom", "Prénoms", "Sexe", "Date de naissance", "Classe", "Numéro parents", "Montant scolarité", "Total payé", "Reste", "Date inscription"}
	noteHeaders    = []string{"Étudiant", "Classe", "Matière", "Note", "Date"}

	studentSheets = []struct {
		name     string
		category models.Category
	}{
		{SheetEcoliers, models.CategoryEcolier},
		{SheetEleves, models.CategoryEleve},
	}
)

// ErrNoSheets indicates a workbook with none of the expected sheets.
var ErrNoSheets = errors.New("workbook has no Écoliers, Élèves or Notes sheet")

// Registry is the part of the access layer used by imports and exports.
type Registry interface {
	LoadAll(ctx context.Context) models.Document
	SaveAll(ctx context.Context, doc models.Document) error
	AddStudent(ctx context.Context, category models.Category, input models.StudentInput) (int, error)
	AllStudents(ctx context.Context) []models.TaggedStudent
	AddNotes(ctx context.Context, inputs []models.NoteInput) error
}

// ImportResult counts what an import loaded.
type ImportResult struct {
	Ecoliers    int `json:"ecoliers"`
	Eleves      int `json:"eleves"`
	Notes       int `json:"notes"`
	SkippedRows int `json:"skipped_rows"`
}

// Service converts the dataset to and from .xlsx workbooks.
type Service struct {
	registry Registry
	logger   *zap.Logger
}

// NewService wires a spreadsheet service.
func NewService(registry Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{registry: registry, logger: logger}
}

// ExportFilename names an export produced at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("ecole_export_%s.xlsx", t.Format("20060102_150405"))
}

// Export writes the whole dataset as a workbook to w.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	doc := s.registry.LoadAll(ctx)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed closing workbook", zap.Error(err))
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"CCCCCC"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetEcoliers); err != nil {
		return fmt.Errorf("rename first sheet: %w", err)
	}
	for _, sheet := range []string{SheetEleves, SheetNotes} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	for _, target := range studentSheets {
		rows := make([][]interface{}, 0, len(*doc.Students(target.category)))
		for _, st := range *doc.Students(target.category) {
			rows = append(rows, s.studentRow(models.TaggedStudent{StudentRecord: st, Type: target.category}))
		}
		if err := writeSheet(f, target.name, studentHeaders, rows, headerStyle); err != nil {
			return err
		}
	}

	names := school.NameIndex(doc)
	noteRows := make([][]interface{}, 0, len(doc.Notes))
	for _, n := range doc.Notes {
		noteRows = append(noteRows, []interface{}{names.Lookup(n.StudentType, n.StudentID), n.Classe, n.Matiere, n.Note, n.Date})
	}
	if err := writeSheet(f, SheetNotes, noteHeaders, noteRows, headerStyle); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("workbook exported",
		zap.Int("ecoliers", len(doc.Ecoliers)),
		zap.Int("eleves", len(doc.Eleves)),
		zap.Int("notes", len(doc.Notes)))
	return nil
}

func (s *Service) studentRow(st models.TaggedStudent) []interface{} {
	row, err := StudentRow(st)
	if err != nil {
		s.logger.Warn("tuition not computable", zap.String("category", string(st.Type)), zap.Int("id", st.ID), zap.Error(err))
	}
	return row
}

// StudentHeaders returns the column titles of the student sheets.
func StudentHeaders() []interface{} {
	header := make([]interface{}, len(studentHeaders))
	for i, h := range studentHeaders {
		header[i] = h
	}
	return header
}

// StudentRow renders st as a sheet row. When tuition cannot be computed the
// amount columns stay blank and the error is returned alongside the row.
func StudentRow(st models.TaggedStudent) ([]interface{}, error) {
	row := []interface{}{st.ID, st.Nom, st.Prenoms, st.Sexe, st.DateNaissance, st.Classe, st.NumeroParents, st.MontantScolarite}

	line, err := school.TuitionFor(st)
	if err != nil {
		return append(row, "", "", st.DateInscription), err
	}
	return append(row, line.TotalPaid, line.Reste, st.DateInscription), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}, style int) error {
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// Import replaces the whole dataset with the content of the workbook read from r.
// Student rows need Nom and Prénoms; rows without a class or with a non-numeric
// tuition are skipped and counted. Note rows are attached to the first student
// whose "nom prenoms" equals the Étudiant column and are dropped otherwise.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var result ImportResult

	f, err := excelize.OpenReader(r)
	if err != nil {
		return result, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed closing workbook", zap.Error(err))
		}
	}()

	sheets := map[string]bool{}
	for _, name := range f.GetSheetList() {
		sheets[name] = true
	}
	if !sheets[SheetEcoliers] && !sheets[SheetEleves] && !sheets[SheetNotes] {
		return result, ErrNoSheets
	}

	// read everything before touching the store
	students := map[models.Category][][]string{}
	for _, target := range studentSheets {
		if !sheets[target.name] {
			continue
		}
		rows, err := f.GetRows(target.name)
		if err != nil {
			return result, fmt.Errorf("failed to get rows from sheet %s: %w", target.name, err)
		}
		students[target.category] = rows
	}
	var noteRows [][]string
	if sheets[SheetNotes] {
		if noteRows, err = f.GetRows(SheetNotes); err != nil {
			return result, fmt.Errorf("failed to get rows from sheet %s: %w", SheetNotes, err)
		}
	}

	if err := s.registry.SaveAll(ctx, models.NewDocument()); err != nil {
		return result, fmt.Errorf("reset data before import: %w", err)
	}

	for _, target := range studentSheets {
		for i, row := range students[target.category] {
			if i == 0 {
				continue
			}
			input := models.StudentInput{
				Nom:              cell(row, 1),
				Prenoms:          cell(row, 2),
				Sexe:             cell(row, 3),
				DateNaissance:    cell(row, 4),
				Classe:           cell(row, 5),
				NumeroParents:    cell(row, 6),
				MontantScolarite: cell(row, 7),
				NomEnregistreur:  ImportRegistrar,
			}
			if input.Nom == "" || input.Prenoms == "" {
				s.logger.Debug("skip student row without name", zap.String("sheet", target.name), zap.Int("row", i+1))
				result.SkippedRows++
				continue
			}
			if _, err := s.registry.AddStudent(ctx, target.category, input); err != nil {
				if errors.Is(err, school.ErrInvalidAmount) || errors.Is(err, school.ErrMissingField) {
					s.logger.Warn("skip invalid student row", zap.String("sheet", target.name), zap.Int("row", i+1), zap.Error(err))
					result.SkippedRows++
					continue
				}
				return result, fmt.Errorf("import %s row %d: %w", target.name, i+1, err)
			}
			if target.category == models.CategoryEcolier {
				result.Ecoliers++
			} else {
				result.Eleves++
			}
		}
	}

	byName := map[string]models.TaggedStudent{}
	for _, st := range s.registry.AllStudents(ctx) {
		if _, taken := byName[st.FullName()]; !taken {
			byName[st.FullName()] = st
		}
	}

	notes := make([]models.NoteInput, 0, len(noteRows))
	for i, row := range noteRows {
		if i == 0 {
			continue
		}
		name, classe, matiere, value := cell(row, 0), cell(row, 1), cell(row, 2), cell(row, 3)
		if name == "" || classe == "" || matiere == "" || value == "" {
			result.SkippedRows++
			continue
		}
		st, ok := byName[name]
		if !ok {
			s.logger.Debug("skip note for unknown student", zap.String("student", name), zap.Int("row", i+1))
			result.SkippedRows++
			continue
		}
		notes = append(notes, models.NoteInput{
			StudentID:   st.ID,
			StudentType: st.Type,
			Classe:      classe,
			Matiere:     matiere,
			Note:        value,
		})
	}
	if err := s.registry.AddNotes(ctx, notes); err != nil {
		return result, fmt.Errorf("import notes: %w", err)
	}
	result.Notes = len(notes)

	s.logger.Info("workbook imported",
		zap.Int("ecoliers", result.Ecoliers),
		zap.Int("eleves", result.Eleves),
		zap.Int("notes", result.Notes),
		zap.Int("skipped_rows", result.SkippedRows))
	return result, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}
