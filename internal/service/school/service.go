package school

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/appolinair2355/Mon/internal/domain/models"
)

// UnknownStudentName is displayed for notes whose student does not exist.
const UnknownStudentName = "Unknown"

var (
	// ErrInvalidAmount indicates a payment or tuition amount that is not a non-negative number.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrMissingField indicates a required registration or note field is empty.
	ErrMissingField = errors.New("missing required field")
)

// Store persists the whole document. Implementations live under internal/repository.
type Store interface {
	Load(ctx context.Context) (models.Document, error)
	Save(ctx context.Context, doc models.Document) error
}

// Service is the data-access layer. Every mutation is a full load-modify-save cycle
// serialized by mu; writers in other processes are not coordinated.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewService wires the access layer over a store.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// LoadAll returns the persisted document, or an empty one when it cannot be read.
func (s *Service) LoadAll(ctx context.Context) models.Document {
	doc, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("document unreadable, using empty document", zap.Error(err))
		return models.NewDocument()
	}
	doc.Normalize()
	return doc
}

// SaveAll replaces the persisted document.
func (s *Service) SaveAll(ctx context.Context, doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, doc)
}

func (s *Service) save(ctx context.Context, doc models.Document) error {
	doc.Normalize()
	if err := s.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *Service) timestamp() string {
	return s.now().Format(models.TimestampLayout)
}

// AddStudent registers a student in category and returns the assigned id (list length + 1).
func (s *Service) AddStudent(ctx context.Context, category models.Category, input models.StudentInput) (int, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidCategory, category)
	}
	if strings.TrimSpace(input.Nom) == "" || strings.TrimSpace(input.Prenoms) == "" || strings.TrimSpace(input.Classe) == "" {
		return 0, fmt.Errorf("%w: nom, prenoms and classe", ErrMissingField)
	}
	// tuition must stay computable for every stored record
	if _, err := parseAmount(input.MontantScolarite); err != nil {
		return 0, fmt.Errorf("montant_scolarite: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.LoadAll(ctx)
	list := doc.Students(category)
	record := models.StudentRecord{
		ID:               len(*list) + 1,
		Nom:              input.Nom,
		Prenoms:          input.Prenoms,
		Sexe:             input.Sexe,
		DateNaissance:    input.DateNaissance,
		Classe:           input.Classe,
		NumeroParents:    input.NumeroParents,
		MontantScolarite: input.MontantScolarite,
		DateInscription:  s.timestamp(),
		NomEnregistreur:  input.NomEnregistreur,
	}
	*list = append(*list, record)

	if err := s.save(ctx, doc); err != nil {
		return 0, err
	}

	s.logger.Info("student registered",
		zap.String("category", string(category)),
		zap.Int("id", record.ID),
		zap.String("classe", record.Classe))
	return record.ID, nil
}

// Students returns the records of one category in insertion order.
func (s *Service) Students(ctx context.Context, category models.Category) ([]models.StudentRecord, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidCategory, category)
	}
	doc := s.LoadAll(ctx)
	return *doc.Students(category), nil
}

// StudentsByClass returns the records of one category whose class equals classe.
func (s *Service) StudentsByClass(ctx context.Context, category models.Category, classe string) ([]models.StudentRecord, error) {
	students, err := s.Students(ctx, category)
	if err != nil {
		return nil, err
	}
	filtered := make([]models.StudentRecord, 0, len(students))
	for _, st := range students {
		if st.Classe == classe {
			filtered = append(filtered, st)
		}
	}
	return filtered, nil
}

// AllStudents returns ecoliers followed by eleves, each tagged with its category.
func (s *Service) AllStudents(ctx context.Context) []models.TaggedStudent {
	return tagAll(s.LoadAll(ctx))
}

func tagAll(doc models.Document) []models.TaggedStudent {
	all := make([]models.TaggedStudent, 0, len(doc.Ecoliers)+len(doc.Eleves))
	for _, category := range models.Categories {
		for _, st := range *doc.Students(category) {
			all = append(all, models.TaggedStudent{StudentRecord: st, Type: category})
		}
	}
	return all
}

// Classes returns the sorted distinct class labels used by a category.
func (s *Service) Classes(ctx context.Context, category models.Category) ([]string, error) {
	students, err := s.Students(ctx, category)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(students))
	for _, st := range students {
		labels = append(labels, st.Classe)
	}
	return distinctSorted(labels), nil
}

// AddPayment appends a payment to the matching student. It returns false when no
// student of that category has the id.
func (s *Service) AddPayment(ctx context.Context, id int, category models.Category, amount float64) (bool, error) {
	if !category.Valid() {
		return false, fmt.Errorf("%w: %q", models.ErrInvalidCategory, category)
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return false, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.LoadAll(ctx)
	list := *doc.Students(category)
	for i := range list {
		if list[i].ID != id {
			continue
		}
		list[i].Payments = append(list[i].Payments, models.Payment{
			Amount: strconv.FormatFloat(amount, 'f', -1, 64),
			Date:   s.timestamp(),
		})
		if err := s.save(ctx, doc); err != nil {
			return false, err
		}
		s.logger.Info("payment recorded",
			zap.String("category", string(category)),
			zap.Int("id", id),
			zap.Float64("amount", amount))
		return true, nil
	}

	s.logger.Debug("payment target not found", zap.String("category", string(category)), zap.Int("id", id))
	return false, nil
}

// FindStudent returns the record with id in category.
func (s *Service) FindStudent(ctx context.Context, id int, category models.Category) (models.StudentRecord, bool) {
	if !category.Valid() {
		return models.StudentRecord{}, false
	}
	doc := s.LoadAll(ctx)
	for _, st := range *doc.Students(category) {
		if st.ID == id {
			return st, true
		}
	}
	return models.StudentRecord{}, false
}

// TotalPaid is the method form of the package-level TotalPaid.
func (s *Service) TotalPaid(record models.StudentRecord) (float64, error) {
	return TotalPaid(record)
}

// TotalPaid sums the payments of record. A non-numeric amount is an error.
func TotalPaid(record models.StudentRecord) (float64, error) {
	var total float64
	for i, p := range record.Payments {
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return 0, fmt.Errorf("payment %d of student %d: %w", i+1, record.ID, err)
		}
		total += amount
	}
	return total, nil
}

func parseAmount(value string) (float64, error) {
	str := strings.TrimSpace(value)
	if str == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	amount, err := strconv.ParseFloat(str, 64)
	if err != nil || amount < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	return amount, nil
}

// Tuition reports paid and remaining tuition for every student, ecoliers first.
func (s *Service) Tuition(ctx context.Context) ([]models.TuitionLine, error) {
	students := s.AllStudents(ctx)
	lines := make([]models.TuitionLine, 0, len(students))
	for _, st := range students {
		line, err := TuitionFor(st)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// TuitionFor computes the tuition line of a single student.
func TuitionFor(st models.TaggedStudent) (models.TuitionLine, error) {
	total, err := TotalPaid(st.StudentRecord)
	if err != nil {
		return models.TuitionLine{}, err
	}
	due, err := parseAmount(st.MontantScolarite)
	if err != nil {
		return models.TuitionLine{}, fmt.Errorf("tuition of %s %d: %w", st.Type, st.ID, err)
	}
	return models.TuitionLine{TaggedStudent: st, TotalPaid: total, Reste: due - total}, nil
}

// AddNote appends a grade entry. Existing entries for the same student and subject are kept.
func (s *Service) AddNote(ctx context.Context, input models.NoteInput) error {
	return s.AddNotes(ctx, []models.NoteInput{input})
}

// AddNotes appends several grade entries in one save.
func (s *Service) AddNotes(ctx context.Context, inputs []models.NoteInput) error {
	for _, in := range inputs {
		if !in.StudentType.Valid() {
			return fmt.Errorf("%w: %q", models.ErrInvalidCategory, in.StudentType)
		}
		if in.Classe == "" || in.Matiere == "" {
			return fmt.Errorf("%w: classe and matiere", ErrMissingField)
		}
	}
	if len(inputs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.LoadAll(ctx)
	date := s.timestamp()
	for _, in := range inputs {
		doc.Notes = append(doc.Notes, models.NoteEntry{
			StudentID:   in.StudentID,
			StudentType: in.StudentType,
			Classe:      in.Classe,
			Matiere:     in.Matiere,
			Note:        in.Note,
			Date:        date,
		})
	}
	if err := s.save(ctx, doc); err != nil {
		return err
	}

	s.logger.Info("notes saved", zap.Int("count", len(inputs)))
	return nil
}

// Notes returns the notes matching filter in stored order.
func (s *Service) Notes(ctx context.Context, filter models.NoteFilter) []models.NoteEntry {
	return filterNotes(s.LoadAll(ctx).Notes, filter)
}

func filterNotes(notes []models.NoteEntry, filter models.NoteFilter) []models.NoteEntry {
	filtered := make([]models.NoteEntry, 0, len(notes))
	for _, n := range notes {
		if filter.Matches(n) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// NotesForStudent returns every note recorded for (id, category).
func (s *Service) NotesForStudent(ctx context.Context, id int, category models.Category) []models.NoteEntry {
	return notesFor(s.LoadAll(ctx).Notes, id, category)
}

func notesFor(notes []models.NoteEntry, id int, category models.Category) []models.NoteEntry {
	matched := make([]models.NoteEntry, 0)
	for _, n := range notes {
		if n.StudentID == id && n.StudentType == category {
			matched = append(matched, n)
		}
	}
	return matched
}

// NoteViews returns filtered notes joined with student names.
func (s *Service) NoteViews(ctx context.Context, filter models.NoteFilter) []models.NoteView {
	doc := s.LoadAll(ctx)
	names := NameIndex(doc)
	notes := filterNotes(doc.Notes, filter)

	views := make([]models.NoteView, 0, len(notes))
	for _, n := range notes {
		views = append(views, models.NoteView{
			StudentName: names.Lookup(n.StudentType, n.StudentID),
			Classe:      n.Classe,
			Matiere:     n.Matiere,
			Note:        n.Note,
			Date:        n.Date,
		})
	}
	return views
}

// ClassGradeSheet lists the students of classe with their current grade in matiere.
// The current grade is the first matching entry of the log.
func (s *Service) ClassGradeSheet(ctx context.Context, classe, matiere string) []models.GradeSheetRow {
	category := models.CategoryForClass(classe)
	doc := s.LoadAll(ctx)

	rows := make([]models.GradeSheetRow, 0)
	for _, st := range *doc.Students(category) {
		if st.Classe != classe {
			continue
		}
		row := models.GradeSheetRow{ID: st.ID, Nom: st.Nom, Prenoms: st.Prenoms}
		for _, n := range notesFor(doc.Notes, st.ID, category) {
			if n.Matiere == matiere {
				note := n.Note
				row.Note = &note
				break
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// NoteFilters returns the distinct classes and subjects present in the notes.
func (s *Service) NoteFilters(ctx context.Context) models.NoteFilters {
	notes := s.LoadAll(ctx).Notes
	classes := make([]string, 0, len(notes))
	matieres := make([]string, 0, len(notes))
	for _, n := range notes {
		classes = append(classes, n.Classe)
		matieres = append(matieres, n.Matiere)
	}
	return models.NoteFilters{Classes: distinctSorted(classes), Matieres: distinctSorted(matieres)}
}

// Stats counts the records of each list.
func (s *Service) Stats(ctx context.Context) models.Stats {
	doc := s.LoadAll(ctx)
	return models.Stats{Ecoliers: len(doc.Ecoliers), Eleves: len(doc.Eleves), Notes: len(doc.Notes)}
}

// Subjects returns the subject catalogue.
func (s *Service) Subjects() []string {
	return append([]string(nil), models.Subjects...)
}

// Names maps (category, id) to "nom prenoms".
type Names map[models.Category]map[int]string

// NameIndex builds the display-name index of doc.
func NameIndex(doc models.Document) Names {
	names := Names{}
	for _, category := range models.Categories {
		byID := map[int]string{}
		for _, st := range *doc.Students(category) {
			byID[st.ID] = st.FullName()
		}
		names[category] = byID
	}
	return names
}

// Lookup returns the display name or UnknownStudentName.
func (n Names) Lookup(category models.Category, id int) string {
	if name, ok := n[category][id]; ok {
		return name
	}
	return UnknownStudentName
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
