package school

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appolinair2355/Mon/internal/domain/models"
)

type memStore struct {
	doc     models.Document
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) (models.Document, error) {
	if m.loadErr != nil {
		return models.Document{}, m.loadErr
	}
	return cloneDocument(m.doc), nil
}

func (m *memStore) Save(_ context.Context, doc models.Document) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.doc = cloneDocument(doc)
	return nil
}

func cloneDocument(doc models.Document) models.Document {
	out := models.Document{
		Ecoliers: cloneStudents(doc.Ecoliers),
		Eleves:   cloneStudents(doc.Eleves),
		Notes:    append([]models.NoteEntry(nil), doc.Notes...),
	}
	out.Normalize()
	return out
}

func cloneStudents(in []models.StudentRecord) []models.StudentRecord {
	if in == nil {
		return nil
	}
	out := make([]models.StudentRecord, len(in))
	for i, st := range in {
		out[i] = st
		if st.Payments != nil {
			out[i].Payments = append([]models.Payment(nil), st.Payments...)
		}
	}
	return out
}

var fixedNow = time.Date(2024, time.September, 2, 8, 30, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := &memStore{doc: models.NewDocument()}
	svc := NewService(store, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func input(nom, prenoms, classe string) models.StudentInput {
	return models.StudentInput{
		Nom:              nom,
		Prenoms:          prenoms,
		Sexe:             "M",
		DateNaissance:    "01/01/2015",
		Classe:           classe,
		NumeroParents:    "0700000000",
		MontantScolarite: "50000",
	}
}

func withTuition(in models.StudentInput, amount string) models.StudentInput {
	in.MontantScolarite = amount
	return in
}

func TestAddStudentAssignsSequentialIDs(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		id, err := svc.AddStudent(ctx, models.CategoryEcolier, input("Kouame", "Jean", "CP"))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	// eleves have their own id space
	id, err := svc.AddStudent(ctx, models.CategoryEleve, input("Yao", "Awa", "6eme"))
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	ecoliers, err := svc.Students(ctx, models.CategoryEcolier)
	require.NoError(t, err)
	require.Len(t, ecoliers, 3)
	for i, st := range ecoliers {
		assert.Equal(t, i+1, st.ID)
		assert.Equal(t, "02/09/2024 08:30", st.DateInscription)
	}
}

func TestConcurrentWritesAreSerialized(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	const n = 30

	var wg sync.WaitGroup
	ids := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = svc.AddStudent(ctx, models.CategoryEleve, input(fmt.Sprintf("Eleve%d", i), "Test", "6eme"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Ints(ids)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, ids)

	eleves, err := svc.Students(ctx, models.CategoryEleve)
	require.NoError(t, err)
	require.Len(t, eleves, n)
	for i, st := range eleves {
		assert.Equal(t, i+1, st.ID)
	}

	// concurrent payments on one student all land
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddPayment(ctx, 1, models.CategoryEleve, 100)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.doc.Eleves[0].Payments, n)
	total, err := TotalPaid(store.doc.Eleves[0])
	require.NoError(t, err)
	assert.Equal(t, float64(n*100), total)
}

func TestAddStudentValidation(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		category models.Category
		in       models.StudentInput
		wantErr  error
	}{
		{name: "unknown category", category: "lycee", in: input("A", "B", "CP"), wantErr: models.ErrInvalidCategory},
		{name: "missing nom", category: models.CategoryEcolier, in: input("", "B", "CP"), wantErr: ErrMissingField},
		{name: "missing prenoms", category: models.CategoryEleve, in: input("A", "  ", "6eme"), wantErr: ErrMissingField},
		{name: "missing classe", category: models.CategoryEleve, in: input("A", "B", ""), wantErr: ErrMissingField},
		{name: "empty tuition", category: models.CategoryEcolier, in: withTuition(input("A", "B", "CP"), ""), wantErr: ErrInvalidAmount},
		{name: "non-numeric tuition", category: models.CategoryEcolier, in: withTuition(input("A", "B", "CP"), "50 000 FCFA"), wantErr: ErrInvalidAmount},
		{name: "negative tuition", category: models.CategoryEleve, in: withTuition(input("A", "B", "6eme"), "-10"), wantErr: ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddStudent(ctx, tt.category, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, store.saves)
}

func TestAddStudentPropagatesWriteFailure(t *testing.T) {
	svc, store := setup(t)
	store.saveErr = errors.New("disk full")

	_, err := svc.AddStudent(context.Background(), models.CategoryEcolier, input("A", "B", "CP"))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.saveErr)
}

func TestLoadAllMasksReadFailure(t *testing.T) {
	svc, store := setup(t)
	store.loadErr = errors.New("corrupt yaml")

	doc := svc.LoadAll(context.Background())
	assert.Equal(t, models.NewDocument(), doc)
}

func TestAllStudentsTagsCategory(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	_, _ = svc.AddStudent(ctx, models.CategoryEleve, input("Yao", "Awa", "6eme"))
	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("Kouame", "Jean", "CP"))
	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("Koffi", "Marie", "CE1"))

	all := svc.AllStudents(ctx)
	ecoliers, _ := svc.Students(ctx, models.CategoryEcolier)
	eleves, _ := svc.Students(ctx, models.CategoryEleve)
	require.Len(t, all, len(ecoliers)+len(eleves))

	assert.Equal(t, models.CategoryEcolier, all[0].Type)
	assert.Equal(t, "Kouame", all[0].Nom)
	assert.Equal(t, models.CategoryEcolier, all[1].Type)
	assert.Equal(t, models.CategoryEleve, all[2].Type)

	// the derived tag never reaches storage
	assert.Equal(t, 3, store.saves)
	assert.Equal(t, "Kouame", store.doc.Ecoliers[0].Nom)
}

func TestStudentsByClassAndClasses(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("A", "A", "CP"))
	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("B", "B", "CE1"))
	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("C", "C", "CP"))

	cp, err := svc.StudentsByClass(ctx, models.CategoryEcolier, "CP")
	require.NoError(t, err)
	require.Len(t, cp, 2)
	assert.Equal(t, []int{1, 3}, []int{cp[0].ID, cp[1].ID})

	classes, err := svc.Classes(ctx, models.CategoryEcolier)
	require.NoError(t, err)
	assert.Equal(t, []string{"CE1", "CP"}, classes)

	_, err = svc.Students(ctx, "bogus")
	assert.ErrorIs(t, err, models.ErrInvalidCategory)
}

func TestAddPaymentAndTotalPaid(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	id, err := svc.AddStudent(ctx, models.CategoryEcolier, input("Kouame", "Jean", "CP"))
	require.NoError(t, err)

	record, ok := svc.FindStudent(ctx, id, models.CategoryEcolier)
	require.True(t, ok)
	total, err := svc.TotalPaid(record)
	require.NoError(t, err)
	assert.Zero(t, total)

	for _, amount := range []float64{10000, 2500.5, 0} {
		ok, err := svc.AddPayment(ctx, id, models.CategoryEcolier, amount)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	record, _ = svc.FindStudent(ctx, id, models.CategoryEcolier)
	require.Len(t, record.Payments, 3)
	assert.Equal(t, "02/09/2024 08:30", record.Payments[0].Date)
	total, err = svc.TotalPaid(record)
	require.NoError(t, err)
	assert.InDelta(t, 12500.5, total, 1e-9)
}

func TestAddPaymentUnknownStudentLeavesDocumentUnchanged(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("Kouame", "Jean", "CP"))
	before := cloneDocument(store.doc)
	saves := store.saves

	ok, err := svc.AddPayment(ctx, 99, models.CategoryEcolier, 500)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, store.doc)
	assert.Equal(t, saves, store.saves)
}

func TestAddPaymentRejectsNegativeAmount(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.AddPayment(context.Background(), 1, models.CategoryEcolier, -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTotalPaidRejectsNonNumericAmount(t *testing.T) {
	record := models.StudentRecord{ID: 4, Payments: []models.Payment{{Amount: "100"}, {Amount: "cent"}}}
	_, err := TotalPaid(record)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTuition(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	id, _ := svc.AddStudent(ctx, models.CategoryEcolier, input("Kouame", "Jean", "CP"))
	_, _ = svc.AddPayment(ctx, id, models.CategoryEcolier, 20000)

	lines, err := svc.Tuition(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 20000.0, lines[0].TotalPaid)
	assert.Equal(t, 30000.0, lines[0].Reste)
	assert.Equal(t, models.CategoryEcolier, lines[0].Type)

	store.doc.Ecoliers[0].MontantScolarite = "gratuit"
	_, err = svc.Tuition(ctx)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAddNoteAppendsWithoutOverwrite(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.AddNote(ctx, models.NoteInput{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Lecture", Note: "15"}))
	require.NoError(t, svc.AddNote(ctx, models.NoteInput{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Lecture", Note: "12"}))

	notes := svc.NotesForStudent(ctx, 1, models.CategoryEcolier)
	require.Len(t, notes, 2)
	assert.Equal(t, "15", notes[0].Note)
	assert.Equal(t, "12", notes[1].Note)
	assert.Empty(t, svc.NotesForStudent(ctx, 1, models.CategoryEleve))
}

func TestAddNotesValidation(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	err := svc.AddNotes(ctx, []models.NoteInput{
		{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Lecture", Note: "10"},
		{StudentID: 2, StudentType: "prof", Classe: "CP", Matiere: "Lecture", Note: "10"},
	})
	assert.ErrorIs(t, err, models.ErrInvalidCategory)

	err = svc.AddNote(ctx, models.NoteInput{StudentID: 1, StudentType: models.CategoryEcolier, Note: "10"})
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Zero(t, store.saves)
}

func TestNotesFilter(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	entries := []models.NoteInput{
		{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Lecture", Note: "15"},
		{StudentID: 2, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Anglais", Note: "11"},
		{StudentID: 1, StudentType: models.CategoryEleve, Classe: "6eme", Matiere: "Lecture", Note: "9"},
		{StudentID: 3, StudentType: models.CategoryEcolier, Classe: "CE1", Matiere: "Lecture", Note: "18"},
	}
	require.NoError(t, svc.AddNotes(ctx, entries))

	tests := []struct {
		name   string
		filter models.NoteFilter
		want   []string
	}{
		{name: "no filter", filter: models.NoteFilter{}, want: []string{"15", "11", "9", "18"}},
		{name: "class only", filter: models.NoteFilter{Classe: "CP"}, want: []string{"15", "11"}},
		{name: "subject only", filter: models.NoteFilter{Matiere: "Lecture"}, want: []string{"15", "9", "18"}},
		{name: "class and subject", filter: models.NoteFilter{Classe: "CP", Matiere: "Lecture"}, want: []string{"15"}},
		{name: "no match", filter: models.NoteFilter{Classe: "CM2"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]string, 0)
			for _, n := range svc.Notes(ctx, tt.filter) {
				got = append(got, n.Note)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNoteViewsResolveNamesPerCategory(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("Kouame", "Jean", "CP"))
	_, _ = svc.AddStudent(ctx, models.CategoryEleve, input("Yao", "Awa", "6eme"))
	require.NoError(t, svc.AddNotes(ctx, []models.NoteInput{
		{StudentID: 1, StudentType: models.CategoryEleve, Classe: "6eme", Matiere: "SVT", Note: "14"},
		{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Lecture", Note: "16"},
		{StudentID: 7, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Lecture", Note: "3"},
	}))

	views := svc.NoteViews(ctx, models.NoteFilter{})
	require.Len(t, views, 3)
	assert.Equal(t, "Yao Awa", views[0].StudentName)
	assert.Equal(t, "Kouame Jean", views[1].StudentName)
	assert.Equal(t, UnknownStudentName, views[2].StudentName)
}

func TestClassGradeSheetUsesFirstMatchingNote(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("Kouame", "Jean", "CP"))
	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("Koffi", "Marie", "CP"))
	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("Zadi", "Paul", "CE1"))
	require.NoError(t, svc.AddNotes(ctx, []models.NoteInput{
		{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Lecture", Note: "15"},
		{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Lecture", Note: "19"},
		{StudentID: 2, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Anglais", Note: "12"},
	}))

	rows := svc.ClassGradeSheet(ctx, "CP", "Lecture")
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Note)
	assert.Equal(t, "15", *rows[0].Note)
	assert.Nil(t, rows[1].Note)
}

func TestNoteFiltersAndStats(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, _ = svc.AddStudent(ctx, models.CategoryEcolier, input("Kouame", "Jean", "CP"))
	require.NoError(t, svc.AddNotes(ctx, []models.NoteInput{
		{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Lecture", Note: "15"},
		{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CE1", Matiere: "Anglais", Note: "12"},
		{StudentID: 1, StudentType: models.CategoryEcolier, Classe: "CP", Matiere: "Anglais", Note: "10"},
	}))

	filters := svc.NoteFilters(ctx)
	assert.Equal(t, []string{"CE1", "CP"}, filters.Classes)
	assert.Equal(t, []string{"Anglais", "Lecture"}, filters.Matieres)
	assert.Equal(t, models.Stats{Ecoliers: 1, Eleves: 0, Notes: 3}, svc.Stats(ctx))
}

func TestSaveAllLoadAllRoundTrip(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	doc := models.Document{
		Ecoliers: []models.StudentRecord{{
			ID: 1, Nom: "Kouame", Prenoms: "Jean", Classe: "CP", MontantScolarite: "50000",
			DateInscription: "01/09/2024 10:00",
			Payments:        []models.Payment{{Amount: "1000", Date: "02/09/2024 10:00"}},
		}},
		Eleves: []models.StudentRecord{{ID: 1, Nom: "Yao", Prenoms: "Awa", Classe: "6eme"}},
		Notes:  []models.NoteEntry{{StudentID: 1, StudentType: models.CategoryEleve, Classe: "6eme", Matiere: "SVT", Note: "14", Date: "03/09/2024 11:00"}},
	}
	require.NoError(t, svc.SaveAll(ctx, doc))
	assert.Equal(t, doc, svc.LoadAll(ctx))
}
