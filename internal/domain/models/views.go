package models

// NoteView is a note joined with its student's display name.
type NoteView struct {
	StudentName string `json:"student_name"`
	Classe      string `json:"classe"`
	Matiere     string `json:"matiere"`
	Note        string `json:"note"`
	Date        string `json:"date"`
}

// GradeSheetRow is one student of a class with the current grade for a subject.
// Note is nil when nothing was recorded yet.
type GradeSheetRow struct {
	ID      int     `json:"id"`
	Nom     string  `json:"nom"`
	Prenoms string  `json:"prenoms"`
	Note    *string `json:"note"`
}

// TuitionLine summarizes what a student paid against the tuition amount.
type TuitionLine struct {
	TaggedStudent
	TotalPaid float64 `json:"total_paid"`
	Reste     float64 `json:"reste"`
}

// NoteFilters lists the distinct classes and subjects present in the notes.
type NoteFilters struct {
	Classes  []string `json:"classes"`
	Matieres []string `json:"matieres"`
}

// Stats is the record count shown on the backup page.
type Stats struct {
	Ecoliers int `json:"ecoliers"`
	Eleves   int `json:"eleves"`
	Notes    int `json:"notes"`
}
