package models

// NoteEntry is a grade log entry. It references a student by (id, category) only.
type NoteEntry struct {
	StudentID   int      `yaml:"student_id" json:"student_id" bson:"student_id"`
	StudentType Category `yaml:"student_type" json:"student_type" bson:"student_type"`
	Classe      string   `yaml:"classe" json:"classe" bson:"classe"`
	Matiere     string   `yaml:"matiere" json:"matiere" bson:"matiere"`
	Note        string   `yaml:"note" json:"note" bson:"note"`
	Date        string   `yaml:"date" json:"date" bson:"date"`
}

// NoteInput is a grade submitted by the grade entry form or an import.
type NoteInput struct {
	StudentID   int      `json:"student_id" binding:"required"`
	StudentType Category `json:"student_type" binding:"required"`
	Classe      string   `json:"classe" binding:"required"`
	Matiere     string   `json:"matiere" binding:"required"`
	Note        string   `json:"note"`
}

// NoteFilter restricts note reads by exact class and/or subject. Empty fields do not filter.
type NoteFilter struct {
	Classe  string `form:"classe" json:"classe"`
	Matiere string `form:"matiere" json:"matiere"`
}

// Matches reports whether the entry passes the filter.
func (f NoteFilter) Matches(n NoteEntry) bool {
	if f.Classe != "" && n.Classe != f.Classe {
		return false
	}
	if f.Matiere != "" && n.Matiere != f.Matiere {
		return false
	}
	return true
}

// Subjects is the fixed subject catalogue offered by the grade entry form.
var Subjects = []string{
	"Mathématiques",
	"Communication écrite",
	"Lecture",
	"Anglais",
	"SVT",
	"Histoire-géographie",
	"Espagnol",
	"EPS",
	"Conduite",
}
