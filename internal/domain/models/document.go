package models

// Document is the whole persisted dataset.
type Document struct {
	Ecoliers []StudentRecord `yaml:"ecoliers" json:"ecoliers" bson:"ecoliers"`
	Eleves   []StudentRecord `yaml:"eleves" json:"eleves" bson:"eleves"`
	Notes    []NoteEntry     `yaml:"notes" json:"notes" bson:"notes"`
}

// NewDocument returns an empty document with non-nil lists.
func NewDocument() Document {
	return Document{
		Ecoliers: []StudentRecord{},
		Eleves:   []StudentRecord{},
		Notes:    []NoteEntry{},
	}
}

// Normalize replaces nil lists with empty ones so encoders emit [] instead of null.
func (d *Document) Normalize() {
	if d.Ecoliers == nil {
		d.Ecoliers = []StudentRecord{}
	}
	if d.Eleves == nil {
		d.Eleves = []StudentRecord{}
	}
	if d.Notes == nil {
		d.Notes = []NoteEntry{}
	}
}

// Students returns a pointer to the list backing category c, or nil for an unknown category.
func (d *Document) Students(c Category) *[]StudentRecord {
	switch c {
	case CategoryEcolier:
		return &d.Ecoliers
	case CategoryEleve:
		return &d.Eleves
	default:
		return nil
	}
}
