package models

import (
	"errors"
	"fmt"
	"strings"
)

// TimestampLayout is the layout used for every stored date (DD/MM/YYYY HH:MM).
const TimestampLayout = "02/01/2006 15:04"

// ErrInvalidCategory indicates an unknown student category.
var ErrInvalidCategory = errors.New("invalid student category")

// Category enumerates the two school tracks. Each track has its own list and id space.
type Category string

const (
	CategoryEcolier Category = "ecolier"
	CategoryEleve   Category = "eleve"
)

// Categories lists the tracks in storage order.
var Categories = []Category{CategoryEcolier, CategoryEleve}

// primaryClasses are the class labels taught to ecoliers.
var primaryClasses = map[string]struct{}{
	"maternelle": {},
	"CI":         {},
	"CP":         {},
	"CE1":        {},
	"CE2":        {},
	"CM1":        {},
	"CM2":        {},
}

// ParseCategory accepts the singular or plural form ("ecolier", "ecoliers").
func ParseCategory(value string) (Category, error) {
	normalized := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(value)), "s")
	switch Category(normalized) {
	case CategoryEcolier:
		return CategoryEcolier, nil
	case CategoryEleve:
		return CategoryEleve, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, value)
	}
}

// Valid reports whether c is a known track.
func (c Category) Valid() bool {
	return c == CategoryEcolier || c == CategoryEleve
}

// CategoryForClass derives the track from a class label.
func CategoryForClass(classe string) Category {
	if _, ok := primaryClasses[classe]; ok {
		return CategoryEcolier
	}
	return CategoryEleve
}

// Payment is a tuition installment embedded in a student record.
type Payment struct {
	Amount string `yaml:"amount" json:"amount" bson:"amount"`
	Date   string `yaml:"date" json:"date" bson:"date"`
}

// StudentRecord is the persisted shape shared by ecoliers and eleves.
type StudentRecord struct {
	ID               int       `yaml:"id" json:"id" bson:"id"`
	Nom              string    `yaml:"nom" json:"nom" bson:"nom"`
	Prenoms          string    `yaml:"prenoms" json:"prenoms" bson:"prenoms"`
	Sexe             string    `yaml:"sexe" json:"sexe" bson:"sexe"`
	DateNaissance    string    `yaml:"date_naissance" json:"date_naissance" bson:"date_naissance"`
	Classe           string    `yaml:"classe" json:"classe" bson:"classe"`
	NumeroParents    string    `yaml:"numero_parents" json:"numero_parents" bson:"numero_parents"`
	MontantScolarite string    `yaml:"montant_scolarite" json:"montant_scolarite" bson:"montant_scolarite"`
	DateInscription  string    `yaml:"date_inscription" json:"date_inscription" bson:"date_inscription"`
	NomEnregistreur  string    `yaml:"nom_enregistreur,omitempty" json:"nom_enregistreur,omitempty" bson:"nom_enregistreur,omitempty"`
	Payments         []Payment `yaml:"payments,omitempty" json:"payments,omitempty" bson:"payments,omitempty"`
}

// FullName renders "nom prenoms", the key used by notes sheets.
func (r StudentRecord) FullName() string {
	return fmt.Sprintf("%s %s", r.Nom, r.Prenoms)
}

// TaggedStudent is a record returned by merged reads; Type is derived, never stored.
type TaggedStudent struct {
	StudentRecord
	Type Category `json:"type"`
}

// StudentInput carries the registration form fields.
type StudentInput struct {
	Nom              string `json:"nom" binding:"required"`
	Prenoms          string `json:"prenoms" binding:"required"`
	Sexe             string `json:"sexe"`
	DateNaissance    string `json:"date_naissance"`
	Classe           string `json:"classe" binding:"required"`
	NumeroParents    string `json:"numero_parents"`
	MontantScolarite string `json:"montant_scolarite"`
	NomEnregistreur  string `json:"nom_enregistreur"`
}
