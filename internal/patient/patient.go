// Package patient holds patient demographics and per-department visit
// history, behind a Repository with in-memory and SQLite implementations.
package patient

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

var (
	// ErrNotFound means no patient has the requested ID.
	ErrNotFound = errors.New("patient: not found")

	// ErrNoDepartment means the patient has no records for a department.
	ErrNoDepartment = errors.New("patient: no department records")
)

// DepartmentRecord is the latest visit of a patient to one department.
type DepartmentRecord struct {
	LastVisit   time.Time
	Diagnosis   string
	Medications []string
}

// Patient is one patient's record. Department keys are stored as given;
// lookups are case-insensitive.
type Patient struct {
	ID          string
	Name        string
	Age         int
	Departments map[string]DepartmentRecord
}

// Repository looks patients up by ID.
type Repository interface {
	Get(ctx context.Context, id string) (*Patient, error)
}

// NormalizeID canonicalizes a patient ID: surrounding space is dropped and
// letters are upper-cased, so " p001" and "P001" name the same patient.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// foldKey returns the case-folded form used to compare department names.
// A Caser is stateful, so each call builds its own.
func foldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Department returns the record for a department, matched without regard
// to case. The returned name is the stored spelling.
func (p *Patient) Department(name string) (string, DepartmentRecord, error) {
	key := foldKey(name)

	for stored, rec := range p.Departments {
		if foldKey(stored) == key {
			return stored, rec, nil
		}
	}

	return "", DepartmentRecord{}, ErrNoDepartment
}

// DepartmentNames returns the department names in sorted order.
func (p *Patient) DepartmentNames() []string {
	names := make([]string, 0, len(p.Departments))
	for name := range p.Departments {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// clone returns a deep copy so callers cannot mutate repository state.
func (p *Patient) clone() *Patient {
	cp := *p
	cp.Departments = make(map[string]DepartmentRecord, len(p.Departments))

	for name, rec := range p.Departments {
		rec.Medications = slices.Clone(rec.Medications)
		cp.Departments[name] = rec
	}

	return &cp
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DemoPatients returns the built-in sample records.
func DemoPatients() []Patient {
	return []Patient{
		{
			ID:   "P001",
			Name: "John Doe",
			Age:  45,
			Departments: map[string]DepartmentRecord{
				"cardiology": {
					LastVisit:   date(2025, time.September, 15),
					Diagnosis:   "Hypertension",
					Medications: []string{"Lisinopril", "Amlodipine"},
				},
				"orthopedics": {
					LastVisit:   date(2025, time.August, 20),
					Diagnosis:   "Osteoarthritis",
					Medications: []string{"Ibuprofen"},
				},
			},
		},
		{
			ID:   "P002",
			Name: "Jane Smith",
			Age:  32,
			Departments: map[string]DepartmentRecord{
				"neurology": {
					LastVisit:   date(2025, time.October, 1),
					Diagnosis:   "Migraine",
					Medications: []string{"Sumatriptan"},
				},
			},
		},
	}
}
