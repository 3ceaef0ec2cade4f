// Package report renders patient, note, and Drive results as the plain-text
// messages shown to users. Every function is pure.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/healthdrive/healthdrive/internal/gdrive"
	"github.com/healthdrive/healthdrive/internal/notes"
	"github.com/healthdrive/healthdrive/internal/patient"
)

// Fixed messages.
const (
	PatientNotFound  = "Patient ID not found."
	NoteSaved        = "Note saved!"
	NoNotes          = "No notes yet."
	NoNotesForPrompt = "There are no notes yet."
	NoLabResults     = "No lab results found."
)

// visitLayout renders department visit dates.
const visitLayout = time.DateOnly

// PatientInfo renders a patient's demographics.
func PatientInfo(p *patient.Patient) string {
	return fmt.Sprintf("Patient %s: %s, Age: %d", p.ID, p.Name, p.Age)
}

// DepartmentHistory renders one department record. department is echoed as
// the caller spelled it.
func DepartmentHistory(p *patient.Patient, department string, rec patient.DepartmentRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Patient: %s\n", p.Name)
	fmt.Fprintf(&b, "Department: %s\n", department)
	fmt.Fprintf(&b, "Last Visit: %s\n", rec.LastVisit.Format(visitLayout))
	fmt.Fprintf(&b, "Diagnosis: %s\n", rec.Diagnosis)
	fmt.Fprintf(&b, "Current Medications: %s", strings.Join(rec.Medications, ", "))

	return b.String()
}

// NoDepartmentRecords is the message for a department with no history.
func NoDepartmentRecords(department string) string {
	return fmt.Sprintf("No records found for %s department.", department)
}

// Departments lists the departments a patient has records in.
func Departments(p *patient.Patient) string {
	return fmt.Sprintf("Patient %s has records in: %s", p.Name, strings.Join(p.DepartmentNames(), ", "))
}

// Documents renders search results for a patient's documents.
func Documents(patientID, docType string, objs []gdrive.Object) string {
	if len(objs) == 0 {
		return fmt.Sprintf("No %s documents found for patient %s", docType, patientID)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Found %d %s document(s):", len(objs), docType)

	for _, o := range objs {
		fmt.Fprintf(&b, "\n- %s (Last modified: %s)", o.Name, Timestamp(o.ModifiedAt))
	}

	return b.String()
}

// LabResult renders the content of the newest lab document. Bytes that are
// not valid UTF-8 are replaced.
func LabResult(obj gdrive.Object, content []byte) string {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}

	return fmt.Sprintf("Latest lab results from %s:\n%s", Timestamp(obj.ModifiedAt), text)
}

// FolderListing renders the contents of a folder, one object per line.
func FolderListing(folder gdrive.Container, objs []gdrive.Object) string {
	if len(objs) == 0 {
		return fmt.Sprintf("Folder %q is empty.", folder.Name)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Files in %q (%d):", folder.Name, len(objs))

	for _, o := range objs {
		fmt.Fprintf(&b, "\n- %s [%s] %s, modified %s", o.Name, o.ID, Size(o), Timestamp(o.ModifiedAt))
	}

	return b.String()
}

// Size renders an object's size, or "-" when Drive reports none.
func Size(o gdrive.Object) string {
	if o.IsFolder() {
		return "folder"
	}

	if !o.HasSize {
		return "-"
	}

	return humanize.IBytes(uint64(max(o.Size, 0)))
}

// Timestamp renders t in RFC 3339 UTC, or "unknown" for the zero time.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	return t.UTC().Format(time.RFC3339)
}

// Greeting is the personalized greeting resource.
func Greeting(name string) string {
	return fmt.Sprintf("Hello, %s! How can I assist you with patient information today?", name)
}

// NoteSummaryPrompt asks a model to summarize the notes.
func NoteSummaryPrompt(content string) string {
	if strings.TrimSpace(content) == "" {
		return NoNotesForPrompt
	}

	return "Summarize the current notes: " + content
}

// Failure renders an error for a user. Known kinds get fixed wording; other
// errors fall back to err.Error().
func Failure(err error) string {
	var de *gdrive.Error

	switch {
	case errors.Is(err, patient.ErrNotFound):
		return PatientNotFound
	case errors.Is(err, notes.ErrNoNotes):
		return NoNotes
	case errors.Is(err, notes.ErrEmptyNote):
		return "Note is empty."
	case errors.Is(err, gdrive.ErrAuth):
		return "Google Drive authorization required: run `healthdrive login`. (" + err.Error() + ")"
	case errors.Is(err, gdrive.ErrAmbiguous) && errors.As(err, &de):
		ids := make([]string, 0, len(de.Candidates))
		for _, c := range de.Candidates {
			ids = append(ids, c.ID)
		}

		return fmt.Sprintf("%s; candidate folder IDs: %s", de.Message, strings.Join(ids, ", "))
	case errors.Is(err, gdrive.ErrNotFound):
		return "Not found: " + err.Error()
	case errors.Is(err, gdrive.ErrFetch):
		return "Google Drive request failed: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
