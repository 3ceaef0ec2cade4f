// Package notes is an append-only sticky-note file: one note per line.
package notes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	filePerms = 0o600
	dirPerms  = 0o700
)

var (
	// ErrEmptyNote is returned by Add for blank messages.
	ErrEmptyNote = errors.New("notes: empty note")

	// ErrNoNotes means the file holds no notes.
	ErrNoNotes = errors.New("notes: no notes yet")
)

// Store appends to and reads from one notes file.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a Store for path, creating an empty file (and its directory)
// if none exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return nil, fmt.Errorf("notes: creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, filePerms)
	if err != nil {
		return nil, fmt.Errorf("notes: creating %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("notes: closing %s: %w", path, err)
	}

	return &Store{path: path}, nil
}

// Path returns the notes file path.
func (s *Store) Path() string {
	return s.path
}

// Add appends msg as a single line. Embedded line breaks become spaces.
// The file is synced before Add returns.
func (s *Store) Add(msg string) error {
	line := strings.Join(strings.Fields(strings.ReplaceAll(msg, "\r", " ")), " ")
	if line == "" {
		return ErrEmptyNote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerms)
	if err != nil {
		return fmt.Errorf("notes: opening %s: %w", s.path, err)
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("notes: writing: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("notes: syncing: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("notes: closing: %w", err)
	}

	return nil
}

// All returns every note as stored, trimmed of surrounding whitespace.
func (s *Store) All() (string, error) {
	content, err := s.read()
	if err != nil {
		return "", err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrNoNotes
	}

	return content, nil
}

// Lines returns the non-empty notes in file order.
func (s *Store) Lines() ([]string, error) {
	content, err := s.read()
	if err != nil {
		return nil, err
	}

	var lines []string

	for _, l := range strings.Split(content, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	if len(lines) == 0 {
		return nil, ErrNoNotes
	}

	return lines, nil
}

// Latest returns the most recently added note.
func (s *Store) Latest() (string, error) {
	lines, err := s.Lines()
	if err != nil {
		return "", err
	}

	return lines[len(lines)-1], nil
}

func (s *Store) read() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("notes: reading %s: %w", s.path, err)
	}

	return string(data), nil
}
