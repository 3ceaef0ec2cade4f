// Package tokenfile persists OAuth credentials on disk. Each application
// identity owns exactly one JSON file inside the store directory, and every
// write replaces that file atomically so a reader never observes a partial
// credential.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// ErrNoIdentity is returned when a store operation is given an empty identity.
var ErrNoIdentity = errors.New("tokenfile: empty identity")

// File is the on-disk format. Scopes records what the token was granted for,
// so a scope change in configuration can force re-authorization.
type File struct {
	Token   *oauth2.Token `json:"token"`
	Scopes  []string      `json:"scopes,omitempty"`
	SavedAt time.Time     `json:"saved_at"`
}

// Store is a directory of token files keyed by application identity.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created lazily on
// the first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the token file path for identity. Characters outside
// [A-Za-z0-9._-] are replaced so an identity like "user@example.com" maps to
// a single flat file name.
func (s *Store) Path(identity string) string {
	return filepath.Join(s.dir, sanitize(identity)+".json")
}

func sanitize(identity string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, identity)
}

// Load reads the token file for identity. Returns (nil, nil) if no file
// exists yet.
func (s *Store) Load(identity string) (*File, error) {
	if identity == "" {
		return nil, ErrNoIdentity
	}

	path := s.Path(identity)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, fmt.Errorf("tokenfile: %s missing token field (re-login required)", path)
	}

	return &tf, nil
}

// Save writes the token for identity atomically (write-to-temp, fsync,
// rename) with 0600 permissions. Never logs token values.
func (s *Store) Save(identity string, tok *oauth2.Token, scopes []string) error {
	if identity == "" {
		return ErrNoIdentity
	}

	if tok == nil {
		return errors.New("tokenfile: refusing to save nil token")
	}

	data, err := json.MarshalIndent(File{
		Token:   tok,
		Scopes:  scopes,
		SavedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	return writeAtomic(s.Path(identity), data)
}

// Remove deletes the token file for identity. Returns nil when there is
// nothing to delete.
func (s *Store) Remove(identity string) error {
	if identity == "" {
		return ErrNoIdentity
	}

	err := os.Remove(s.Path(identity))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenfile: removing: %w", err)
	}

	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, err)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	// Flush before rename so a crash cannot leave an empty token file behind.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}
