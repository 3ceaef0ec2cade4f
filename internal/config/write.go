package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// configFilePermissions is the permission mode for config files.
const configFilePermissions = 0o644

// configDirPermissions is the permission mode for config directories.
const configDirPermissions = 0o755

// ErrConfigExists is returned by WriteTemplate when the file is present.
var ErrConfigExists = errors.New("config: file already exists")

// configTemplate is the content written by "config init". Every option is
// present as a commented-out default so users can discover them.
const configTemplate = `# healthdrive configuration

[auth]
# OAuth client configuration downloaded from the Google Cloud console.
# client_secrets_file = "~/.config/healthdrive/credentials.json"
# identity = "default"
# token_dir = "~/.local/share/healthdrive/tokens"
# scopes = ["https://www.googleapis.com/auth/drive.readonly"]

[drive]
# page_size = 100
# chunk_size = "1MiB"
# request_timeout = "60s"
# user_agent = "healthdrive"

[patients]
# backend: memory or sqlite
# backend = "memory"
# db_path = "~/.local/share/healthdrive/patients.db"

[notes]
# path = "~/.local/share/healthdrive/notes.txt"

[logging]
# log_level: debug, info, warn, error
# log_level = "info"
# log_format: auto, text, json
# log_format = "auto"

[server]
# transport: stdio or http
# transport = "stdio"
# listen_addr = "127.0.0.1:8080"
`

// WriteTemplate creates a commented config file at path. It refuses to
// overwrite an existing file.
func WriteTemplate(path string) error {
	if path == "" {
		return errors.New("config: no config file path")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	slog.Info("creating config file", slog.String("path", path))

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temp file in the same directory and
// renames it over path.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("config: writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("config: closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("config: setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("config: renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
