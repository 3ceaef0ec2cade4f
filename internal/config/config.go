// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for healthdrive. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth     AuthConfig     `toml:"auth" json:"auth"`
	Drive    DriveConfig    `toml:"drive" json:"drive"`
	Patients PatientsConfig `toml:"patients" json:"patients"`
	Notes    NotesConfig    `toml:"notes" json:"notes"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
	Server   ServerConfig   `toml:"server" json:"server"`
}

// AuthConfig locates the OAuth client configuration and the persisted
// credential.
type AuthConfig struct {
	ClientSecretsFile string   `toml:"client_secrets_file" json:"client_secrets_file"`
	Identity          string   `toml:"identity" json:"identity"`
	TokenDir          string   `toml:"token_dir" json:"token_dir"`
	Scopes            []string `toml:"scopes" json:"scopes"`
}

// DriveConfig controls Google Drive requests.
type DriveConfig struct {
	PageSize       int64  `toml:"page_size" json:"page_size"`
	ChunkSize      string `toml:"chunk_size" json:"chunk_size"`
	RequestTimeout string `toml:"request_timeout" json:"request_timeout"`
	UserAgent      string `toml:"user_agent" json:"user_agent"`
}

// PatientsConfig selects the patient repository backend.
type PatientsConfig struct {
	Backend string `toml:"backend" json:"backend"`
	DBPath  string `toml:"db_path" json:"db_path"`
}

// NotesConfig locates the note file.
type NotesConfig struct {
	Path string `toml:"path" json:"path"`
}

// LoggingConfig controls log verbosity and handler format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level" json:"log_level"`
	LogFormat string `toml:"log_format" json:"log_format"`
}

// ServerConfig selects the MCP transport.
type ServerConfig struct {
	Transport  string `toml:"transport" json:"transport"`
	ListenAddr string `toml:"listen_addr" json:"listen_addr"`
}

// Patient repository backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Log formats.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Server transports. These match the values accepted by mcpserver.Run.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// ChunkBytes returns chunk_size in bytes.
func (d *DriveConfig) ChunkBytes() (int64, error) {
	n, err := ParseSize(d.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("chunk_size: %w", err)
	}

	return n, nil
}

// Timeout returns request_timeout as a duration. Zero means no timeout.
func (d *DriveConfig) Timeout() (time.Duration, error) {
	if d.RequestTimeout == "" || d.RequestTimeout == "0" {
		return 0, nil
	}

	dur, err := time.ParseDuration(d.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("request_timeout: %w", err)
	}

	return dur, nil
}
