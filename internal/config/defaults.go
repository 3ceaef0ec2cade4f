package config

import (
	"path/filepath"

	"google.golang.org/api/drive/v3"
)

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain.
const (
	defaultIdentity       = "default"
	defaultPageSize       = 100
	defaultChunkSize      = "1MiB"
	defaultRequestTimeout = "60s"
	defaultUserAgent      = "healthdrive"
	defaultBackend        = BackendMemory
	defaultLogLevel       = "info"
	defaultLogFormat      = LogFormatAuto
	defaultTransport      = TransportStdio
	defaultListenAddr     = "127.0.0.1:8080"

	clientSecretsFileName = "credentials.json"
	tokenDirName          = "tokens"
	notesFileName         = "notes.txt"
	patientsDBFileName    = "patients.db"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields retain defaults.
func DefaultConfig() *Config {
	configDir := DefaultConfigDir()
	dataDir := DefaultDataDir()

	return &Config{
		Auth: AuthConfig{
			ClientSecretsFile: joinIfSet(configDir, clientSecretsFileName),
			Identity:          defaultIdentity,
			TokenDir:          joinIfSet(dataDir, tokenDirName),
			Scopes:            []string{drive.DriveReadonlyScope},
		},
		Drive: DriveConfig{
			PageSize:       defaultPageSize,
			ChunkSize:      defaultChunkSize,
			RequestTimeout: defaultRequestTimeout,
			UserAgent:      defaultUserAgent,
		},
		Patients: PatientsConfig{
			Backend: defaultBackend,
			DBPath:  joinIfSet(dataDir, patientsDBFileName),
		},
		Notes: NotesConfig{
			Path: joinIfSet(dataDir, notesFileName),
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Server: ServerConfig{
			Transport:  defaultTransport,
			ListenAddr: defaultListenAddr,
		},
	}
}

// joinIfSet leaves the path empty when the platform directory is unknown,
// so validation reports it instead of writing relative to the cwd.
func joinIfSet(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}
