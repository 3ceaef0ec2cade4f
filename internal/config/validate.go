package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Validation range constants.
const (
	minPageSize       = 1
	maxPageSize       = 1000
	minChunkBytes     = 1024
	maxChunkBytes     = 64 << 20
	minRequestTimeout = time.Second
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{LogFormatAuto, LogFormatText, LogFormatJSON}
	validBackends   = []string{BackendMemory, BackendSQLite}
	validTransports = []string{TransportStdio, TransportHTTP}
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateDrive(&cfg.Drive)...)
	errs = append(errs, validatePatients(&cfg.Patients)...)
	errs = append(errs, validateNotes(&cfg.Notes)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateServer(&cfg.Server)...)

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if strings.TrimSpace(a.Identity) == "" {
		errs = append(errs, errors.New("auth.identity: must not be empty"))
	}

	if strings.ContainsAny(a.Identity, `/\`) {
		errs = append(errs, fmt.Errorf("auth.identity: must not contain path separators, got %q", a.Identity))
	}

	if a.TokenDir == "" {
		errs = append(errs, errors.New("auth.token_dir: must not be empty"))
	}

	if len(a.Scopes) == 0 {
		errs = append(errs, errors.New("auth.scopes: at least one scope is required"))
	}

	return errs
}

func validateDrive(d *DriveConfig) []error {
	var errs []error

	if d.PageSize < minPageSize || d.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("drive.page_size: must be between %d and %d, got %d",
			minPageSize, maxPageSize, d.PageSize))
	}

	if n, err := d.ChunkBytes(); err != nil {
		errs = append(errs, fmt.Errorf("drive.%w", err))
	} else if n < minChunkBytes || n > maxChunkBytes {
		errs = append(errs, fmt.Errorf("drive.chunk_size: must be between 1KiB and 64MiB, got %q", d.ChunkSize))
	}

	if dur, err := d.Timeout(); err != nil {
		errs = append(errs, fmt.Errorf("drive.%w", err))
	} else if dur != 0 && dur < minRequestTimeout {
		errs = append(errs, fmt.Errorf("drive.request_timeout: must be at least %s or 0, got %q",
			minRequestTimeout, d.RequestTimeout))
	}

	return errs
}

func validatePatients(p *PatientsConfig) []error {
	var errs []error

	if err := oneOf("patients.backend", p.Backend, validBackends); err != nil {
		errs = append(errs, err)
	}

	if p.Backend == BackendSQLite && p.DBPath == "" {
		errs = append(errs, errors.New("patients.db_path: required when backend is sqlite"))
	}

	return errs
}

func validateNotes(n *NotesConfig) []error {
	if n.Path == "" {
		return []error{errors.New("notes.path: must not be empty")}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if err := oneOf("logging.log_level", l.LogLevel, validLogLevels); err != nil {
		errs = append(errs, err)
	}

	if err := oneOf("logging.log_format", l.LogFormat, validLogFormats); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	if err := oneOf("server.transport", s.Transport, validTransports); err != nil {
		errs = append(errs, err)
	}

	if s.Transport == TransportHTTP {
		if _, _, err := net.SplitHostPort(s.ListenAddr); err != nil {
			errs = append(errs, fmt.Errorf("server.listen_addr: %w", err))
		}
	}

	return errs
}

func oneOf(field, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}

	return fmt.Errorf("%s: must be one of %s, got %q", field, strings.Join(valid, ", "), value)
}
