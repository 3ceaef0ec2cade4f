package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as an annotated summary
// to w. This powers the "config show" command, showing the values in effect
// after all four override layers have been applied.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", displayPath(path))

	ew.printf("[auth]\n")
	ew.printf("  client_secrets_file = %q\n", cfg.Auth.ClientSecretsFile)
	ew.printf("  identity            = %q\n", cfg.Auth.Identity)
	ew.printf("  token_dir           = %q\n", cfg.Auth.TokenDir)
	ew.printf("  scopes              = [%s]\n\n", joinQuoted(cfg.Auth.Scopes))

	ew.printf("[drive]\n")
	ew.printf("  page_size       = %d\n", cfg.Drive.PageSize)
	ew.printf("  chunk_size      = %q\n", cfg.Drive.ChunkSize)
	ew.printf("  request_timeout = %q\n", cfg.Drive.RequestTimeout)
	ew.printf("  user_agent      = %q\n\n", cfg.Drive.UserAgent)

	ew.printf("[patients]\n")
	ew.printf("  backend = %q\n", cfg.Patients.Backend)

	if cfg.Patients.Backend == BackendSQLite {
		ew.printf("  db_path = %q\n", cfg.Patients.DBPath)
	}

	ew.printf("\n[notes]\n")
	ew.printf("  path = %q\n\n", cfg.Notes.Path)

	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", cfg.Logging.LogLevel)
	ew.printf("  log_format = %q\n\n", cfg.Logging.LogFormat)

	ew.printf("[server]\n")
	ew.printf("  transport   = %q\n", cfg.Server.Transport)

	if cfg.Server.Transport == TransportHTTP {
		ew.printf("  listen_addr = %q\n", cfg.Server.ListenAddr)
	}

	return ew.err
}

func displayPath(path string) string {
	if path == "" {
		return "none"
	}

	return path
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}
