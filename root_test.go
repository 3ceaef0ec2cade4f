package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/healthdrive/healthdrive/internal/config"
	"github.com/healthdrive/healthdrive/internal/patient"
	"github.com/healthdrive/healthdrive/internal/tokenfile"
)

const testClientSecrets = `{"installed":{
	"client_id":"test.apps.googleusercontent.com",
	"client_secret":"shh",
	"auth_uri":"https://accounts.google.com/o/oauth2/auth",
	"token_uri":"https://oauth2.googleapis.com/token",
	"redirect_uris":["http://localhost"]
}}`

// testEnv is a temp directory holding a config file and everything it
// points at.
type testEnv struct {
	dir        string
	configPath string
	tokenDir   string
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()

	// Keep HEALTHDRIVE_* from the developer's shell out of the tests.
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvClientSecrets, "")
	t.Setenv(config.EnvLogLevel, "")

	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		tokenDir:   filepath.Join(dir, "tokens"),
	}

	secrets := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(secrets, []byte(testClientSecrets), 0o600))

	content := fmt.Sprintf(`
[auth]
client_secrets_file = %q
token_dir = %q

[notes]
path = %q

[logging]
log_level = "error"
log_format = "text"
%s`, secrets, env.tokenDir, filepath.Join(dir, "notes.txt"), extra)

	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o600))

	return env
}

// saveToken stores a valid credential so commands never reach the OAuth
// endpoints.
func (e *testEnv) saveToken(t *testing.T) {
	t.Helper()

	tok := &oauth2.Token{
		AccessToken:  "test-access",
		RefreshToken: "test-refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}

	scopes := config.DefaultConfig().Auth.Scopes
	require.NoError(t, tokenfile.NewStore(e.tokenDir).Save("default", tok, scopes))
}

// run executes the root command with the env's config and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.configPath, "--quiet"}, args...))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, logLevel("info", CLIFlags{}))
	assert.Equal(t, slog.LevelWarn, logLevel("warn", CLIFlags{}))
	assert.Equal(t, slog.LevelError, logLevel("error", CLIFlags{}))
	assert.Equal(t, slog.LevelDebug, logLevel("debug", CLIFlags{}))
	assert.Equal(t, slog.LevelInfo, logLevel("", CLIFlags{}))

	assert.Equal(t, slog.LevelDebug, logLevel("error", CLIFlags{Verbose: true}), "--verbose wins")
	assert.Equal(t, slog.LevelError, logLevel("debug", CLIFlags{Quiet: true}), "--quiet wins")
}

func TestBuildLogger_Formats(t *testing.T) {
	tests := []struct {
		format   string
		terminal bool
		json     bool
	}{
		{config.LogFormatJSON, true, true},
		{config.LogFormatText, false, false},
		{config.LogFormatAuto, true, false},
		{config.LogFormatAuto, false, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer

		logger := buildLogger(&buf, tt.format, slog.LevelInfo, tt.terminal)
		logger.Info("hello", slog.String("k", "v"))

		isJSON := json.Valid(bytes.TrimSpace(buf.Bytes()))
		assert.Equal(t, tt.json, isJSON, "format=%s terminal=%t: %s", tt.format, tt.terminal, buf.String())
	}
}

func TestBuildLogger_LevelVarChangesVerbosity(t *testing.T) {
	var buf bytes.Buffer

	level := new(slog.LevelVar)
	level.Set(slog.LevelError)

	logger := buildLogger(&buf, config.LogFormatText, level, true)
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	level.Set(slog.LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestMustCLIContext_PanicsWhenMissing(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	env := newTestEnv(t, "\n[drive]\npage_sise = 5\n")

	_, err := env.run(t, "patient", "P001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
	assert.Contains(t, err.Error(), "page_size")
}

func TestRoot_VerboseAndQuietExclusive(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "--verbose", "patient", "P001")
	require.Error(t, err)
}

func TestPatientCmd_Info(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "patient", "p001")
	require.NoError(t, err)
	assert.Contains(t, out, "Patient P001: John Doe, Age: 45")
	assert.Contains(t, out, "Patient John Doe has records in: cardiology, orthopedics")
}

func TestPatientCmd_Department(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "patient", "P001", "Cardiology")
	require.NoError(t, err)
	assert.Contains(t, out, "Patient: John Doe")
	assert.Contains(t, out, "Diagnosis: Hypertension")
	assert.Contains(t, out, "Current Medications: Lisinopril, Amlodipine")
}

func TestPatientCmd_NoDepartment(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "patient", "P002", "cardiology")
	require.Error(t, err)
	assert.Equal(t, "No records found for cardiology department.", err.Error())
}

func TestPatientCmd_NotFound(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "patient", "P999")
	require.Error(t, err)
	assert.ErrorIs(t, err, patient.ErrNotFound)
	assert.Equal(t, "Patient ID not found.", err.Error())
}

func TestPatientCmd_JSON(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "--json", "patient", "P002")
	require.NoError(t, err)

	var got patientJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Jane Smith", got.Name)
	assert.Equal(t, 32, got.Age)
	assert.Equal(t, "Migraine", got.Departments["neurology"].Diagnosis)
	assert.Equal(t, "2025-10-01", got.Departments["neurology"].LastVisit)
}

func TestPatientCmd_SQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, fmt.Sprintf("\n[patients]\nbackend = \"sqlite\"\ndb_path = %q\n",
		filepath.Join(dir, "db", "patients.db")))

	out, err := env.run(t, "patient", "P001", "orthopedics")
	require.NoError(t, err)
	assert.Contains(t, out, "Diagnosis: Osteoarthritis")

	// Reopening must not seed twice or fail.
	out, err = env.run(t, "patient", "P002")
	require.NoError(t, err)
	assert.Contains(t, out, "Patient P002: Jane Smith, Age: 32")
}

func TestNotesCmd_RoundTrip(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "notes", "list")
	require.NoError(t, err)
	assert.Equal(t, "No notes yet.\n", out)

	_, err = env.run(t, "notes", "add", "call", "lab", "about", "P001")
	require.NoError(t, err)

	_, err = env.run(t, "notes", "add", "follow up\nnext week")
	require.NoError(t, err)

	out, err = env.run(t, "notes", "list")
	require.NoError(t, err)
	assert.Equal(t, "call lab about P001\nfollow up next week\n", out)

	out, err = env.run(t, "notes", "latest")
	require.NoError(t, err)
	assert.Equal(t, "follow up next week\n", out)

	out, err = env.run(t, "--json", "notes", "list")
	require.NoError(t, err)

	var lines []string
	require.NoError(t, json.Unmarshal([]byte(out), &lines))
	assert.Len(t, lines, 2)
}

func TestNotesCmd_EmptyRejected(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "notes", "add", "   ")
	require.Error(t, err)
}

func TestNotesCmd_LatestEmpty(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "notes", "latest")
	require.NoError(t, err)
	assert.Equal(t, "No notes yet.\n", out)
}

func TestConfigShow(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "file: "+env.configPath)
	assert.Contains(t, out, `token_dir           = "`+env.tokenDir+`"`)
	assert.Contains(t, out, `log_level  = "error"`)
}

func TestConfigShow_JSON(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "--json", "config", "show")
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, env.tokenDir, got.Auth.TokenDir)
	assert.Equal(t, config.BackendMemory, got.Patients.Backend)
}

func TestConfigInit(t *testing.T) {
	t.Setenv(config.EnvConfig, "")

	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--config", path, "--quiet", "config", "init"})
	require.NoError(t, cmd.Execute())

	_, err := config.Load(path)
	require.NoError(t, err)

	cmd = newRootCmd()
	cmd.SetArgs([]string{"--config", path, "--quiet", "config", "init"})
	assert.ErrorIs(t, cmd.Execute(), config.ErrConfigExists)
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `Identity "default" is not logged in`)
}

func TestWhoami_LoggedIn(t *testing.T) {
	env := newTestEnv(t, "")
	env.saveToken(t)

	out, err := env.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
	assert.Contains(t, out, filepath.Join(env.tokenDir, "default.json"))

	out, err = env.run(t, "--json", "whoami")
	require.NoError(t, err)

	var got whoamiOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.LoggedIn)
	assert.True(t, got.Valid)
}

func TestLogout_RemovesToken(t *testing.T) {
	env := newTestEnv(t, "")
	env.saveToken(t)

	_, err := env.run(t, "logout")
	require.NoError(t, err)

	f, err := tokenfile.NewStore(env.tokenDir).Load("default")
	require.NoError(t, err)
	assert.Nil(t, f)

	// Logging out twice is harmless.
	_, err = env.run(t, "logout")
	require.NoError(t, err)
}
