package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[auth]
client_secrets_file = "/etc/healthdrive/credentials.json"
identity = "clinic"
token_dir = "/var/lib/healthdrive/tokens"
scopes = ["https://www.googleapis.com/auth/drive.readonly", "openid"]

[drive]
page_size = 250
chunk_size = "4MiB"
request_timeout = "30s"
user_agent = "clinic-agent"

[patients]
backend = "sqlite"
db_path = "/var/lib/healthdrive/patients.db"

[notes]
path = "/var/lib/healthdrive/notes.txt"

[logging]
log_level = "debug"
log_format = "json"

[server]
transport = "http"
listen_addr = "127.0.0.1:9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/healthdrive/credentials.json", cfg.Auth.ClientSecretsFile)
	assert.Equal(t, "clinic", cfg.Auth.Identity)
	assert.Equal(t, "/var/lib/healthdrive/tokens", cfg.Auth.TokenDir)
	assert.Len(t, cfg.Auth.Scopes, 2)

	assert.Equal(t, int64(250), cfg.Drive.PageSize)

	chunk, err := cfg.Drive.ChunkBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(4<<20), chunk)

	timeout, err := cfg.Drive.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)

	assert.Equal(t, BackendSQLite, cfg.Patients.Backend)
	assert.Equal(t, "/var/lib/healthdrive/notes.txt", cfg.Notes.Path)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, LogFormatJSON, cfg.Logging.LogFormat)
	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddr)
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, "[drive]\npage_size = 50\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, int64(50), cfg.Drive.PageSize)
	assert.Equal(t, def.Drive.ChunkSize, cfg.Drive.ChunkSize)
	assert.Equal(t, def.Auth.Scopes, cfg.Auth.Scopes)
	assert.Equal(t, def.Logging, cfg.Logging)
}

func TestLoad_ExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := writeTestConfig(t, "[notes]\npath = \"~/notes/sticky.txt\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "notes", "sticky.txt"), cfg.Notes.Path)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, "[drive\npage_size = 1")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoad_ValidationErrorsAccumulate(t *testing.T) {
	path := writeTestConfig(t, `
[drive]
page_size = 0

[logging]
log_level = "loud"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drive.page_size")
	assert.Contains(t, err.Error(), "logging.log_level")
}

func TestLoad_TemplateParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, WriteTemplate(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Drive, cfg.Drive)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolvePath_Precedence(t *testing.T) {
	assert.Equal(t, DefaultConfigPath(), ResolvePath(EnvOverrides{}, CLIOverrides{}))
	assert.Equal(t, "/env.toml", ResolvePath(EnvOverrides{ConfigPath: "/env.toml"}, CLIOverrides{}))
	assert.Equal(t, "/cli.toml",
		ResolvePath(EnvOverrides{ConfigPath: "/env.toml"}, CLIOverrides{ConfigPath: "/cli.toml"}))
}

func TestResolve_LayerOrder(t *testing.T) {
	path := writeTestConfig(t, `
[auth]
client_secrets_file = "/file/credentials.json"

[logging]
log_level = "warn"

[server]
transport = "stdio"
`)

	transport := TransportHTTP
	addr := "127.0.0.1:7000"

	cfg, got, err := Resolve(
		EnvOverrides{ClientSecrets: "/env/credentials.json", LogLevel: "debug"},
		CLIOverrides{ConfigPath: path, Transport: &transport, ListenAddr: &addr},
	)
	require.NoError(t, err)

	assert.Equal(t, path, got)
	assert.Equal(t, "/env/credentials.json", cfg.Auth.ClientSecretsFile)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, addr, cfg.Server.ListenAddr)
}

func TestResolve_FileOnly(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"error\"\n")

	cfg, _, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.LogLevel)
}

func TestResolve_InvalidOverrideRejected(t *testing.T) {
	path := writeTestConfig(t, "")

	_, _, err := Resolve(EnvOverrides{LogLevel: "chatty"}, CLIOverrides{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.log_level")
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfig, "/tmp/hd.toml")
	t.Setenv(EnvClientSecrets, "/tmp/credentials.json")
	t.Setenv(EnvLogLevel, "warn")

	env := ReadEnvOverrides()
	assert.Equal(t, "/tmp/hd.toml", env.ConfigPath)
	assert.Equal(t, "/tmp/credentials.json", env.ClientSecrets)
	assert.Equal(t, "warn", env.LogLevel)
}
