package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

const (
	appName        = "healthdrive"
	configFileName = "config.toml"
)

// baseDir describes where one class of files lives on each platform.
type baseDir struct {
	xdgEnv   string // honored on Linux only
	fallback string // relative to $HOME
}

var (
	configBase = baseDir{xdgEnv: "XDG_CONFIG_HOME", fallback: ".config"}
	dataBase   = baseDir{xdgEnv: "XDG_DATA_HOME", fallback: filepath.Join(".local", "share")}
)

// dir resolves b for the current platform, or "" when $HOME is unknown.
// macOS keeps config and data together under Application Support.
func (b baseDir) dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	case platformLinux:
		if xdg := os.Getenv(b.xdgEnv); xdg != "" {
			return filepath.Join(xdg, appName)
		}
	}

	return filepath.Join(home, b.fallback, appName)
}

// DefaultConfigDir holds config.toml and the OAuth client secrets.
func DefaultConfigDir() string { return configBase.dir() }

// DefaultDataDir holds tokens, notes and the patient database.
func DefaultDataDir() string { return dataBase.dir() }

// DefaultConfigPath is used when neither HEALTHDRIVE_CONFIG nor --config is set.
func DefaultConfigPath() string {
	return joinIfSet(DefaultConfigDir(), configFileName)
}

// expandTilde replaces a leading "~/" with the home directory. The path is
// returned unchanged when the home directory cannot be determined.
func expandTilde(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, rest)
}

func expandPaths(cfg *Config) {
	for _, p := range []*string{
		&cfg.Auth.ClientSecretsFile,
		&cfg.Auth.TokenDir,
		&cfg.Patients.DBPath,
		&cfg.Notes.Path,
	} {
		*p = expandTilde(*p)
	}
}
