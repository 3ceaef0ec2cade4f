package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig        = "HEALTHDRIVE_CONFIG"
	EnvClientSecrets = "HEALTHDRIVE_CLIENT_SECRETS"
	EnvLogLevel      = "HEALTHDRIVE_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath    string // HEALTHDRIVE_CONFIG: override config file path
	ClientSecrets string // HEALTHDRIVE_CLIENT_SECRETS: OAuth client configuration file
	LogLevel      string // HEALTHDRIVE_LOG_LEVEL: log level
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies them.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:    os.Getenv(EnvConfig),
		ClientSecrets: os.Getenv(EnvClientSecrets),
		LogLevel:      os.Getenv(EnvLogLevel),
	}
}

// CLIOverrides holds values from command-line flags. Pointer fields are nil
// when the flag was not given.
type CLIOverrides struct {
	ConfigPath string
	Transport  *string
	ListenAddr *string
}
