// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Vault policy: the administrator identity and derivation mode, pinned
//     in the database at initialization and immutable afterwards
//   - Node settings: runtime configuration that can change between restarts
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DerivationMode selects how tokens are generated at mint time.
type DerivationMode string

const (
	// DeriveRandom draws tokens from crypto/rand. Default.
	DeriveRandom DerivationMode = "random"
	// DeriveChain reproduces the legacy deterministic hash-chain derivation.
	// Tokens are predictable from public inputs; compatibility mode only.
	DeriveChain DerivationMode = "chain"
)

// Config holds node runtime configuration.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// RPC server
	RPC RPCConfig

	// Vault policy
	Vault VaultConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// VaultConfig holds vault policy settings.
type VaultConfig struct {
	// Admin is the hex-encoded administrator address. Required on first
	// run; pinned in the database and immutable afterwards.
	Admin string `conf:"vault.admin"`
	// Fee is the initial access fee in base units, applied on first run.
	// Afterwards the fee lives in the database and changes via setFee.
	Fee uint64 `conf:"vault.fee"`
	// MaxMint caps the token count of a single mint call.
	MaxMint int `conf:"vault.maxmint"`
	// Derivation selects the token derivation mode.
	Derivation DerivationMode `conf:"vault.derivation"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.cindervault
//	macOS:   ~/Library/Application Support/Cindervault
//	Windows: %APPDATA%\Cindervault
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cindervault"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Cindervault")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Cindervault")
		}
		return filepath.Join(home, "AppData", "Roaming", "Cindervault")
	default:
		return filepath.Join(home, ".cindervault")
	}
}

// VaultDir returns the vault database directory.
func (c *Config) VaultDir() string {
	return filepath.Join(c.DataDir, "vault")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.DataDir, "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "cindervault.conf")
}
