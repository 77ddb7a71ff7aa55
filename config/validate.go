package config

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.Vault.MaxMint <= 0 {
		return fmt.Errorf("vault.maxmint must be positive")
	}

	if cfg.Vault.Derivation == "" {
		cfg.Vault.Derivation = DeriveRandom
	}
	switch cfg.Vault.Derivation {
	case DeriveRandom, DeriveChain:
	default:
		return fmt.Errorf("vault.derivation must be %q or %q", DeriveRandom, DeriveChain)
	}

	if cfg.Vault.Admin != "" {
		s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cfg.Vault.Admin)), "0x")
		b, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("vault.admin is not valid hex: %w", err)
		}
		if len(b) != 20 {
			return fmt.Errorf("vault.admin must be 20 bytes, got %d", len(b))
		}
		cfg.Vault.Admin = s
	}

	return nil
}
