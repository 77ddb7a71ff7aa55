package config

// DefaultMaxMint is the default cap on tokens per mint call. The source
// system had no cap; an explicit bound prevents unbounded derivation loops
// and storage growth.
const DefaultMaxMint = 1024

// Default returns the default node configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8560,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Vault: VaultConfig{
			Fee:        0,
			MaxMint:    DefaultMaxMint,
			Derivation: DeriveRandom,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
