package config

import (
	"flag"
	"fmt"
	"os"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	DataDir string
	Config  string

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string

	// Vault
	Admin      string
	Fee        uint64
	MaxMint    int
	Derivation string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags (for overriding file config with zero values).
	SetRPC bool
	SetFee bool
}

// ParseFlags parses command-line arguments.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("cindervaultd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	fs.BoolVar(&f.Help, "help", false, "Show help")
	fs.BoolVar(&f.Version, "version", false, "Show version")

	fs.StringVar(&f.DataDir, "datadir", "", "Data directory")
	fs.StringVar(&f.Config, "config", "", "Config file path")

	fs.BoolVar(&f.RPC, "rpc", true, "Enable the JSON-RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Comma-separated allowed client IPs/CIDRs")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Comma-separated allowed CORS origins")

	fs.StringVar(&f.Admin, "admin", "", "Administrator address (hex, required on first run)")
	fs.Uint64Var(&f.Fee, "fee", 0, "Initial access fee in base units (first run only)")
	fs.IntVar(&f.MaxMint, "max-mint", 0, "Maximum tokens per mint call")
	fs.StringVar(&f.Derivation, "derivation", "", "Token derivation mode: random or chain")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Log in JSON format")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Track which flags were explicitly set so false/zero can override
	// a true/non-zero file setting.
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "rpc":
			f.SetRPC = true
		case "fee":
			f.SetFee = true
		}
	})

	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies command-line flags over a Config.
// Flags win over file config.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = splitList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = splitList(f.RPCCORS)
	}
	if f.Admin != "" {
		cfg.Vault.Admin = f.Admin
	}
	if f.SetFee {
		cfg.Vault.Fee = f.Fee
	}
	if f.MaxMint != 0 {
		cfg.Vault.MaxMint = f.MaxMint
	}
	if f.Derivation != "" {
		cfg.Vault.Derivation = DerivationMode(f.Derivation)
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.LogJSON {
		cfg.Log.JSON = true
	}
}

// Load builds the effective configuration: defaults, then the config
// file, then command-line flags.
func Load() (*Config, *Flags, error) {
	f, err := ParseFlags(os.Args[1:])
	if err != nil {
		return nil, nil, err
	}

	cfg := Default()
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	path := f.Config
	if path == "" {
		path = cfg.ConfigFile()
	}
	values, err := LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, values); err != nil {
		return nil, nil, err
	}

	ApplyFlags(cfg, f)

	if err := Validate(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, f, nil
}

// Usage prints flag usage for the daemon.
func Usage() {
	fmt.Fprintf(os.Stderr, "Usage: cindervaultd [flags]\n\nFlags:\n")
	fmt.Fprintf(os.Stderr, "  --datadir DIR        Data directory (default %s)\n", DefaultDataDir())
	fmt.Fprintf(os.Stderr, "  --config FILE        Config file path\n")
	fmt.Fprintf(os.Stderr, "  --admin HEX          Administrator address (required on first run)\n")
	fmt.Fprintf(os.Stderr, "  --fee N              Initial access fee in base units\n")
	fmt.Fprintf(os.Stderr, "  --max-mint N         Maximum tokens per mint call\n")
	fmt.Fprintf(os.Stderr, "  --derivation MODE    Token derivation: random or chain\n")
	fmt.Fprintf(os.Stderr, "  --rpc[=false]        Enable/disable the JSON-RPC server\n")
	fmt.Fprintf(os.Stderr, "  --rpc-addr ADDR      RPC listen address\n")
	fmt.Fprintf(os.Stderr, "  --rpc-port N         RPC listen port\n")
	fmt.Fprintf(os.Stderr, "  --rpc-allowed LIST   Allowed client IPs/CIDRs\n")
	fmt.Fprintf(os.Stderr, "  --rpc-cors LIST      Allowed CORS origins\n")
	fmt.Fprintf(os.Stderr, "  --log-level LEVEL    debug, info, warn, error\n")
	fmt.Fprintf(os.Stderr, "  --log-file FILE      Log file path\n")
	fmt.Fprintf(os.Stderr, "  --log-json           Log in JSON format\n")
}
