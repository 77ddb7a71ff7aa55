// Package node wires the vault daemon's components together.
package node

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cinderlabs/cindervault/config"
	"github.com/cinderlabs/cindervault/internal/derive"
	"github.com/cinderlabs/cindervault/internal/fee"
	klog "github.com/cinderlabs/cindervault/internal/log"
	"github.com/cinderlabs/cindervault/internal/rpc"
	"github.com/cinderlabs/cindervault/internal/storage"
	"github.com/cinderlabs/cindervault/internal/vault"
	"github.com/cinderlabs/cindervault/pkg/types"
)

// prefixVault namespaces all vault data within the node database.
var prefixVault = []byte("cv/")

// Node is a running cindervault daemon instance.
type Node struct {
	cfg    *config.Config
	db     storage.DB
	vault  *vault.Vault
	rpc    *rpc.Server // nil when RPC is disabled
	logger zerolog.Logger
}

// New builds a node from configuration: opens storage, pins the
// administrator, and constructs the fee policy, deriver, vault and
// RPC server.
//
// The administrator address is fixed at first-run initialization and
// immutable afterwards. A config that names a different administrator
// than the pinned one is a startup error, never a silent override.
func New(cfg *config.Config) (*Node, error) {
	logFile := cfg.Log.File
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(cfg.LogsDir(), logFile)
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	db, err := storage.NewBadger(cfg.VaultDir())
	if err != nil {
		return nil, err
	}

	n, err := build(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return n, nil
}

// NewWithDB builds a node over an existing database. Used in tests.
func NewWithDB(cfg *config.Config, db storage.DB) (*Node, error) {
	return build(cfg, db)
}

func build(cfg *config.Config, db storage.DB) (*Node, error) {
	vdb := storage.NewPrefixDB(db, prefixVault)
	store := vault.NewStore(vdb)

	admin, err := pinAdmin(store, cfg.Vault.Admin)
	if err != nil {
		return nil, err
	}

	fees, err := fee.NewPolicy(vdb, admin, types.Amount(cfg.Vault.Fee))
	if err != nil {
		return nil, err
	}

	deriver, err := derive.New(cfg.Vault.Derivation)
	if err != nil {
		return nil, err
	}

	v := vault.New(store, fees, deriver, cfg.Vault.MaxMint, nil)

	n := &Node{
		cfg:    cfg,
		db:     db,
		vault:  v,
		logger: klog.WithComponent("node"),
	}

	if cfg.RPC.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		n.rpc = rpc.New(addr, v, cfg.Vault.Derivation, cfg.RPC)
	}

	return n, nil
}

// pinAdmin resolves the administrator address: reads the pinned one,
// or pins the configured one on first run.
func pinAdmin(store *vault.Store, configured string) (types.Address, error) {
	pinned, ok, err := store.Admin()
	if err != nil {
		return types.Address{}, err
	}

	if !ok {
		if configured == "" {
			return types.Address{}, fmt.Errorf("first run: vault.admin must be set (use --admin or the config file)")
		}
		addr, err := types.HexToAddress(configured)
		if err != nil {
			return types.Address{}, fmt.Errorf("vault.admin: %w", err)
		}
		if err := store.SetAdmin(addr); err != nil {
			return types.Address{}, err
		}
		return addr, nil
	}

	if configured != "" {
		addr, err := types.HexToAddress(configured)
		if err != nil {
			return types.Address{}, fmt.Errorf("vault.admin: %w", err)
		}
		if addr != pinned {
			return types.Address{}, fmt.Errorf("administrator is pinned to %s; config names %s", pinned, addr)
		}
	}

	return pinned, nil
}

// Start starts the node's servers.
func (n *Node) Start() error {
	if n.rpc != nil {
		if err := n.rpc.Start(); err != nil {
			return err
		}
		n.logger.Info().Str("addr", n.rpc.Addr()).Msg("RPC server listening")
	}

	n.logger.Info().
		Stringer("admin", n.vault.Admin()).
		Uint64("fee", uint64(n.vault.CurrentFee())).
		Str("derivation", string(n.cfg.Vault.Derivation)).
		Msg("vault node started")
	return nil
}

// Stop shuts the node down.
func (n *Node) Stop() {
	if n.rpc != nil {
		if err := n.rpc.Stop(); err != nil {
			n.logger.Error().Err(err).Msg("stop RPC server")
		}
	}
	if err := n.db.Close(); err != nil {
		n.logger.Error().Err(err).Msg("close database")
	}
	n.logger.Info().Msg("vault node stopped")
}

// Vault returns the node's vault.
func (n *Node) Vault() *vault.Vault {
	return n.vault
}

// RPCAddr returns the RPC listener address, or "" when RPC is disabled.
func (n *Node) RPCAddr() string {
	if n.rpc == nil {
		return ""
	}
	return n.rpc.Addr()
}
