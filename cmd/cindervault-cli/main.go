// cindervault-cli is a command-line client for a cindervaultd node.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/cinderlabs/cindervault/config"
	"github.com/cinderlabs/cindervault/internal/keys"
	"github.com/cinderlabs/cindervault/internal/rpc"
	"github.com/cinderlabs/cindervault/internal/rpcclient"
	"github.com/cinderlabs/cindervault/pkg/crypto"
	"github.com/cinderlabs/cindervault/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := "http://127.0.0.1:8560"
	dataDir := config.DefaultDataDir()

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg := config.Default()
	cfg.DataDir = dataDir
	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(client)
	case "fee":
		cmdFee(client)
	case "is-active":
		cmdIsActive(client, cmdArgs)
	case "redeem":
		cmdRedeem(client, cmdArgs)
	case "mint":
		cmdMint(client, cmdArgs, cfg.KeystoreDir())
	case "set-fee":
		cmdSetFee(client, cmdArgs, cfg.KeystoreDir())
	case "withdraw":
		cmdWithdraw(client, cfg.KeystoreDir())
	case "keygen":
		cmdKeygen(cfg.KeystoreDir())
	case "addr":
		cmdAddr(cfg.KeystoreDir())
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: cindervault-cli [--rpc URL] [--datadir DIR] <command> [args]

Public commands:
  status                      Show vault info
  fee                         Show the current access fee
  is-active <token>           Check whether a token is redeemable
  redeem <token> <payment>    Redeem a token (payment in base units)
      [--caller HEX]          Identity to record in the access log

Admin commands (require the admin key):
  mint <secret-hex> <count>   Mint tokens for an encrypted secret
  set-fee <amount>            Change the access fee
  withdraw                    Withdraw the collected fee balance

Key management:
  keygen                      Generate the admin key (mnemonic + keystore)
  addr                        Show the admin address
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// ── Public commands ─────────────────────────────────────────────────────

func cmdStatus(client *rpcclient.Client) {
	var info rpc.InfoResult
	if err := client.Call("vault_getInfo", nil, &info); err != nil {
		fatal(err)
	}
	fmt.Printf("Admin:         %s\n", info.Admin)
	fmt.Printf("Fee:           %d\n", info.Fee)
	fmt.Printf("Derivation:    %s\n", info.Derivation)
	fmt.Printf("Active tokens: %d\n", info.ActiveTokens)
	fmt.Printf("Balance:       %d\n", info.Balance)
}

func cmdFee(client *rpcclient.Client) {
	var res rpc.FeeResult
	if err := client.Call("vault_currentFee", nil, &res); err != nil {
		fatal(err)
	}
	fmt.Println(res.Fee)
}

func cmdIsActive(client *rpcclient.Client, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: is-active <token>"))
	}
	var res rpc.ActiveResult
	if err := client.Call("vault_isActive", rpc.TokenParam{Token: args[0]}, &res); err != nil {
		fatal(err)
	}
	fmt.Println(res.Active)
}

func cmdRedeem(client *rpcclient.Client, args []string) {
	var caller string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--caller" && i+1 < len(args):
			caller = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--caller="):
			caller = args[i][len("--caller="):]
		default:
			rest = append(rest, args[i])
		}
	}
	if len(rest) != 2 {
		fatal(fmt.Errorf("usage: redeem <token> <payment> [--caller HEX]"))
	}
	payment, err := strconv.ParseUint(rest[1], 10, 64)
	if err != nil {
		fatal(fmt.Errorf("invalid payment: %w", err))
	}

	var res rpc.RedeemResult
	err = client.Call("vault_redeem", rpc.RedeemParam{
		Token:   rest[0],
		Payment: payment,
		Caller:  caller,
	}, &res)
	if err != nil {
		fatal(err)
	}
	fmt.Println(res.Secret)
}

// ── Admin commands ──────────────────────────────────────────────────────

func cmdMint(client *rpcclient.Client, args []string, ksDir string) {
	if len(args) != 2 {
		fatal(fmt.Errorf("usage: mint <secret-hex> <count>"))
	}
	secret, err := hex.DecodeString(args[0])
	if err != nil {
		fatal(fmt.Errorf("secret must be hex: %w", err))
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		fatal(fmt.Errorf("invalid count: %w", err))
	}

	key := loadAdminKey(ksDir)
	defer key.Zero()

	ts := time.Now().Unix()
	digest := rpc.MintDigest(secret, count, ts)
	sig, err := key.Sign(digest[:])
	if err != nil {
		fatal(err)
	}

	var res rpc.MintResult
	err = client.Call("vault_mint", rpc.MintParam{
		Secret: args[0],
		Count:  count,
		AdminAuth: rpc.AdminAuth{
			Pubkey: hex.EncodeToString(key.PublicKey()),
			Sig:    hex.EncodeToString(sig),
			Ts:     ts,
		},
	}, &res)
	if err != nil {
		fatal(err)
	}

	for _, t := range res.Tokens {
		fmt.Println(t)
	}
}

func cmdSetFee(client *rpcclient.Client, args []string, ksDir string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: set-fee <amount>"))
	}
	amount, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fatal(fmt.Errorf("invalid amount: %w", err))
	}

	key := loadAdminKey(ksDir)
	defer key.Zero()

	ts := time.Now().Unix()
	digest := rpc.SetFeeDigest(types.Amount(amount), ts)
	sig, err := key.Sign(digest[:])
	if err != nil {
		fatal(err)
	}

	var res rpc.FeeResult
	err = client.Call("vault_setFee", rpc.SetFeeParam{
		Amount: amount,
		AdminAuth: rpc.AdminAuth{
			Pubkey: hex.EncodeToString(key.PublicKey()),
			Sig:    hex.EncodeToString(sig),
			Ts:     ts,
		},
	}, &res)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Fee set to %d\n", res.Fee)
}

func cmdWithdraw(client *rpcclient.Client, ksDir string) {
	key := loadAdminKey(ksDir)
	defer key.Zero()

	ts := time.Now().Unix()
	digest := rpc.WithdrawDigest(ts)
	sig, err := key.Sign(digest[:])
	if err != nil {
		fatal(err)
	}

	var res rpc.WithdrawResult
	err = client.Call("vault_withdraw", rpc.WithdrawParam{
		AdminAuth: rpc.AdminAuth{
			Pubkey: hex.EncodeToString(key.PublicKey()),
			Sig:    hex.EncodeToString(sig),
			Ts:     ts,
		},
	}, &res)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Withdrew %d\n", res.Amount)
}

// ── Key management ──────────────────────────────────────────────────────

func cmdKeygen(ksDir string) {
	ks, err := keys.NewKeystore(ksDir)
	if err != nil {
		fatal(err)
	}
	if ks.Exists() {
		fatal(fmt.Errorf("admin key already exists in %s", ksDir))
	}

	mnemonic, err := keys.GenerateMnemonic()
	if err != nil {
		fatal(err)
	}
	seed, err := keys.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal(err)
	}

	password := promptPassword("New keystore passphrase: ")
	confirm := promptPassword("Confirm passphrase: ")
	if string(password) != string(confirm) {
		fatal(fmt.Errorf("passphrases do not match"))
	}

	if err := ks.Create(seed, password, keys.DefaultParams()); err != nil {
		fatal(err)
	}

	addr, err := keys.AdminAddressFromSeed(seed)
	if err != nil {
		fatal(err)
	}

	fmt.Println("Admin key created. Write down the recovery mnemonic:")
	fmt.Println()
	fmt.Printf("  %s\n", mnemonic)
	fmt.Println()
	fmt.Printf("Admin address: %s\n", addr)
	fmt.Println("Pass this address to cindervaultd --admin on first run.")
}

func cmdAddr(ksDir string) {
	ks, err := keys.NewKeystore(ksDir)
	if err != nil {
		fatal(err)
	}
	addr, err := ks.Address()
	if err != nil {
		fatal(err)
	}
	fmt.Println(addr)
}

// loadAdminKey decrypts the keystore and derives the admin signing key.
func loadAdminKey(ksDir string) *crypto.PrivateKey {
	ks, err := keys.NewKeystore(ksDir)
	if err != nil {
		fatal(err)
	}
	if !ks.Exists() {
		fatal(fmt.Errorf("no admin key in %s (run keygen first)", ksDir))
	}

	password := promptPassword("Keystore passphrase: ")
	seed, err := ks.Load(password)
	if err != nil {
		fatal(err)
	}

	key, err := keys.AdminKeyFromSeed(seed)
	if err != nil {
		fatal(err)
	}
	return key
}

func promptPassword(prompt string) []byte {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fatal(fmt.Errorf("read passphrase: %w", err))
	}
	return password
}
