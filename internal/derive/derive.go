// Package derive implements token derivation for mint calls.
//
// Two derivers exist. Random draws tokens from crypto/rand and is the
// default. HashChain reproduces the legacy deterministic derivation,
// where every input is publicly observable; it exists for compatibility
// with ledgers minted by the original system and should not be used for
// new deployments.
package derive

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/cinderlabs/cindervault/config"
	"github.com/cinderlabs/cindervault/pkg/crypto"
	"github.com/cinderlabs/cindervault/pkg/types"
)

// Deriver produces a batch of token identifiers for a mint call.
type Deriver interface {
	// Derive returns exactly count tokens, each in [10^15, 10^27),
	// in a stable order. count must be non-negative; count zero
	// yields an empty sequence.
	Derive(secret []byte, count int, caller types.Address, now int64) ([]types.Token, error)
}

// tokenSpan is 10^27 - 10^15, the size of the token value range.
var tokenSpan = new(big.Int).Sub(types.TokenCeil(), types.TokenFloor())

// New returns the deriver for the configured mode.
func New(mode config.DerivationMode) (Deriver, error) {
	switch mode {
	case config.DeriveRandom, "":
		return Random{}, nil
	case config.DeriveChain:
		return HashChain{}, nil
	}
	return nil, fmt.Errorf("unknown derivation mode %q", mode)
}

// clamp maps an arbitrary non-negative integer into the token range:
// v mod (10^27 - 10^15) + 10^15.
func clamp(v *big.Int) types.Token {
	v.Mod(v, tokenSpan)
	v.Add(v, types.TokenFloor())
	t, err := types.TokenFromBig(v)
	if err != nil {
		// Unreachable: mod+add keeps v inside the range.
		panic(err)
	}
	return t
}

// HashChain derives tokens from an iterated BLAKE3 chain seeded with the
// secret bytes, the mint timestamp and the caller address.
//
//	seed    = BLAKE3(secret || now || caller)
//	seed[i] = BLAKE3(seed[i-1] || i)
//	token_i = seed[i] mod (10^27 - 10^15) + 10^15
type HashChain struct{}

// Derive implements Deriver.
func (HashChain) Derive(secret []byte, count int, caller types.Address, now int64) ([]types.Token, error) {
	if count < 0 {
		return nil, fmt.Errorf("count must be non-negative, got %d", count)
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now))
	seed := crypto.HashConcat(secret, ts[:], caller[:])

	tokens := make([]types.Token, 0, count)
	for i := 0; i < count; i++ {
		var idx [8]byte
		binary.BigEndian.PutUint64(idx[:], uint64(i))
		seed = crypto.HashConcat(seed[:], idx[:])
		tokens = append(tokens, clamp(new(big.Int).SetBytes(seed[:])))
	}
	return tokens, nil
}

// Random derives tokens uniformly from the token range using crypto/rand.
// The secret, caller and timestamp inputs are ignored.
type Random struct{}

// Derive implements Deriver.
func (Random) Derive(_ []byte, count int, _ types.Address, _ int64) ([]types.Token, error) {
	if count < 0 {
		return nil, fmt.Errorf("count must be non-negative, got %d", count)
	}

	tokens := make([]types.Token, 0, count)
	for i := 0; i < count; i++ {
		v, err := rand.Int(rand.Reader, tokenSpan)
		if err != nil {
			return nil, fmt.Errorf("draw token %d: %w", i, err)
		}
		v.Add(v, types.TokenFloor())
		t, err := types.TokenFromBig(v)
		if err != nil {
			return nil, fmt.Errorf("token %d out of range: %w", i, err)
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}
