package keys

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"

	"github.com/cinderlabs/cindervault/pkg/crypto"
	"github.com/cinderlabs/cindervault/pkg/types"
)

// BIP-44 style derivation path for the administrator key:
// m/44'/1427'/0'/0/0 (1427 is an unregistered placeholder coin type).
const (
	purposeBIP44  = bip32.FirstHardenedChild + 44
	coinTypeVault = bip32.FirstHardenedChild + 1427
	accountAdmin  = bip32.FirstHardenedChild + 0
)

// AdminKeyFromSeed derives the administrator signing key from a
// 64-byte BIP-39 seed.
func AdminKeyFromSeed(seed []byte) (*crypto.PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}

	key := master
	for _, idx := range []uint32{purposeBIP44, coinTypeVault, accountAdmin, 0, 0} {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
	}

	priv, err := crypto.PrivateKeyFromBytes(key.Key)
	if err != nil {
		return nil, fmt.Errorf("admin key: %w", err)
	}
	return priv, nil
}

// AdminAddressFromSeed derives the administrator address from a seed.
func AdminAddressFromSeed(seed []byte) (types.Address, error) {
	priv, err := AdminKeyFromSeed(seed)
	if err != nil {
		return types.Address{}, err
	}
	defer priv.Zero()
	return crypto.AddressFromPubKey(priv.PublicKey()), nil
}
