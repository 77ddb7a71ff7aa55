package rpc

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/cinderlabs/cindervault/pkg/crypto"
	"github.com/cinderlabs/cindervault/pkg/types"
)

// maxAuthSkew bounds how far a signed request timestamp may drift from
// the server clock. Signatures outside the window are rejected, which
// limits how long a captured request stays replayable.
const maxAuthSkew = 5 * time.Minute

// MintDigest is the signing digest of a vault_mint call.
func MintDigest(secret []byte, count int, ts int64) types.Hash {
	var cnt, tsb [8]byte
	binary.BigEndian.PutUint64(cnt[:], uint64(count))
	binary.BigEndian.PutUint64(tsb[:], uint64(ts))
	return crypto.HashConcat([]byte("vault_mint"), secret, cnt[:], tsb[:])
}

// SetFeeDigest is the signing digest of a vault_setFee call.
func SetFeeDigest(amount types.Amount, ts int64) types.Hash {
	var amt, tsb [8]byte
	binary.BigEndian.PutUint64(amt[:], uint64(amount))
	binary.BigEndian.PutUint64(tsb[:], uint64(ts))
	return crypto.HashConcat([]byte("vault_setFee"), amt[:], tsb[:])
}

// WithdrawDigest is the signing digest of a vault_withdraw call.
func WithdrawDigest(ts int64) types.Hash {
	var tsb [8]byte
	binary.BigEndian.PutUint64(tsb[:], uint64(ts))
	return crypto.HashConcat([]byte("vault_withdraw"), tsb[:])
}

// verifyAuth checks an admin signature against the given digest and
// returns the caller address derived from the verified public key.
// The vault itself decides whether that address is the administrator.
func verifyAuth(auth AdminAuth, digest types.Hash) (types.Address, *Error) {
	pubkey, err := hex.DecodeString(auth.Pubkey)
	if err != nil || len(pubkey) != 33 {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: "pubkey must be 33-byte hex"}
	}
	sig, err := hex.DecodeString(auth.Sig)
	if err != nil || len(sig) == 0 {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: "sig must be hex"}
	}

	skew := time.Since(time.Unix(auth.Ts, 0))
	if skew < -maxAuthSkew || skew > maxAuthSkew {
		return types.Address{}, &Error{Code: CodeUnauthorized, Message: "signature timestamp outside validity window"}
	}

	if !crypto.VerifySignature(digest[:], sig, pubkey) {
		return types.Address{}, &Error{Code: CodeUnauthorized, Message: "signature verification failed"}
	}

	return crypto.AddressFromPubKey(pubkey), nil
}
