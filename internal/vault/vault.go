// Package vault implements the single-use disposable-token ledger.
//
// An administrator deposits an encrypted secret and mints independent
// access tokens for it. Any caller who presents an active token and pays
// at least the current fee redeems it exactly once; the redemption
// atomically returns the secret, clears its storage and burns the token.
// A token never transitions back to active.
package vault

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cinderlabs/cindervault/internal/derive"
	"github.com/cinderlabs/cindervault/internal/fee"
	klog "github.com/cinderlabs/cindervault/internal/log"
	"github.com/cinderlabs/cindervault/internal/storage"
	"github.com/cinderlabs/cindervault/pkg/types"
)

// Vault is the token ledger. All mutating operations serialize on a
// single mutex: the one-redemption-per-token guarantee depends on the
// check-then-mutate sequence in Redeem being indivisible.
type Vault struct {
	mu      sync.Mutex
	store   *Store
	fees    *fee.Policy
	deriver derive.Deriver
	maxMint int
	sink    Sink
	logger  zerolog.Logger

	// now is swappable for deterministic derivation tests.
	now func() int64
}

// New creates a vault over the given store, fee policy and deriver.
// maxMint caps the token count of a single mint call. A nil sink
// defaults to the structured-log sink.
func New(store *Store, fees *fee.Policy, deriver derive.Deriver, maxMint int, sink Sink) *Vault {
	if sink == nil {
		sink = NewLogSink()
	}
	return &Vault{
		store:   store,
		fees:    fees,
		deriver: deriver,
		maxMint: maxMint,
		sink:    sink,
		logger:  klog.Vault,
		now:     func() int64 { return time.Now().Unix() },
	}
}

// Admin returns the administrator address.
func (v *Vault) Admin() types.Address {
	return v.fees.Admin()
}

// CurrentFee returns the current access fee.
func (v *Vault) CurrentFee() types.Amount {
	return v.fees.CurrentFee()
}

// SetFee replaces the access fee. Admin-gated.
func (v *Vault) SetFee(amount types.Amount, caller types.Address) error {
	if err := v.fees.SetFee(amount, caller); err != nil {
		return err
	}
	v.logger.Info().Uint64("fee", uint64(amount)).Msg("fee updated")
	return nil
}

// Mint derives count tokens for the given secret and records each as an
// active vault entry bound to it. Admin-gated. The returned sequence is
// the only time tokens are disclosed; delivering them to end users is
// the caller's responsibility.
//
// The whole mint fails without side effects on a count outside
// [0, maxMint] or on a collision with any existing entry, active or
// burned. count zero returns an empty sequence and changes nothing.
func (v *Vault) Mint(secret []byte, count int, caller types.Address) ([]types.Token, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.fees.Admin() {
		return nil, ErrUnauthorized
	}
	if count < 0 || count > v.maxMint {
		return nil, fmt.Errorf("%w: count %d, cap %d", ErrCountOutOfBounds, count, v.maxMint)
	}
	if count == 0 {
		return []types.Token{}, nil
	}

	tokens, err := v.deriver.Derive(secret, count, caller, v.now())
	if err != nil {
		return nil, fmt.Errorf("derive tokens: %w", err)
	}

	// Reject collisions before writing anything: both against entries
	// already in the store and within the freshly derived batch.
	seen := make(map[types.Token]struct{}, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			return nil, fmt.Errorf("%w: token %s derived twice", ErrTokenCollision, t)
		}
		seen[t] = struct{}{}

		exists, err := v.store.Has(t)
		if err != nil {
			return nil, fmt.Errorf("collision check: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%w: token %s", ErrTokenCollision, t)
		}
	}

	batch := v.store.newBatch()
	defer batch.Discard()
	for _, t := range tokens {
		if err := putEntry(batch, t, &Entry{Secret: secret, Active: true}); err != nil {
			return nil, err
		}
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("commit mint: %w", err)
	}

	for _, t := range tokens {
		v.sink.TokenGenerated(t)
	}
	v.logger.Info().Int("count", count).Msg("tokens minted")
	return tokens, nil
}

// IsActive reports whether a token can currently be redeemed. Never-minted
// and burned tokens both read as inactive. Pure read, no side effects.
func (v *Vault) IsActive(token types.Token) bool {
	entry, err := v.store.Entry(token)
	if err != nil {
		return false
	}
	return entry.Active
}

// Redeem exchanges an active token plus a payment of at least the
// current fee for the stored secret. On success the entry's secret is
// cleared and its active flag dropped in the same atomic commit that
// credits the payment; the token is permanently burned.
//
// All checks run before any mutation: a failed redemption is a no-op
// and the caller keeps the payment.
func (v *Vault) Redeem(token types.Token, paid types.Amount, caller types.Address) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if paid < v.fees.CurrentFee() {
		return nil, fmt.Errorf("%w: paid %d, fee %d", ErrInsufficientPayment, paid, v.fees.CurrentFee())
	}

	entry, err := v.store.Entry(token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if !entry.Active {
		return nil, ErrTokenInvalid
	}

	secret := entry.Secret

	balance, err := v.store.Balance()
	if err != nil {
		return nil, err
	}

	batch := v.store.newBatch()
	defer batch.Discard()
	if err := putEntry(batch, token, &Entry{Active: false}); err != nil {
		return nil, err
	}
	if err := putAudit(batch, &AccessRecord{
		Token:  token,
		Caller: caller,
		Paid:   paid,
		Time:   v.now(),
	}); err != nil {
		return nil, err
	}
	if err := putBalance(batch, balance+paid); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("commit redeem: %w", err)
	}

	v.sink.AccessLogged(token, caller, paid)
	v.logger.Info().Stringer("token", token).Msg("token redeemed")
	return secret, nil
}

// Balance returns the collected fee balance.
func (v *Vault) Balance() (types.Amount, error) {
	return v.store.Balance()
}

// ActiveCount returns the number of currently redeemable tokens.
func (v *Vault) ActiveCount() (int, error) {
	return v.store.ActiveCount()
}

// Withdraw pays out the collected fee balance and zeroes it. Admin-gated.
// Returns the amount withdrawn; transferring it anywhere is the job of
// the surrounding settlement system.
func (v *Vault) Withdraw(caller types.Address) (types.Amount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.fees.Admin() {
		return 0, ErrUnauthorized
	}

	balance, err := v.store.Balance()
	if err != nil {
		return 0, err
	}
	if balance == 0 {
		return 0, nil
	}

	batch := v.store.newBatch()
	defer batch.Discard()
	if err := putBalance(batch, 0); err != nil {
		return 0, err
	}
	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("commit withdraw: %w", err)
	}

	v.logger.Info().Uint64("amount", uint64(balance)).Msg("balance withdrawn")
	return balance, nil
}
