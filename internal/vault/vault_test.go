package vault

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/cinderlabs/cindervault/config"
	"github.com/cinderlabs/cindervault/internal/derive"
	"github.com/cinderlabs/cindervault/internal/fee"
	"github.com/cinderlabs/cindervault/internal/storage"
	"github.com/cinderlabs/cindervault/pkg/types"
)

var testSecret = []byte("age-encrypted payload bytes")

func adminAddr() types.Address {
	var a types.Address
	a[0] = 0xad
	return a
}

func callerAddr() types.Address {
	var a types.Address
	a[0] = 0xca
	return a
}

// newTestVault builds a vault over a fresh in-memory database with the
// deterministic deriver, a fee of 100 and a mint cap of 16.
func newTestVault(t *testing.T) (*Vault, *CollectSink) {
	t.Helper()

	db := storage.NewMemory()
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	if err := store.SetAdmin(adminAddr()); err != nil {
		t.Fatalf("SetAdmin() error: %v", err)
	}

	fees, err := fee.NewPolicy(db, adminAddr(), 100)
	if err != nil {
		t.Fatalf("NewPolicy() error: %v", err)
	}

	sink := &CollectSink{}
	v := New(store, fees, derive.HashChain{}, 16, sink)
	v.now = func() int64 { return 1700000000 }
	return v, sink
}

func mintOne(t *testing.T, v *Vault) types.Token {
	t.Helper()
	tokens, err := v.Mint(testSecret, 1, adminAddr())
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	return tokens[0]
}

func TestMint(t *testing.T) {
	v, sink := newTestVault(t)

	tokens, err := v.Mint(testSecret, 5, adminAddr())
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	if len(tokens) != 5 {
		t.Fatalf("Mint() returned %d tokens, want 5", len(tokens))
	}

	// Every minted token is active.
	for _, tok := range tokens {
		if !v.IsActive(tok) {
			t.Errorf("minted token %s should be active", tok)
		}
	}

	count, err := v.ActiveCount()
	if err != nil {
		t.Fatalf("ActiveCount() error: %v", err)
	}
	if count != 5 {
		t.Errorf("ActiveCount() = %d, want 5", count)
	}

	// One event per token.
	if got := len(sink.Generated()); got != 5 {
		t.Errorf("TokenGenerated events = %d, want 5", got)
	}
}

func TestMint_Unauthorized(t *testing.T) {
	v, sink := newTestVault(t)

	_, err := v.Mint(testSecret, 1, callerAddr())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Mint() by non-admin = %v, want ErrUnauthorized", err)
	}

	// No entries, no events.
	count, _ := v.ActiveCount()
	if count != 0 {
		t.Errorf("ActiveCount() after rejected mint = %d, want 0", count)
	}
	if len(sink.Generated()) != 0 {
		t.Error("rejected mint should not emit events")
	}
}

func TestMint_CountBounds(t *testing.T) {
	v, _ := newTestVault(t)

	tests := []struct {
		name  string
		count int
		ok    bool
	}{
		{"negative", -1, false},
		{"zero", 0, true},
		{"at cap", 16, true},
		{"above cap", 17, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := v.Mint(testSecret, tt.count, adminAddr())
			if !tt.ok {
				if !errors.Is(err, ErrCountOutOfBounds) {
					t.Errorf("Mint(%d) = %v, want ErrCountOutOfBounds", tt.count, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Mint(%d) error: %v", tt.count, err)
			}
			if len(tokens) != tt.count {
				t.Errorf("Mint(%d) returned %d tokens", tt.count, len(tokens))
			}
		})
	}
}

func TestMint_ZeroCountNoSideEffects(t *testing.T) {
	v, sink := newTestVault(t)

	tokens, err := v.Mint(testSecret, 0, adminAddr())
	if err != nil {
		t.Fatalf("Mint(0) error: %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("Mint(0) returned %d tokens, want 0", len(tokens))
	}
	if len(sink.Generated()) != 0 {
		t.Error("Mint(0) should not emit events")
	}
}

func TestMint_CollisionFailsWholeBatch(t *testing.T) {
	v, sink := newTestVault(t)

	// The deterministic deriver with the fixed clock reproduces the same
	// batch, so a second identical mint collides on its first token.
	first, err := v.Mint(testSecret, 3, adminAddr())
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}

	_, err = v.Mint(testSecret, 3, adminAddr())
	if !errors.Is(err, ErrTokenCollision) {
		t.Fatalf("second identical Mint() = %v, want ErrTokenCollision", err)
	}

	// The failed mint must not have touched the existing entries.
	for _, tok := range first {
		if !v.IsActive(tok) {
			t.Errorf("token %s lost active state after failed mint", tok)
		}
	}
	count, _ := v.ActiveCount()
	if count != 3 {
		t.Errorf("ActiveCount() = %d, want 3", count)
	}
	if got := len(sink.Generated()); got != 3 {
		t.Errorf("TokenGenerated events = %d, want 3", got)
	}
}

func TestRedeem(t *testing.T) {
	v, sink := newTestVault(t)
	tok := mintOne(t, v)

	secret, err := v.Redeem(tok, 100, callerAddr())
	if err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}
	if !bytes.Equal(secret, testSecret) {
		t.Errorf("Redeem() secret = %q, want %q", secret, testSecret)
	}

	// Token is burned.
	if v.IsActive(tok) {
		t.Error("token should be inactive after redemption")
	}

	// Payment credited.
	balance, err := v.Balance()
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if balance != 100 {
		t.Errorf("Balance() = %d, want 100", balance)
	}

	// Access event recorded.
	accesses := sink.Accesses()
	if len(accesses) != 1 {
		t.Fatalf("AccessLogged events = %d, want 1", len(accesses))
	}
	if accesses[0].Token != tok || accesses[0].Caller != callerAddr() || accesses[0].Paid != 100 {
		t.Errorf("AccessLogged event = %+v", accesses[0])
	}
}

func TestRedeem_ExactlyOnce(t *testing.T) {
	v, _ := newTestVault(t)
	tok := mintOne(t, v)

	if _, err := v.Redeem(tok, 100, callerAddr()); err != nil {
		t.Fatalf("first Redeem() error: %v", err)
	}

	// The second attempt is indistinguishable from a never-minted token.
	_, err := v.Redeem(tok, 100, callerAddr())
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("second Redeem() = %v, want ErrTokenInvalid", err)
	}

	// The failed retry must not credit anything.
	balance, _ := v.Balance()
	if balance != 100 {
		t.Errorf("Balance() after failed retry = %d, want 100", balance)
	}
}

func TestRedeem_NeverMintedToken(t *testing.T) {
	v, sink := newTestVault(t)

	unknown, err := types.ParseToken("5000000000000000000000000")
	if err != nil {
		t.Fatal(err)
	}

	_, err = v.Redeem(unknown, 100, callerAddr())
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Redeem() unknown token = %v, want ErrTokenInvalid", err)
	}
	if len(sink.Accesses()) != 0 {
		t.Error("failed redemption should not emit events")
	}
}

func TestRedeem_InsufficientPayment(t *testing.T) {
	v, sink := newTestVault(t)
	tok := mintOne(t, v)

	_, err := v.Redeem(tok, 99, callerAddr())
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Errorf("Redeem() underpaid = %v, want ErrInsufficientPayment", err)
	}

	// No mutation: token still redeemable, nothing credited, no event.
	if !v.IsActive(tok) {
		t.Error("token should stay active after rejected payment")
	}
	balance, _ := v.Balance()
	if balance != 0 {
		t.Errorf("Balance() = %d, want 0", balance)
	}
	if len(sink.Accesses()) != 0 {
		t.Error("rejected redemption should not emit events")
	}

	// Exact fee succeeds; overpayment is kept in full.
	if _, err := v.Redeem(tok, 100, callerAddr()); err != nil {
		t.Fatalf("Redeem() exact fee error: %v", err)
	}
}

func TestRedeem_OverpaymentKept(t *testing.T) {
	v, _ := newTestVault(t)
	tok := mintOne(t, v)

	if _, err := v.Redeem(tok, 250, callerAddr()); err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}
	balance, _ := v.Balance()
	if balance != 250 {
		t.Errorf("Balance() = %d, want 250 (full payment, no change given)", balance)
	}
}

func TestRedeem_SecretClearedFromStorage(t *testing.T) {
	v, _ := newTestVault(t)
	tok := mintOne(t, v)

	if _, err := v.Redeem(tok, 100, callerAddr()); err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}

	entry, err := v.store.Entry(tok)
	if err != nil {
		t.Fatalf("Entry() after redeem error: %v", err)
	}
	if entry.Active {
		t.Error("entry should be inactive after redeem")
	}
	if len(entry.Secret) != 0 {
		t.Error("secret bytes should be cleared from the burned entry")
	}
}

func TestRedeem_FeeChangeApplies(t *testing.T) {
	v, _ := newTestVault(t)
	tokens, err := v.Mint(testSecret, 2, adminAddr())
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}

	if err := v.SetFee(500, adminAddr()); err != nil {
		t.Fatalf("SetFee() error: %v", err)
	}

	// The old fee no longer clears the bar.
	_, err = v.Redeem(tokens[0], 100, callerAddr())
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Errorf("Redeem() at stale fee = %v, want ErrInsufficientPayment", err)
	}

	if _, err := v.Redeem(tokens[0], 500, callerAddr()); err != nil {
		t.Fatalf("Redeem() at new fee error: %v", err)
	}

	// Lowering to zero makes redemption free.
	if err := v.SetFee(0, adminAddr()); err != nil {
		t.Fatalf("SetFee(0) error: %v", err)
	}
	if _, err := v.Redeem(tokens[1], 0, callerAddr()); err != nil {
		t.Fatalf("Redeem() at zero fee error: %v", err)
	}
}

func TestSetFee_Unauthorized(t *testing.T) {
	v, _ := newTestVault(t)

	err := v.SetFee(500, callerAddr())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("SetFee() by non-admin = %v, want ErrUnauthorized", err)
	}
	if got := v.CurrentFee(); got != 100 {
		t.Errorf("CurrentFee() after rejected SetFee = %d, want 100", got)
	}
}

func TestRedeem_Concurrent(t *testing.T) {
	v, sink := newTestVault(t)
	tok := mintOne(t, v)

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var caller types.Address
			caller[0] = byte(i + 1)
			_, results[i] = v.Redeem(tok, 100, caller)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("concurrent Redeem() = %v, want nil or ErrTokenInvalid", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d concurrent redemptions succeeded, want exactly 1", succeeded)
	}

	// Exactly one payment collected, one event emitted.
	balance, _ := v.Balance()
	if balance != 100 {
		t.Errorf("Balance() = %d, want 100", balance)
	}
	if got := len(sink.Accesses()); got != 1 {
		t.Errorf("AccessLogged events = %d, want 1", got)
	}
}

func TestWithdraw(t *testing.T) {
	v, _ := newTestVault(t)
	tokens, err := v.Mint(testSecret, 2, adminAddr())
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	for _, tok := range tokens {
		if _, err := v.Redeem(tok, 100, callerAddr()); err != nil {
			t.Fatalf("Redeem() error: %v", err)
		}
	}

	amount, err := v.Withdraw(adminAddr())
	if err != nil {
		t.Fatalf("Withdraw() error: %v", err)
	}
	if amount != 200 {
		t.Errorf("Withdraw() = %d, want 200", amount)
	}

	balance, _ := v.Balance()
	if balance != 0 {
		t.Errorf("Balance() after withdraw = %d, want 0", balance)
	}

	// Nothing left to withdraw.
	amount, err = v.Withdraw(adminAddr())
	if err != nil {
		t.Fatalf("second Withdraw() error: %v", err)
	}
	if amount != 0 {
		t.Errorf("second Withdraw() = %d, want 0", amount)
	}
}

func TestWithdraw_Unauthorized(t *testing.T) {
	v, _ := newTestVault(t)
	tok := mintOne(t, v)
	if _, err := v.Redeem(tok, 100, callerAddr()); err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}

	_, err := v.Withdraw(callerAddr())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Withdraw() by non-admin = %v, want ErrUnauthorized", err)
	}

	balance, _ := v.Balance()
	if balance != 100 {
		t.Errorf("Balance() after rejected withdraw = %d, want 100", balance)
	}
}

func TestIsActive_LifeCycle(t *testing.T) {
	v, _ := newTestVault(t)

	unknown, _ := types.ParseToken("7000000000000000000000000")
	if v.IsActive(unknown) {
		t.Error("never-minted token should read inactive")
	}

	tok := mintOne(t, v)
	if !v.IsActive(tok) {
		t.Error("minted token should read active")
	}

	if _, err := v.Redeem(tok, 100, callerAddr()); err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}
	if v.IsActive(tok) {
		t.Error("burned token should read inactive")
	}
}

func TestVault_PersistsAcrossRestart(t *testing.T) {
	db := storage.NewMemory()
	defer db.Close()

	store := NewStore(db)
	if err := store.SetAdmin(adminAddr()); err != nil {
		t.Fatal(err)
	}
	fees, err := fee.NewPolicy(db, adminAddr(), 100)
	if err != nil {
		t.Fatal(err)
	}
	v1 := New(store, fees, derive.Random{}, 16, &CollectSink{})

	tokens, err := v1.Mint(testSecret, 2, adminAddr())
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	if _, err := v1.Redeem(tokens[0], 100, callerAddr()); err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}

	// Rebuild everything over the same database.
	fees2, err := fee.NewPolicy(db, adminAddr(), 0)
	if err != nil {
		t.Fatal(err)
	}
	v2 := New(NewStore(db), fees2, derive.Random{}, 16, &CollectSink{})

	if v2.IsActive(tokens[0]) {
		t.Error("burned token should stay burned after restart")
	}
	if !v2.IsActive(tokens[1]) {
		t.Error("active token should stay active after restart")
	}
	balance, _ := v2.Balance()
	if balance != 100 {
		t.Errorf("Balance() after restart = %d, want 100", balance)
	}
	if got := v2.CurrentFee(); got != 100 {
		t.Errorf("CurrentFee() after restart = %d, want 100", got)
	}
}

func TestMint_FullCapOverBadger(t *testing.T) {
	db, err := storage.NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	if err := store.SetAdmin(adminAddr()); err != nil {
		t.Fatalf("SetAdmin() error: %v", err)
	}
	fees, err := fee.NewPolicy(db, adminAddr(), 100)
	if err != nil {
		t.Fatalf("NewPolicy() error: %v", err)
	}
	v := New(store, fees, derive.Random{}, config.DefaultMaxMint, &CollectSink{})

	// A realistic payload at the default cap exceeds badger's
	// single-transaction size limit; the mint must still succeed.
	secret := make([]byte, 32*1024)
	for i := range secret {
		secret[i] = byte(i)
	}

	tokens, err := v.Mint(secret, config.DefaultMaxMint, adminAddr())
	if err != nil {
		t.Fatalf("Mint() at cap error: %v", err)
	}
	if len(tokens) != config.DefaultMaxMint {
		t.Fatalf("Mint() returned %d tokens, want %d", len(tokens), config.DefaultMaxMint)
	}

	count, err := v.ActiveCount()
	if err != nil {
		t.Fatalf("ActiveCount() error: %v", err)
	}
	if count != config.DefaultMaxMint {
		t.Errorf("ActiveCount() = %d, want %d", count, config.DefaultMaxMint)
	}

	got, err := v.Redeem(tokens[len(tokens)-1], 100, callerAddr())
	if err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Error("redeemed secret does not match deposited secret")
	}
}

// flakyBatchDB wraps a memory database with batches that can be made to
// fail, recording every Discard call.
type flakyBatchDB struct {
	*storage.MemoryDB
	fail      bool
	discarded int
}

func (f *flakyBatchDB) NewBatch() storage.Batch {
	return &flakyBatch{db: f, inner: f.MemoryDB.NewBatch()}
}

type flakyBatch struct {
	db    *flakyBatchDB
	inner storage.Batch
}

func (b *flakyBatch) Put(key, value []byte) error {
	if b.db.fail {
		return errors.New("simulated write failure")
	}
	return b.inner.Put(key, value)
}

func (b *flakyBatch) Delete(key []byte) error {
	if b.db.fail {
		return errors.New("simulated write failure")
	}
	return b.inner.Delete(key)
}

func (b *flakyBatch) Commit() error {
	if b.db.fail {
		return errors.New("simulated write failure")
	}
	return b.inner.Commit()
}

func (b *flakyBatch) Discard() {
	b.db.discarded++
	b.inner.Discard()
}

func TestVault_BatchDiscardedOnError(t *testing.T) {
	db := &flakyBatchDB{MemoryDB: storage.NewMemory()}
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	if err := store.SetAdmin(adminAddr()); err != nil {
		t.Fatalf("SetAdmin() error: %v", err)
	}
	fees, err := fee.NewPolicy(db, adminAddr(), 100)
	if err != nil {
		t.Fatalf("NewPolicy() error: %v", err)
	}
	v := New(store, fees, derive.Random{}, 16, &CollectSink{})

	tokens, err := v.Mint(testSecret, 1, adminAddr())
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	if db.discarded != 1 {
		t.Fatalf("discards after successful mint = %d, want 1", db.discarded)
	}

	// Every failed batch path must release its batch.
	db.fail = true

	if _, err := v.Mint(testSecret, 1, adminAddr()); err == nil {
		t.Fatal("Mint() over failing batch should error")
	}
	if db.discarded != 2 {
		t.Errorf("discards after failed mint = %d, want 2", db.discarded)
	}

	if _, err := v.Redeem(tokens[0], 100, callerAddr()); err == nil {
		t.Fatal("Redeem() over failing batch should error")
	}
	if db.discarded != 3 {
		t.Errorf("discards after failed redeem = %d, want 3", db.discarded)
	}

	// The failed redemption must not have burned the token.
	db.fail = false
	if !v.IsActive(tokens[0]) {
		t.Error("token should stay active after failed redemption")
	}
	if _, err := v.Redeem(tokens[0], 100, callerAddr()); err != nil {
		t.Fatalf("Redeem() after recovery error: %v", err)
	}
}
