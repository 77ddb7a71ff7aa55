// Package fee implements the access fee policy.
//
// The fee is a process-wide value read by every redemption attempt and
// mutable only by the administrator. Only the current value matters;
// there is no historical versioning.
package fee

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cinderlabs/cindervault/internal/storage"
	"github.com/cinderlabs/cindervault/pkg/types"
)

// ErrUnauthorized is returned when a non-administrator invokes an
// admin-only operation.
var ErrUnauthorized = errors.New("caller is not the administrator")

var keyFee = []byte("f/current")

// Policy holds the current access fee and the rule for changing it.
type Policy struct {
	mu      sync.RWMutex
	db      storage.DB
	admin   types.Address
	current types.Amount
}

// NewPolicy creates a fee policy bound to the given administrator.
// A fee persisted in the database wins over the initial value; the
// initial value is written only on first use.
func NewPolicy(db storage.DB, admin types.Address, initial types.Amount) (*Policy, error) {
	p := &Policy{db: db, admin: admin}

	data, err := db.Get(keyFee)
	switch {
	case err == nil:
		if len(data) != 8 {
			return nil, fmt.Errorf("corrupt fee record: %d bytes", len(data))
		}
		p.current = types.Amount(binary.BigEndian.Uint64(data))
	case errors.Is(err, storage.ErrNotFound):
		p.current = initial
		if err := p.persist(initial); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("load fee: %w", err)
	}

	return p, nil
}

// Admin returns the administrator address the policy was bound to.
func (p *Policy) Admin() types.Address {
	return p.admin
}

// CurrentFee returns the current access fee. Always succeeds.
func (p *Policy) CurrentFee() types.Amount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// SetFee replaces the stored fee atomically. It takes effect for all
// redemptions initiated after this call returns. Zero and arbitrarily
// large values are both legal; only the caller is checked.
func (p *Policy) SetFee(amount types.Amount, caller types.Address) error {
	if caller != p.admin {
		return ErrUnauthorized
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.persist(amount); err != nil {
		return err
	}
	p.current = amount
	return nil
}

func (p *Policy) persist(amount types.Amount) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(amount))
	if err := p.db.Put(keyFee, buf[:]); err != nil {
		return fmt.Errorf("persist fee: %w", err)
	}
	return nil
}
