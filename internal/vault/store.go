package vault

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cinderlabs/cindervault/internal/storage"
	"github.com/cinderlabs/cindervault/pkg/types"
)

// Key layout within the vault database.
var (
	prefixEntry = []byte("v/") // v/<token(12)> -> Entry JSON
	prefixAudit = []byte("a/") // a/<token(12)> -> AccessRecord JSON
	keyAdmin    = []byte("m/admin")
	keyBalance  = []byte("m/balance")
)

// Entry is the stored (secret, active-flag) pair keyed by a token.
// A burned entry keeps its key forever but its secret is cleared.
type Entry struct {
	Secret []byte `json:"secret,omitempty"`
	Active bool   `json:"active"`
}

// AccessRecord is the persisted audit record of a successful redemption.
type AccessRecord struct {
	Token  types.Token   `json:"token"`
	Caller types.Address `json:"caller"`
	Paid   types.Amount  `json:"paid"`
	Time   int64         `json:"time"`
}

// Store persists vault entries, the collected balance, the pinned
// administrator and the redemption audit log. It requires a database
// with native batch support; Mint and Redeem commit through batches.
type Store struct {
	db storage.BatchDB
}

// NewStore creates a vault store backed by the given database.
func NewStore(db storage.BatchDB) *Store {
	return &Store{db: db}
}

func entryKey(t types.Token) []byte {
	key := make([]byte, len(prefixEntry)+types.TokenSize)
	copy(key, prefixEntry)
	copy(key[len(prefixEntry):], t[:])
	return key
}

func auditKey(t types.Token) []byte {
	key := make([]byte, len(prefixAudit)+types.TokenSize)
	copy(key, prefixAudit)
	copy(key[len(prefixAudit):], t[:])
	return key
}

// Entry retrieves the vault entry for a token.
// Returns storage.ErrNotFound if the token was never minted.
func (s *Store) Entry(t types.Token) (*Entry, error) {
	data, err := s.db.Get(entryKey(t))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("entry get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("entry unmarshal: %w", err)
	}
	return &e, nil
}

// Has checks if any entry (active or burned) exists for a token.
func (s *Store) Has(t types.Token) (bool, error) {
	return s.db.Has(entryKey(t))
}

// putEntry adds an entry write to a batch.
func putEntry(batch storage.Batch, t types.Token, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("entry marshal: %w", err)
	}
	return batch.Put(entryKey(t), data)
}

// putAudit adds an audit record write to a batch.
func putAudit(batch storage.Batch, rec *AccessRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit marshal: %w", err)
	}
	return batch.Put(auditKey(rec.Token), data)
}

// AuditRecord retrieves the redemption record for a token, if any.
func (s *Store) AuditRecord(t types.Token) (*AccessRecord, error) {
	data, err := s.db.Get(auditKey(t))
	if err != nil {
		return nil, err
	}
	var rec AccessRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("audit unmarshal: %w", err)
	}
	return &rec, nil
}

// ForEachAudit iterates over all redemption records.
// Return a non-nil error from fn to stop iteration early.
func (s *Store) ForEachAudit(fn func(*AccessRecord) error) error {
	return s.db.ForEach(prefixAudit, func(_, value []byte) error {
		var rec AccessRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // Skip corrupt entries.
		}
		return fn(&rec)
	})
}

// ActiveCount returns the number of entries whose active flag is set.
func (s *Store) ActiveCount() (int, error) {
	count := 0
	err := s.db.ForEach(prefixEntry, func(_, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return nil // Skip corrupt entries.
		}
		if e.Active {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan entries: %w", err)
	}
	return count, nil
}

// Balance returns the collected fee balance.
func (s *Store) Balance() (types.Amount, error) {
	data, err := s.db.Get(keyBalance)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance get: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt balance record: %d bytes", len(data))
	}
	return types.Amount(binary.BigEndian.Uint64(data)), nil
}

// putBalance adds a balance write to a batch.
func putBalance(batch storage.Batch, amount types.Amount) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(amount))
	return batch.Put(keyBalance, buf[:])
}

// Admin returns the pinned administrator address, or ok=false if the
// vault has not been initialized yet.
func (s *Store) Admin() (types.Address, bool, error) {
	data, err := s.db.Get(keyAdmin)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Address{}, false, nil
	}
	if err != nil {
		return types.Address{}, false, fmt.Errorf("admin get: %w", err)
	}
	if len(data) != types.AddressSize {
		return types.Address{}, false, fmt.Errorf("corrupt admin record: %d bytes", len(data))
	}
	var addr types.Address
	copy(addr[:], data)
	return addr, true, nil
}

// SetAdmin pins the administrator address. Fails if one is already
// pinned: the administrator is fixed at initialization and immutable.
func (s *Store) SetAdmin(addr types.Address) error {
	_, ok, err := s.Admin()
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("administrator already pinned")
	}
	if err := s.db.Put(keyAdmin, addr.Bytes()); err != nil {
		return fmt.Errorf("admin put: %w", err)
	}
	return nil
}

// newBatch creates a write batch on the underlying database.
func (s *Store) newBatch() storage.Batch {
	return s.db.NewBatch()
}
