package state

import (
	"errors"
	"fmt"

	"vaultcore/storage"
)

// kv is the narrow slice of storage.Database the ledger reads and writes
// through, so an overlay can be swapped in for transactional application.
type kv interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
}

// Ledger persists pools, positions and accounts as RLP records over a
// key-value store. It implements both the vault engine's state interface and
// its custody adapter.
type Ledger struct {
	store kv
}

// NewLedger constructs a ledger backed by the supplied key-value store.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{store: db}
}

// Atomically runs fn against a buffered overlay of the ledger and flushes the
// overlay's writes and deletes only when fn returns nil. On error nothing is
// applied, leaving state exactly as before the call. This is the all-or-
// nothing application the vault engine assumes of its host.
func (l *Ledger) Atomically(fn func(tx *Ledger) error) error {
	if l == nil || l.store == nil {
		return errors.New("state: ledger not configured")
	}
	overlay := newOverlayKV(l.store)
	if err := fn(&Ledger{store: overlay}); err != nil {
		return err
	}
	return overlay.flush()
}

// overlayKV buffers writes and deletes on top of a base store until flushed.
type overlayKV struct {
	base    kv
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newOverlayKV(base kv) *overlayKV {
	return &overlayKV{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *overlayKV) Put(key, value []byte) error {
	delete(o.deletes, string(key))
	o.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (o *overlayKV) Get(key []byte) ([]byte, error) {
	if _, gone := o.deletes[string(key)]; gone {
		return nil, storage.ErrKeyNotFound
	}
	if value, ok := o.writes[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

func (o *overlayKV) Has(key []byte) (bool, error) {
	if _, gone := o.deletes[string(key)]; gone {
		return false, nil
	}
	if _, ok := o.writes[string(key)]; ok {
		return true, nil
	}
	return o.base.Has(key)
}

func (o *overlayKV) Delete(key []byte) error {
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

func (o *overlayKV) flush() error {
	for key := range o.deletes {
		if err := o.base.Delete([]byte(key)); err != nil {
			return fmt.Errorf("state: flush delete: %w", err)
		}
	}
	for key, value := range o.writes {
		if err := o.base.Put([]byte(key), value); err != nil {
			return fmt.Errorf("state: flush put: %w", err)
		}
	}
	return nil
}
