package state

import (
	"errors"

	"vaultcore/storage"
)

var genesisAppliedKey = []byte("vault/genesisApplied")

// GenesisApplied reports whether the one-time genesis seeding already ran.
func (l *Ledger) GenesisApplied() (bool, error) {
	has, err := l.store.Has(genesisAppliedKey)
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return false, err
	}
	return has, nil
}

// MarkGenesisApplied records that genesis seeding ran. Call inside the same
// atomic transaction as the seeding credits.
func (l *Ledger) MarkGenesisApplied() error {
	return l.store.Put(genesisAppliedKey, []byte{1})
}
