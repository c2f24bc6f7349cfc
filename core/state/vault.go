package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"vaultcore/crypto"
	"vaultcore/native/vault"
	"vaultcore/storage"
)

// Stored mirrors of the vault records. RLP cannot encode signed integers or
// interface-bearing types, so timestamps are stored as uint64 and addresses
// as prefix/payload pairs. These layouts are part of the storage format.
type storedAddress struct {
	Prefix string
	Raw    []byte
}

func storeAddress(addr crypto.Address) storedAddress {
	return storedAddress{Prefix: string(addr.Prefix()), Raw: addr.Bytes()}
}

func (s storedAddress) address() crypto.Address {
	return crypto.MustNewAddress(crypto.AddressPrefix(s.Prefix), s.Raw)
}

type storedPool struct {
	ID                  string
	Asset               string
	RewardAsset         string
	TotalShares         *big.Int
	RewardRatePerSecond *big.Int
	AccRewardPerShare   *big.Int
	LastUpdateTs        uint64
	DepositVault        storedAddress
	RewardVault         storedAddress
}

type storedPosition struct {
	Owner         storedAddress
	PoolID        string
	Shares        *big.Int
	RewardDebt    *big.Int
	PendingReward *big.Int
}

// GetPool loads the pool record for the given identifier, returning nil
// (without error) when the pairing was never initialised.
func (l *Ledger) GetPool(poolID string) (*vault.Pool, error) {
	raw, err := l.store.Get(poolKey(poolID))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: load pool %q: %w", poolID, err)
	}
	var stored storedPool
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode pool %q: %w", poolID, err)
	}
	return &vault.Pool{
		ID:                  stored.ID,
		Asset:               stored.Asset,
		RewardAsset:         stored.RewardAsset,
		TotalShares:         stored.TotalShares,
		RewardRatePerSecond: stored.RewardRatePerSecond,
		AccRewardPerShare:   stored.AccRewardPerShare,
		LastUpdateTs:        int64(stored.LastUpdateTs),
		DepositVault:        stored.DepositVault.address(),
		RewardVault:         stored.RewardVault.address(),
	}, nil
}

// PutPool persists the pool record.
func (l *Ledger) PutPool(pool *vault.Pool) error {
	if pool == nil {
		return errors.New("state: nil pool")
	}
	if pool.LastUpdateTs < 0 {
		return fmt.Errorf("state: pool %q has negative timestamp", pool.ID)
	}
	encoded, err := rlp.EncodeToBytes(&storedPool{
		ID:                  pool.ID,
		Asset:               pool.Asset,
		RewardAsset:         pool.RewardAsset,
		TotalShares:         orZero(pool.TotalShares),
		RewardRatePerSecond: orZero(pool.RewardRatePerSecond),
		AccRewardPerShare:   orZero(pool.AccRewardPerShare),
		LastUpdateTs:        uint64(pool.LastUpdateTs),
		DepositVault:        storeAddress(pool.DepositVault),
		RewardVault:         storeAddress(pool.RewardVault),
	})
	if err != nil {
		return fmt.Errorf("state: encode pool %q: %w", pool.ID, err)
	}
	return l.store.Put(poolKey(pool.ID), encoded)
}

// GetPosition loads the owner's position in the pool, returning nil (without
// error) when no live position exists.
func (l *Ledger) GetPosition(poolID string, owner crypto.Address) (*vault.Position, error) {
	raw, err := l.store.Get(positionKey(poolID, owner.String()))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: load position: %w", err)
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode position: %w", err)
	}
	return &vault.Position{
		Owner:         stored.Owner.address(),
		PoolID:        stored.PoolID,
		Shares:        stored.Shares,
		RewardDebt:    stored.RewardDebt,
		PendingReward: stored.PendingReward,
	}, nil
}

// PutPosition persists the position record.
func (l *Ledger) PutPosition(pos *vault.Position) error {
	if pos == nil {
		return errors.New("state: nil position")
	}
	encoded, err := rlp.EncodeToBytes(&storedPosition{
		Owner:         storeAddress(pos.Owner),
		PoolID:        pos.PoolID,
		Shares:        orZero(pos.Shares),
		RewardDebt:    orZero(pos.RewardDebt),
		PendingReward: orZero(pos.PendingReward),
	})
	if err != nil {
		return fmt.Errorf("state: encode position: %w", err)
	}
	return l.store.Put(positionKey(pos.PoolID, pos.Owner.String()), encoded)
}

// DeletePosition reclaims a closed position's storage. A subsequent GetPosition
// reports not-found rather than a zero-valued record.
func (l *Ledger) DeletePosition(poolID string, owner crypto.Address) error {
	return l.store.Delete(positionKey(poolID, owner.String()))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
