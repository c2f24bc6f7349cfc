package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"vaultcore/core/types"
	"vaultcore/crypto"
	"vaultcore/storage"
)

type storedBalance struct {
	Asset  string
	Amount *big.Int
}

type storedAccount struct {
	Nonce    uint64
	Balances []storedBalance
}

// GetAccount loads the balance record for an address. Unknown addresses yield
// an empty account rather than an error so custody accounts spring into
// existence on first credit.
func (l *Ledger) GetAccount(addr crypto.Address) (*types.Account, error) {
	raw, err := l.store.Get(accountKey(addr.String()))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return types.NewAccount(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: load account %s: %w", addr, err)
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	account := types.NewAccount()
	account.Nonce = stored.Nonce
	for _, bal := range stored.Balances {
		account.SetBalance(bal.Asset, bal.Amount)
	}
	return account, nil
}

// PutAccount persists the balance record. Balances are stored sorted by asset
// symbol so encoding is deterministic.
func (l *Ledger) PutAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	stored := storedAccount{Nonce: account.Nonce}
	assets := make([]string, 0, len(account.Balances))
	for asset := range account.Balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		stored.Balances = append(stored.Balances, storedBalance{
			Asset:  asset,
			Amount: orZero(account.Balances[asset]),
		})
	}
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return fmt.Errorf("state: encode account %s: %w", addr, err)
	}
	return l.store.Put(accountKey(addr.String()), encoded)
}

// Credit adds amount of asset to an account. Used for genesis seeding.
func (l *Ledger) Credit(addr crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("state: credit amount must be non-negative")
	}
	account, err := l.GetAccount(addr)
	if err != nil {
		return err
	}
	account.SetBalance(asset, new(big.Int).Add(account.Balance(asset), amount))
	return l.PutAccount(addr, account)
}
