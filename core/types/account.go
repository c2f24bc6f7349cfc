package types

import "math/big"

// Account is the balance record for a single principal, user or custody
// account alike. Balances are keyed by asset symbol and denominated in the
// asset's base units as big integers to match ledger precision.
type Account struct {
	Nonce    uint64              `json:"nonce"`
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an empty account with an initialised balance map.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// Balance returns the held amount of the given asset, never nil.
func (a *Account) Balance(asset string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Balances[asset]; ok && bal != nil {
		return bal
	}
	return big.NewInt(0)
}

// SetBalance records the held amount of the given asset. Zero balances are
// kept rather than pruned so a funded-then-drained asset stays visible.
func (a *Account) SetBalance(asset string, amount *big.Int) {
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[asset] = new(big.Int).Set(amount)
}
