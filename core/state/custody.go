package state

import (
	"errors"
	"math/big"

	"vaultcore/crypto"
)

// ErrInsufficientBalance is returned when a transfer would overdraw the
// source account.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

// errInvalidTransfer rejects nil or non-positive transfer amounts before any
// account is touched.
var errInvalidTransfer = errors.New("state: transfer amount must be positive")

// The ledger doubles as the vault engine's custody adapter: pooled assets live
// in module-owned accounts and move through the same balance records as user
// funds, so the recorded pool balance is the real one by construction.

// TransferIn moves amount of asset from a user account into a custody
// account.
func (l *Ledger) TransferIn(asset string, from, to crypto.Address, amount *big.Int) error {
	return l.transfer(asset, from, to, amount)
}

// TransferOut moves amount of asset from a custody account back to a user
// account.
func (l *Ledger) TransferOut(asset string, from, to crypto.Address, amount *big.Int) error {
	return l.transfer(asset, from, to, amount)
}

// BalanceOf reports the held amount of asset in an account.
func (l *Ledger) BalanceOf(asset string, account crypto.Address) (*big.Int, error) {
	acc, err := l.GetAccount(account)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Balance(asset)), nil
}

func (l *Ledger) transfer(asset string, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidTransfer
	}
	if from.Equal(to) {
		return nil
	}
	fromAcc, err := l.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance(asset).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := l.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.SetBalance(asset, new(big.Int).Sub(fromAcc.Balance(asset), amount))
	toAcc.SetBalance(asset, new(big.Int).Add(toAcc.Balance(asset), amount))
	if err := l.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.PutAccount(to, toAcc)
}
