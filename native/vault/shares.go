package vault

import "math/big"

// mintShares converts a deposit amount into newly minted shares using the
// pool balance observed before the deposit is applied, so yield accrued to
// the pool (fees, donations) stays with existing holders. The pool's total
// share supply is incremented in place.
func mintShares(pool *Pool, depositAmount, balanceBefore *big.Int) (*big.Int, error) {
	if depositAmount == nil || depositAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	var shares *big.Int
	if pool.TotalShares.Sign() == 0 {
		// Bootstrap: seed 1:1 on the deposited amount. Any balance already
		// sitting in custody at this point stays permanently undistributed.
		shares = new(big.Int).Set(depositAmount)
	} else {
		if balanceBefore == nil || balanceBefore.Sign() == 0 {
			// Outstanding shares with an empty custody account cannot be
			// priced; the pairing is unrecoverable by deposit.
			return nil, ErrInvalidAmount
		}
		minted, err := mulDiv(depositAmount, pool.TotalShares, balanceBefore)
		if err != nil {
			return nil, err
		}
		shares = minted
	}
	if shares.Sign() == 0 {
		// A deposit too small to register must fail rather than silently
		// mint nothing while still moving custody funds.
		return nil, ErrInvalidAmount
	}
	total, err := checkedAdd(pool.TotalShares, shares)
	if err != nil {
		return nil, err
	}
	pool.TotalShares = total
	return shares, nil
}

// burnShares converts shares back into an asset amount at the pool balance
// observed before the withdrawal. Floor rounding here is the numeric
// foundation of the conservation guarantee: the aggregate of all withdrawals
// can never exceed the pool's real balance.
func burnShares(pool *Pool, sharesIn, balanceBefore *big.Int) (*big.Int, error) {
	if sharesIn == nil || sharesIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if pool.TotalShares.Sign() == 0 || sharesIn.Cmp(pool.TotalShares) > 0 {
		return nil, ErrInsufficientShares
	}
	amount, err := mulDiv(sharesIn, balanceBefore, pool.TotalShares)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, sharesIn)
	return amount, nil
}
