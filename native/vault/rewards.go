package vault

import "math/big"

// advance lazily rolls the reward-per-share accumulator forward to now. It is
// idempotent within a timestamp and is the only place AccRewardPerShare ever
// changes; the value never decreases. The update timestamp moves even when no
// shares are outstanding so reward-time spent on an empty pool is never
// credited to a future depositor.
func advance(pool *Pool, now int64) error {
	if now == pool.LastUpdateTs {
		return nil
	}
	if now < pool.LastUpdateTs {
		return ErrClockRewind
	}
	elapsed := big.NewInt(now - pool.LastUpdateTs)
	if pool.TotalShares.Sign() > 0 && pool.RewardRatePerSecond.Sign() > 0 {
		emitted, err := checkedMul(elapsed, pool.RewardRatePerSecond)
		if err != nil {
			return err
		}
		delta, err := mulDiv(emitted, rewardScale, pool.TotalShares)
		if err != nil {
			return err
		}
		acc, err := checkedAdd(pool.AccRewardPerShare, delta)
		if err != nil {
			return err
		}
		pool.AccRewardPerShare = acc
	}
	pool.LastUpdateTs = now
	return nil
}

// settle reconciles a position against the already-advanced accumulator,
// moving newly accrued reward into the pending buffer and re-baselining the
// reward debt. Settlement is pure arithmetic: payout happens only on claim.
// The accrued delta is returned for observability; callers do not need it.
func settle(pool *Pool, pos *Position) (*big.Int, error) {
	owed, err := checkedMul(pos.Shares, pool.AccRewardPerShare)
	if err != nil {
		return nil, err
	}
	accrued := new(big.Int).Sub(owed, pos.RewardDebt)
	if accrued.Sign() < 0 {
		// RewardDebt is always re-baselined from the same monotone
		// accumulator, so a negative delta means corrupted state.
		return nil, ErrOverflow
	}
	accrued.Quo(accrued, rewardScale)
	pending, err := checkedAdd(pos.PendingReward, accrued)
	if err != nil {
		return nil, err
	}
	pos.PendingReward = pending
	pos.RewardDebt = owed
	return accrued, nil
}

// rebaseline resets the reward debt after a share-count change so the new
// share total does not retroactively claim past reward.
func rebaseline(pool *Pool, pos *Position) error {
	owed, err := checkedMul(pos.Shares, pool.AccRewardPerShare)
	if err != nil {
		return err
	}
	pos.RewardDebt = owed
	return nil
}
