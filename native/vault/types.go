package vault

import (
	"math/big"

	"vaultcore/crypto"
)

// Pool captures the global accounting state for one deposit-asset/reward-asset
// pairing. The pool's actual asset balance is never duplicated here: it is
// read from the custody accounts so recorded and real balances cannot diverge.
type Pool struct {
	// ID uniquely identifies the asset pairing, e.g. "usdn/rwd".
	ID string
	// Asset is the deposit asset symbol.
	Asset string
	// RewardAsset is the symbol of the asset emitted as rewards.
	RewardAsset string
	// TotalShares is the sum of all live positions' shares.
	TotalShares *big.Int
	// RewardRatePerSecond is the configured emission rate in reward asset
	// base units per second.
	RewardRatePerSecond *big.Int
	// AccRewardPerShare is the monotonically non-decreasing reward earned per
	// unit share since inception, scaled by RewardScale.
	AccRewardPerShare *big.Int
	// LastUpdateTs records when AccRewardPerShare was last advanced.
	LastUpdateTs int64
	// DepositVault is the custody account holding the pooled deposit asset.
	DepositVault crypto.Address
	// RewardVault is the custody account holding undistributed rewards.
	RewardVault crypto.Address
}

// Clone creates a deep copy so callers cannot mutate engine-held state.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := &Pool{
		ID:           p.ID,
		Asset:        p.Asset,
		RewardAsset:  p.RewardAsset,
		LastUpdateTs: p.LastUpdateTs,
		DepositVault: p.DepositVault,
		RewardVault:  p.RewardVault,
	}
	if p.TotalShares != nil {
		clone.TotalShares = new(big.Int).Set(p.TotalShares)
	}
	if p.RewardRatePerSecond != nil {
		clone.RewardRatePerSecond = new(big.Int).Set(p.RewardRatePerSecond)
	}
	if p.AccRewardPerShare != nil {
		clone.AccRewardPerShare = new(big.Int).Set(p.AccRewardPerShare)
	}
	return clone
}

// normalize backfills nil big integers on records loaded from storage.
func (p *Pool) normalize() {
	if p.TotalShares == nil {
		p.TotalShares = big.NewInt(0)
	}
	if p.RewardRatePerSecond == nil {
		p.RewardRatePerSecond = big.NewInt(0)
	}
	if p.AccRewardPerShare == nil {
		p.AccRewardPerShare = big.NewInt(0)
	}
}

// Position maintains one principal's claim on a pool. A position exists only
// while it has live shares or an unpaid settled reward; it is deleted the
// moment both reach zero.
type Position struct {
	// Owner is the controlling principal.
	Owner crypto.Address
	// PoolID names the pool this position belongs to.
	PoolID string
	// Shares is the position's proportional claim on the pool.
	Shares *big.Int
	// RewardDebt is shares × AccRewardPerShare at the instant of last
	// settlement, kept scaled. It is a baseline, not an amount owed.
	RewardDebt *big.Int
	// PendingReward is settled-but-unpaid reward in reward asset base units.
	PendingReward *big.Int
}

// Clone creates a deep copy so callers cannot mutate engine-held state.
func (pos *Position) Clone() *Position {
	if pos == nil {
		return nil
	}
	clone := &Position{
		Owner:  pos.Owner,
		PoolID: pos.PoolID,
	}
	if pos.Shares != nil {
		clone.Shares = new(big.Int).Set(pos.Shares)
	}
	if pos.RewardDebt != nil {
		clone.RewardDebt = new(big.Int).Set(pos.RewardDebt)
	}
	if pos.PendingReward != nil {
		clone.PendingReward = new(big.Int).Set(pos.PendingReward)
	}
	return clone
}

func (pos *Position) normalize() {
	if pos.Shares == nil {
		pos.Shares = big.NewInt(0)
	}
	if pos.RewardDebt == nil {
		pos.RewardDebt = big.NewInt(0)
	}
	if pos.PendingReward == nil {
		pos.PendingReward = big.NewInt(0)
	}
}

// PoolID derives the canonical pool identifier for an asset pairing.
func PoolID(asset, rewardAsset string) string {
	return asset + "/" + rewardAsset
}
