package events

import (
	"math/big"

	"vaultcore/core/types"
)

const (
	// TypeVaultPoolInitialized is emitted once per asset pairing at creation.
	TypeVaultPoolInitialized = "vault.poolInitialized"
	// TypeVaultDeposited captures shares minted for a deposit.
	TypeVaultDeposited = "vault.deposited"
	// TypeVaultWithdrawn captures shares burned and assets released.
	TypeVaultWithdrawn = "vault.withdrawn"
	// TypeVaultRewardsClaimed is emitted when settled rewards are paid out.
	TypeVaultRewardsClaimed = "vault.rewardsClaimed"
	// TypeVaultRewardsFunded is emitted when the reward vault is topped up and
	// the emission rate set.
	TypeVaultRewardsFunded = "vault.rewardsFunded"
	// TypeVaultPositionClosed signals a position record was reclaimed.
	TypeVaultPositionClosed = "vault.positionClosed"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// VaultPoolInitialized announces a newly created pool.
type VaultPoolInitialized struct {
	PoolID      string
	Asset       string
	RewardAsset string
}

// EventType satisfies the Event interface.
func (VaultPoolInitialized) EventType() string { return TypeVaultPoolInitialized }

// Event converts the structured payload into a broadcastable event.
func (e VaultPoolInitialized) Event() *types.Event {
	return &types.Event{Type: TypeVaultPoolInitialized, Attributes: map[string]string{
		"poolId":      e.PoolID,
		"asset":       e.Asset,
		"rewardAsset": e.RewardAsset,
	}}
}

// VaultDeposited captures the share delta realised by a deposit.
type VaultDeposited struct {
	PoolID      string
	Owner       string
	Amount      *big.Int
	Shares      *big.Int
	TotalShares *big.Int
}

// EventType satisfies the Event interface.
func (VaultDeposited) EventType() string { return TypeVaultDeposited }

// Event converts the structured payload into a broadcastable event.
func (e VaultDeposited) Event() *types.Event {
	return &types.Event{Type: TypeVaultDeposited, Attributes: map[string]string{
		"poolId":      e.PoolID,
		"owner":       e.Owner,
		"amount":      formatAmount(e.Amount),
		"shares":      formatAmount(e.Shares),
		"totalShares": formatAmount(e.TotalShares),
	}}
}

// VaultWithdrawn captures the share delta realised by a withdrawal.
type VaultWithdrawn struct {
	PoolID      string
	Owner       string
	Shares      *big.Int
	Amount      *big.Int
	TotalShares *big.Int
}

// EventType satisfies the Event interface.
func (VaultWithdrawn) EventType() string { return TypeVaultWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e VaultWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeVaultWithdrawn, Attributes: map[string]string{
		"poolId":      e.PoolID,
		"owner":       e.Owner,
		"shares":      formatAmount(e.Shares),
		"amount":      formatAmount(e.Amount),
		"totalShares": formatAmount(e.TotalShares),
	}}
}

// VaultRewardsClaimed captures a reward payout, including zero-value no-ops.
type VaultRewardsClaimed struct {
	PoolID string
	Owner  string
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (VaultRewardsClaimed) EventType() string { return TypeVaultRewardsClaimed }

// Event converts the structured payload into a broadcastable event.
func (e VaultRewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeVaultRewardsClaimed, Attributes: map[string]string{
		"poolId": e.PoolID,
		"owner":  e.Owner,
		"amount": formatAmount(e.Amount),
	}}
}

// VaultRewardsFunded captures a reward top-up and rate change.
type VaultRewardsFunded struct {
	PoolID        string
	Funder        string
	Amount        *big.Int
	RatePerSecond *big.Int
}

// EventType satisfies the Event interface.
func (VaultRewardsFunded) EventType() string { return TypeVaultRewardsFunded }

// Event converts the structured payload into a broadcastable event.
func (e VaultRewardsFunded) Event() *types.Event {
	return &types.Event{Type: TypeVaultRewardsFunded, Attributes: map[string]string{
		"poolId":        e.PoolID,
		"funder":        e.Funder,
		"amount":        formatAmount(e.Amount),
		"ratePerSecond": formatAmount(e.RatePerSecond),
	}}
}

// VaultPositionClosed announces a reclaimed position record.
type VaultPositionClosed struct {
	PoolID string
	Owner  string
}

// EventType satisfies the Event interface.
func (VaultPositionClosed) EventType() string { return TypeVaultPositionClosed }

// Event converts the structured payload into a broadcastable event.
func (e VaultPositionClosed) Event() *types.Event {
	return &types.Event{Type: TypeVaultPositionClosed, Attributes: map[string]string{
		"poolId": e.PoolID,
		"owner":  e.Owner,
	}}
}
