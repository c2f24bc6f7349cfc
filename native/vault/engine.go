package vault

import (
	"math/big"
	"strings"
	"time"

	"vaultcore/core/events"
	"vaultcore/crypto"
	nativecommon "vaultcore/native/common"
)

const moduleName = "vault"

// Custody account roles derived per pool.
const (
	custodyRoleDeposit = "deposit"
	custodyRoleReward  = "reward"
)

type engineState interface {
	GetPool(poolID string) (*Pool, error)
	PutPool(pool *Pool) error
	GetPosition(poolID string, owner crypto.Address) (*Position, error)
	PutPosition(position *Position) error
	DeletePosition(poolID string, owner crypto.Address) error
}

// Engine orchestrates the vault state transitions: share mint/burn, lazy
// reward accrual and position settlement. It performs no locking and no
// internal retries; the surrounding host serialises operations per pool and
// applies each one atomically.
type Engine struct {
	state   engineState
	custody Custody
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine creates a vault engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody wires the engine to the asset transfer service.
func (e *Engine) SetCustody(custody Custody) { e.custody = custody }

// SetPauses configures the module pause view consulted by mutating
// operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custody == nil {
		return errNilCustody
	}
	return nil
}

// InitializePool creates the accounting record for a deposit/reward asset
// pairing along with its derived custody accounts. A pairing can only be
// initialised once and is never destroyed.
func (e *Engine) InitializePool(asset, rewardAsset string) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	asset = strings.TrimSpace(asset)
	rewardAsset = strings.TrimSpace(rewardAsset)
	if asset == "" || rewardAsset == "" {
		return nil, ErrInvalidAmount
	}
	id := PoolID(asset, rewardAsset)
	existing, err := e.state.GetPool(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPoolExists
	}
	pool := &Pool{
		ID:                  id,
		Asset:               asset,
		RewardAsset:         rewardAsset,
		TotalShares:         big.NewInt(0),
		RewardRatePerSecond: big.NewInt(0),
		AccRewardPerShare:   big.NewInt(0),
		LastUpdateTs:        e.nowFn(),
		DepositVault:        crypto.DeriveCustodyAddress(id, custodyRoleDeposit),
		RewardVault:         crypto.DeriveCustodyAddress(id, custodyRoleReward),
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultPoolInitialized{PoolID: id, Asset: asset, RewardAsset: rewardAsset})
	return pool.Clone(), nil
}

// Deposit moves amount of the pool asset from the depositor into custody and
// mints proportional shares. The depositor's reward position is settled
// against the freshly advanced accumulator before any share changes.
func (e *Engine) Deposit(owner crypto.Address, poolID string, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if err := advance(pool, e.nowFn()); err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(pool, owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{
			Owner:         owner,
			PoolID:        pool.ID,
			Shares:        big.NewInt(0),
			RewardDebt:    big.NewInt(0),
			PendingReward: big.NewInt(0),
		}
	}
	if _, err := settle(pool, pos); err != nil {
		return nil, err
	}

	balanceBefore, err := e.custody.BalanceOf(pool.Asset, pool.DepositVault)
	if err != nil {
		return nil, err
	}
	minted, err := mintShares(pool, amount, balanceBefore)
	if err != nil {
		return nil, err
	}
	if err := e.custody.TransferIn(pool.Asset, owner, pool.DepositVault, amount); err != nil {
		return nil, err
	}

	shares, err := checkedAdd(pos.Shares, minted)
	if err != nil {
		return nil, err
	}
	pos.Shares = shares
	if err := rebaseline(pool, pos); err != nil {
		return nil, err
	}

	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultDeposited{
		PoolID:      pool.ID,
		Owner:       owner.String(),
		Amount:      new(big.Int).Set(amount),
		Shares:      new(big.Int).Set(minted),
		TotalShares: new(big.Int).Set(pool.TotalShares),
	})
	return minted, nil
}

// Withdraw burns shares and releases the corresponding asset amount from
// custody back to the owner. The position is settled first, and its record is
// deleted once both shares and pending reward reach zero.
func (e *Engine) Withdraw(owner crypto.Address, poolID string, sharesToBurn *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if sharesToBurn == nil || sharesToBurn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(pool, owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}
	if sharesToBurn.Cmp(pos.Shares) > 0 {
		return nil, ErrInsufficientShares
	}
	if err := advance(pool, e.nowFn()); err != nil {
		return nil, err
	}
	if _, err := settle(pool, pos); err != nil {
		return nil, err
	}

	balanceBefore, err := e.custody.BalanceOf(pool.Asset, pool.DepositVault)
	if err != nil {
		return nil, err
	}
	amount, err := burnShares(pool, sharesToBurn, balanceBefore)
	if err != nil {
		return nil, err
	}
	if err := e.custody.TransferOut(pool.Asset, pool.DepositVault, owner, amount); err != nil {
		return nil, err
	}

	pos.Shares = new(big.Int).Sub(pos.Shares, sharesToBurn)
	if err := rebaseline(pool, pos); err != nil {
		return nil, err
	}

	closed := false
	if pos.Shares.Sign() == 0 && pos.PendingReward.Sign() == 0 {
		if err := e.state.DeletePosition(pool.ID, owner); err != nil {
			return nil, err
		}
		closed = true
	} else if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultWithdrawn{
		PoolID:      pool.ID,
		Owner:       owner.String(),
		Shares:      new(big.Int).Set(sharesToBurn),
		Amount:      new(big.Int).Set(amount),
		TotalShares: new(big.Int).Set(pool.TotalShares),
	})
	if closed {
		e.emitter.Emit(events.VaultPositionClosed{PoolID: pool.ID, Owner: owner.String()})
	}
	return amount, nil
}

// ClaimRewards settles the caller's position and pays out the pending reward
// from the reward custody account. A zero-reward claim succeeds as a no-op
// transfer. A position left open solely for its pending reward is closed once
// the payout drains it.
func (e *Engine) ClaimRewards(owner crypto.Address, poolID string) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(pool, owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}
	if err := advance(pool, e.nowFn()); err != nil {
		return nil, err
	}
	if _, err := settle(pool, pos); err != nil {
		return nil, err
	}

	paid := new(big.Int).Set(pos.PendingReward)
	if paid.Sign() > 0 {
		rewardBalance, err := e.custody.BalanceOf(pool.RewardAsset, pool.RewardVault)
		if err != nil {
			return nil, err
		}
		if rewardBalance.Cmp(paid) < 0 {
			return nil, ErrInsufficientRewardBalance
		}
		if err := e.custody.TransferOut(pool.RewardAsset, pool.RewardVault, owner, paid); err != nil {
			return nil, err
		}
		pos.PendingReward = big.NewInt(0)
	}

	closed := false
	if pos.Shares.Sign() == 0 && pos.PendingReward.Sign() == 0 {
		if err := e.state.DeletePosition(pool.ID, owner); err != nil {
			return nil, err
		}
		closed = true
	} else if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultRewardsClaimed{
		PoolID: pool.ID,
		Owner:  owner.String(),
		Amount: paid,
	})
	if closed {
		e.emitter.Emit(events.VaultPositionClosed{PoolID: pool.ID, Owner: owner.String()})
	}
	return paid, nil
}

// FundRewards moves reward assets from the funder into the reward custody
// account and sets the emission rate. The accumulator is advanced first so
// the new rate applies only from now onward, never retroactively.
func (e *Engine) FundRewards(funder crypto.Address, poolID string, amount, ratePerSecond *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if ratePerSecond == nil || ratePerSecond.Sign() < 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := advance(pool, e.nowFn()); err != nil {
		return err
	}
	if err := e.custody.TransferIn(pool.RewardAsset, funder, pool.RewardVault, amount); err != nil {
		return err
	}
	pool.RewardRatePerSecond = new(big.Int).Set(ratePerSecond)
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultRewardsFunded{
		PoolID:        pool.ID,
		Funder:        funder.String(),
		Amount:        new(big.Int).Set(amount),
		RatePerSecond: new(big.Int).Set(ratePerSecond),
	})
	return nil
}

// GetPool returns a copy of the pool record, or ErrPoolNotFound.
func (e *Engine) GetPool(poolID string) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// GetPosition returns a copy of the owner's position, or ErrPositionNotFound.
// Closed positions report not-found, never a zero-valued record.
func (e *Engine) GetPosition(poolID string, owner crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(pool, owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}
	return pos.Clone(), nil
}

// PendingReward computes the reward the owner could claim right now without
// mutating any state: the persisted pending buffer plus the unsettled accrual
// implied by advancing the accumulator to now.
func (e *Engine) PendingReward(poolID string, owner crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(pool, owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}
	scratchPool := pool.Clone()
	scratchPos := pos.Clone()
	if err := advance(scratchPool, e.nowFn()); err != nil {
		return nil, err
	}
	if _, err := settle(scratchPool, scratchPos); err != nil {
		return nil, err
	}
	return new(big.Int).Set(scratchPos.PendingReward), nil
}

func (e *Engine) loadPool(poolID string) (*Pool, error) {
	pool, err := e.state.GetPool(strings.TrimSpace(poolID))
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	pool.normalize()
	return pool, nil
}

func (e *Engine) loadPosition(pool *Pool, owner crypto.Address) (*Position, error) {
	pos, err := e.state.GetPosition(pool.ID, owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, nil
	}
	pos.normalize()
	return pos, nil
}
