package vault

import (
	"errors"
	"math/big"
	"testing"

	"vaultcore/crypto"
)

type mockEngineState struct {
	pools     map[string]*Pool
	positions map[string]*Position
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		pools:     make(map[string]*Pool),
		positions: make(map[string]*Position),
	}
}

func (m *mockEngineState) positionKey(poolID string, addr crypto.Address) string {
	return poolID + "|" + string(addr.Bytes())
}

func (m *mockEngineState) GetPool(poolID string) (*Pool, error) {
	return m.pools[poolID], nil
}

func (m *mockEngineState) PutPool(pool *Pool) error {
	m.pools[pool.ID] = pool
	return nil
}

func (m *mockEngineState) GetPosition(poolID string, owner crypto.Address) (*Position, error) {
	return m.positions[m.positionKey(poolID, owner)], nil
}

func (m *mockEngineState) PutPosition(pos *Position) error {
	m.positions[m.positionKey(pos.PoolID, pos.Owner)] = pos
	return nil
}

func (m *mockEngineState) DeletePosition(poolID string, owner crypto.Address) error {
	delete(m.positions, m.positionKey(poolID, owner))
	return nil
}

type mockCustody struct {
	balances map[string]map[string]*big.Int // asset -> account -> amount
}

func newMockCustody() *mockCustody {
	return &mockCustody{balances: make(map[string]map[string]*big.Int)}
}

func (m *mockCustody) balance(asset string, addr crypto.Address) *big.Int {
	accounts, ok := m.balances[asset]
	if !ok {
		return big.NewInt(0)
	}
	bal, ok := accounts[addr.String()]
	if !ok {
		return big.NewInt(0)
	}
	return bal
}

func (m *mockCustody) set(asset string, addr crypto.Address, amount *big.Int) {
	if m.balances[asset] == nil {
		m.balances[asset] = make(map[string]*big.Int)
	}
	m.balances[asset][addr.String()] = new(big.Int).Set(amount)
}

func (m *mockCustody) transfer(asset string, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("mock custody: non-positive amount")
	}
	fromBal := m.balance(asset, from)
	if fromBal.Cmp(amount) < 0 {
		return errors.New("mock custody: insufficient balance")
	}
	m.set(asset, from, new(big.Int).Sub(fromBal, amount))
	m.set(asset, to, new(big.Int).Add(m.balance(asset, to), amount))
	return nil
}

func (m *mockCustody) TransferIn(asset string, from, to crypto.Address, amount *big.Int) error {
	return m.transfer(asset, from, to, amount)
}

func (m *mockCustody) TransferOut(asset string, from, to crypto.Address, amount *big.Int) error {
	return m.transfer(asset, from, to, amount)
}

func (m *mockCustody) BalanceOf(asset string, account crypto.Address) (*big.Int, error) {
	return new(big.Int).Set(m.balance(asset, account)), nil
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.VaultPrefix, raw)
}

type testClock struct {
	now int64
}

func (c *testClock) fn() func() int64 {
	return func() int64 { return c.now }
}

func newTestEngine(t *testing.T) (*Engine, *mockEngineState, *mockCustody, *testClock, *Pool) {
	t.Helper()
	state := newMockEngineState()
	custody := newMockCustody()
	clock := &testClock{now: 1_000}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetCustody(custody)
	engine.SetNowFunc(clock.fn())
	pool, err := engine.InitializePool("usdn", "rwd")
	if err != nil {
		t.Fatalf("initialize pool: %v", err)
	}
	return engine, state, custody, clock, pool
}

func TestInitializePoolRejectsDuplicate(t *testing.T) {
	engine, _, _, _, pool := newTestEngine(t)
	if pool.ID != "usdn/rwd" {
		t.Fatalf("unexpected pool id: %s", pool.ID)
	}
	if _, err := engine.InitializePool("usdn", "rwd"); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("expected ErrPoolExists, got %v", err)
	}
}

func TestDepositBootstrapMintsOneToOne(t *testing.T) {
	engine, state, custody, _, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	custody.set("usdn", alice, big.NewInt(5_000))

	shares, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected 1000 shares, got %s", shares)
	}
	if state.pools[pool.ID].TotalShares.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected total shares: %s", state.pools[pool.ID].TotalShares)
	}
	if got := custody.balance("usdn", pool.DepositVault); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected vault balance: %s", got)
	}
	if got := custody.balance("usdn", alice); got.Cmp(big.NewInt(4_000)) != 0 {
		t.Fatalf("unexpected depositor balance: %s", got)
	}
}

func TestDepositProportionalMint(t *testing.T) {
	engine, state, custody, _, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	bob := makeAddress(0x02)
	custody.set("usdn", alice, big.NewInt(1_000))
	custody.set("usdn", bob, big.NewInt(500))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("bootstrap deposit: %v", err)
	}
	shares, err := engine.Deposit(bob, pool.ID, big.NewInt(500))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 shares, got %s", shares)
	}
	if state.pools[pool.ID].TotalShares.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("expected 1500 total shares, got %s", state.pools[pool.ID].TotalShares)
	}
}

func TestDepositAfterYieldMintsFewerShares(t *testing.T) {
	engine, _, custody, _, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	bob := makeAddress(0x02)
	custody.set("usdn", alice, big.NewInt(1_000))
	custody.set("usdn", bob, big.NewInt(1_000))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("bootstrap deposit: %v", err)
	}
	// Yield accrues to the pool outside share accounting, e.g. flash fees.
	custody.set("usdn", pool.DepositVault, big.NewInt(2_000))

	shares, err := engine.Deposit(bob, pool.ID, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 shares after yield, got %s", shares)
	}
}

func TestDepositRejectsZeroAmount(t *testing.T) {
	engine, _, _, _, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := engine.Deposit(alice, pool.ID, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil amount, got %v", err)
	}
}

func TestDepositUnknownPool(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	alice := makeAddress(0x01)
	if _, err := engine.Deposit(alice, "nope/rwd", big.NewInt(1)); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestTinyDepositNeverMintsZeroShares(t *testing.T) {
	engine, _, custody, _, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	bob := makeAddress(0x02)
	custody.set("usdn", alice, big.NewInt(1_000))
	custody.set("usdn", bob, big.NewInt(1))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("bootstrap deposit: %v", err)
	}
	// Inflate the pool balance so one unit prices below one share.
	custody.set("usdn", pool.DepositVault, big.NewInt(1_000_000))

	_, err := engine.Deposit(bob, pool.ID, big.NewInt(1))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	// Custody funds must not move on a failed mint.
	if got := custody.balance("usdn", bob); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("depositor funds moved on failed mint: %s", got)
	}
}

func TestWithdrawReleasesProportionalAssets(t *testing.T) {
	engine, _, custody, _, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	custody.set("usdn", alice, big.NewInt(1_000))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	amount, err := engine.Withdraw(alice, pool.ID, big.NewInt(400))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected 400 released, got %s", amount)
	}
	if got := custody.balance("usdn", alice); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected owner balance: %s", got)
	}
	pos, err := engine.GetPosition(pool.ID, alice)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if pos.Shares.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected remaining shares: %s", pos.Shares)
	}
}

func TestWithdrawValidation(t *testing.T) {
	engine, _, custody, _, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	custody.set("usdn", alice, big.NewInt(100))
	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := engine.Withdraw(alice, pool.ID, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := engine.Withdraw(alice, pool.ID, big.NewInt(101)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	if _, err := engine.Withdraw(makeAddress(0x09), pool.ID, big.NewInt(1)); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestFullWithdrawClosesPosition(t *testing.T) {
	engine, state, custody, _, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	custody.set("usdn", alice, big.NewInt(250))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(250)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.Withdraw(alice, pool.ID, big.NewInt(250)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := engine.GetPosition(pool.ID, alice); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound after close, got %v", err)
	}
	if len(state.positions) != 0 {
		t.Fatalf("expected position storage reclaimed, found %d records", len(state.positions))
	}
}

func TestWithdrawKeepsPositionOpenForPendingReward(t *testing.T) {
	engine, _, custody, clock, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	funder := makeAddress(0x0f)
	custody.set("usdn", alice, big.NewInt(1_000))
	custody.set("rwd", funder, big.NewInt(10_000))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.FundRewards(funder, pool.ID, big.NewInt(10_000), big.NewInt(5)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	clock.now += 100 // accrue 500 reward

	if _, err := engine.Withdraw(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	pos, err := engine.GetPosition(pool.ID, alice)
	if err != nil {
		t.Fatalf("expected position kept open for pending reward: %v", err)
	}
	if pos.Shares.Sign() != 0 {
		t.Fatalf("expected zero shares, got %s", pos.Shares)
	}
	if pos.PendingReward.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 pending, got %s", pos.PendingReward)
	}

	paid, err := engine.ClaimRewards(alice, pool.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 paid, got %s", paid)
	}
	if _, err := engine.GetPosition(pool.ID, alice); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected position closed after draining claim, got %v", err)
	}
}

func TestClaimZeroRateIsNoop(t *testing.T) {
	engine, _, custody, clock, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	custody.set("usdn", alice, big.NewInt(100))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.now += 1_000_000
	paid, err := engine.ClaimRewards(alice, pool.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Sign() != 0 {
		t.Fatalf("expected zero payout at zero rate, got %s", paid)
	}
}

func TestClaimPaysAccruedRewards(t *testing.T) {
	engine, _, custody, clock, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	funder := makeAddress(0x0f)
	custody.set("usdn", alice, big.NewInt(1_000))
	custody.set("rwd", funder, big.NewInt(100_000))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.FundRewards(funder, pool.ID, big.NewInt(100_000), big.NewInt(5)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	clock.now += 100

	paid, err := engine.ClaimRewards(alice, pool.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// 100s * 5/s across 1000 shares, all owned by alice.
	if paid.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 paid, got %s", paid)
	}
	if got := custody.balance("rwd", alice); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected reward balance: %s", got)
	}

	// Claiming again at the same instant settles nothing further.
	paid, err = engine.ClaimRewards(alice, pool.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if paid.Sign() != 0 {
		t.Fatalf("expected idempotent settlement, got %s", paid)
	}
}

func TestRewardsSplitProRata(t *testing.T) {
	engine, _, custody, clock, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	bob := makeAddress(0x02)
	funder := makeAddress(0x0f)
	custody.set("usdn", alice, big.NewInt(3_000))
	custody.set("usdn", bob, big.NewInt(1_000))
	custody.set("rwd", funder, big.NewInt(100_000))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(3_000)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if _, err := engine.Deposit(bob, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	if err := engine.FundRewards(funder, pool.ID, big.NewInt(100_000), big.NewInt(4)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	clock.now += 1_000 // emit 4000 across 4000 shares

	alicePaid, err := engine.ClaimRewards(alice, pool.ID)
	if err != nil {
		t.Fatalf("claim alice: %v", err)
	}
	bobPaid, err := engine.ClaimRewards(bob, pool.ID)
	if err != nil {
		t.Fatalf("claim bob: %v", err)
	}
	if alicePaid.Cmp(big.NewInt(3_000)) != 0 {
		t.Fatalf("expected alice 3000, got %s", alicePaid)
	}
	if bobPaid.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected bob 1000, got %s", bobPaid)
	}
}

func TestLateDepositorEarnsNothingRetroactively(t *testing.T) {
	engine, _, custody, clock, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	bob := makeAddress(0x02)
	funder := makeAddress(0x0f)
	custody.set("usdn", alice, big.NewInt(1_000))
	custody.set("usdn", bob, big.NewInt(1_000))
	custody.set("rwd", funder, big.NewInt(100_000))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if err := engine.FundRewards(funder, pool.ID, big.NewInt(100_000), big.NewInt(10)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	clock.now += 100 // 1000 reward accrues, all to alice

	if _, err := engine.Deposit(bob, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	bobPaid, err := engine.ClaimRewards(bob, pool.ID)
	if err != nil {
		t.Fatalf("claim bob: %v", err)
	}
	if bobPaid.Sign() != 0 {
		t.Fatalf("late depositor claimed retroactive reward: %s", bobPaid)
	}
	alicePaid, err := engine.ClaimRewards(alice, pool.ID)
	if err != nil {
		t.Fatalf("claim alice: %v", err)
	}
	if alicePaid.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected alice 1000, got %s", alicePaid)
	}
}

func TestFundRewardsAppliesRateProspectively(t *testing.T) {
	engine, _, custody, clock, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	funder := makeAddress(0x0f)
	custody.set("usdn", alice, big.NewInt(1_000))
	custody.set("rwd", funder, big.NewInt(100_000))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.FundRewards(funder, pool.ID, big.NewInt(50_000), big.NewInt(2)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	clock.now += 100 // 200 at the old rate
	if err := engine.FundRewards(funder, pool.ID, big.NewInt(50_000), big.NewInt(10)); err != nil {
		t.Fatalf("refund: %v", err)
	}
	clock.now += 100 // 1000 at the new rate

	paid, err := engine.ClaimRewards(alice, pool.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Cmp(big.NewInt(1_200)) != 0 {
		t.Fatalf("expected 1200 paid, got %s", paid)
	}
}

func TestFundRewardsValidation(t *testing.T) {
	engine, _, custody, _, pool := newTestEngine(t)
	funder := makeAddress(0x0f)
	custody.set("rwd", funder, big.NewInt(100))

	if err := engine.FundRewards(funder, pool.ID, big.NewInt(0), big.NewInt(1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
	if err := engine.FundRewards(funder, pool.ID, big.NewInt(10), big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative rate, got %v", err)
	}
	if err := engine.FundRewards(funder, "nope/rwd", big.NewInt(10), big.NewInt(1)); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestClockRewindRejected(t *testing.T) {
	engine, _, custody, clock, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	custody.set("usdn", alice, big.NewInt(1_000))
	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.now -= 10
	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(500)); !errors.Is(err, ErrClockRewind) {
		t.Fatalf("expected ErrClockRewind, got %v", err)
	}
}

func TestClaimRequiresRewardCustodyBalance(t *testing.T) {
	engine, _, custody, clock, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	funder := makeAddress(0x0f)
	custody.set("usdn", alice, big.NewInt(1_000))
	custody.set("rwd", funder, big.NewInt(100))

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.FundRewards(funder, pool.ID, big.NewInt(100), big.NewInt(10)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	clock.now += 1_000 // accrues 10000, far beyond the funded 100

	if _, err := engine.ClaimRewards(alice, pool.ID); !errors.Is(err, ErrInsufficientRewardBalance) {
		t.Fatalf("expected ErrInsufficientRewardBalance, got %v", err)
	}
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	engine, _, custody, _, pool := newTestEngine(t)
	alice := makeAddress(0x01)
	custody.set("usdn", alice, big.NewInt(100))
	engine.SetPauses(pausedView{})

	if _, err := engine.Deposit(alice, pool.ID, big.NewInt(100)); err == nil {
		t.Fatalf("expected pause rejection")
	}
}

type pausedView struct{}

func (pausedView) IsPaused(string) bool { return true }
