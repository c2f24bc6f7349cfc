package vault

import (
	"errors"
	"math/big"
	"testing"
)

func freshPool() *Pool {
	return &Pool{
		ID:                  "usdn/rwd",
		Asset:               "usdn",
		RewardAsset:         "rwd",
		TotalShares:         big.NewInt(0),
		RewardRatePerSecond: big.NewInt(0),
		AccRewardPerShare:   big.NewInt(0),
		LastUpdateTs:        1_000,
	}
}

func TestMintSharesBootstrap(t *testing.T) {
	pool := freshPool()
	shares, err := mintShares(pool, big.NewInt(123), big.NewInt(0))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if shares.Cmp(big.NewInt(123)) != 0 {
		t.Fatalf("expected 1:1 bootstrap mint, got %s", shares)
	}
	if pool.TotalShares.Cmp(big.NewInt(123)) != 0 {
		t.Fatalf("unexpected total shares: %s", pool.TotalShares)
	}
}

func TestMintSharesFloorsInPoolFavor(t *testing.T) {
	pool := freshPool()
	pool.TotalShares = big.NewInt(3)
	// 10 * 3 / 7 = 4.28..., floored to 4.
	shares, err := mintShares(pool, big.NewInt(10), big.NewInt(7))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if shares.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("expected floor mint of 4, got %s", shares)
	}
}

func TestMintSharesRejectsUnpriceablePool(t *testing.T) {
	pool := freshPool()
	pool.TotalShares = big.NewInt(100)
	if _, err := mintShares(pool, big.NewInt(10), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero balance with shares outstanding, got %v", err)
	}
}

func TestMintSharesRejectsZeroResult(t *testing.T) {
	pool := freshPool()
	pool.TotalShares = big.NewInt(10)
	if _, err := mintShares(pool, big.NewInt(1), big.NewInt(1_000)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero-share mint, got %v", err)
	}
	if pool.TotalShares.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("total shares mutated on failed mint: %s", pool.TotalShares)
	}
}

func TestBurnSharesProRata(t *testing.T) {
	pool := freshPool()
	pool.TotalShares = big.NewInt(1_000)
	amount, err := burnShares(pool, big.NewInt(250), big.NewInt(2_000))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 released, got %s", amount)
	}
	if pool.TotalShares.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("unexpected total shares: %s", pool.TotalShares)
	}
}

func TestBurnSharesValidation(t *testing.T) {
	pool := freshPool()
	pool.TotalShares = big.NewInt(100)
	if _, err := burnShares(pool, big.NewInt(0), big.NewInt(100)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero burn, got %v", err)
	}
	if _, err := burnShares(pool, big.NewInt(101), big.NewInt(100)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	// Dust shares worth less than one asset unit cannot be withdrawn alone.
	if _, err := burnShares(pool, big.NewInt(1), big.NewInt(50)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero-amount burn, got %v", err)
	}
}

func TestMintBurnRoundTripNeverProfits(t *testing.T) {
	pool := freshPool()
	pool.TotalShares = big.NewInt(7_777)
	balance := big.NewInt(13_131)

	deposit := big.NewInt(997)
	shares, err := mintShares(pool, deposit, balance)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	balance.Add(balance, deposit)

	amount, err := burnShares(pool, shares, balance)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if amount.Cmp(deposit) > 0 {
		t.Fatalf("round trip paid out %s for a %s deposit", amount, deposit)
	}
}
