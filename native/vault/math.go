package vault

import "math/big"

var (
	// rewardScale is the fixed-point scaling constant for the reward-per-share
	// accumulator. It is part of the storage format: changing it is a breaking
	// migration. 1e12 keeps one asset-unit-second of reward per share above
	// zero for realistic rate/share ratios on 9-decimal assets.
	rewardScale = big.NewInt(1_000_000_000_000)

	// maxLedgerValue bounds every stored quantity to 256 bits. Intermediate
	// products are computed exactly and may exceed the bound; any result that
	// would be persisted must not.
	maxLedgerValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// RewardScale exposes the accumulator scaling constant for callers that need
// to interpret scaled accumulator or debt values.
func RewardScale() *big.Int { return new(big.Int).Set(rewardScale) }

func checkBound(v *big.Int) (*big.Int, error) {
	if v.Cmp(maxLedgerValue) > 0 {
		return nil, ErrOverflow
	}
	return v, nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	return checkBound(new(big.Int).Add(a, b))
}

func checkedMul(a, b *big.Int) (*big.Int, error) {
	return checkBound(new(big.Int).Mul(a, b))
}

// mulDiv computes floor(a*b/den). The product is taken at full width before
// the division, and only the quotient is bounds-checked.
func mulDiv(a, b, den *big.Int) (*big.Int, error) {
	if den.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	product := new(big.Int).Mul(a, b)
	return checkBound(product.Quo(product, den))
}
