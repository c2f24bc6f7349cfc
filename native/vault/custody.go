package vault

import (
	"math/big"

	"vaultcore/crypto"
)

// Custody is the external transfer service that actually holds and moves
// assets on the engine's instruction. Implementations are assumed atomic
// within the enclosing host transaction and honest about moved amounts.
type Custody interface {
	// TransferIn moves amount of asset from a user account into a custody
	// account.
	TransferIn(asset string, from, to crypto.Address, amount *big.Int) error
	// TransferOut moves amount of asset from a custody account back to a user
	// account.
	TransferOut(asset string, from, to crypto.Address, amount *big.Int) error
	// BalanceOf reports the actual held amount of asset in an account.
	BalanceOf(asset string, account crypto.Address) (*big.Int, error)
}
