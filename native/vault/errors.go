package vault

import "errors"

var (
	// ErrInvalidAmount rejects zero-value inputs and computed share or asset
	// amounts that round down to nothing.
	ErrInvalidAmount = errors.New("vault engine: amount must be positive")
	// ErrInsufficientShares rejects withdrawals exceeding the position's held
	// shares.
	ErrInsufficientShares = errors.New("vault engine: insufficient shares")
	// ErrClockRewind rejects accumulator updates whose timestamp precedes the
	// last recorded update.
	ErrClockRewind = errors.New("vault engine: timestamp moved backward")
	// ErrOverflow rejects any arithmetic step whose result exceeds the ledger
	// integer width.
	ErrOverflow = errors.New("vault engine: arithmetic overflow")
	// ErrPoolNotFound is returned when the referenced pool was never
	// initialised.
	ErrPoolNotFound = errors.New("vault engine: pool not found")
	// ErrPoolExists is returned when initialising an asset pairing twice.
	ErrPoolExists = errors.New("vault engine: pool already initialised")
	// ErrPositionNotFound is returned when the caller holds no position in the
	// pool.
	ErrPositionNotFound = errors.New("vault engine: position not found")
	// ErrInsufficientRewardBalance is returned when the reward custody account
	// cannot cover a settled payout.
	ErrInsufficientRewardBalance = errors.New("vault engine: insufficient reward balance")

	errNilState   = errors.New("vault engine: state not configured")
	errNilCustody = errors.New("vault engine: custody not configured")
)
