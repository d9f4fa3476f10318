package pool

import "errors"

var (
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrNotInitialized     = errors.New("pool not initialized")

	ErrInvalidTickSpacing = errors.New("tick spacing out of range")
	ErrFeeTooLarge        = errors.New("lp fee exceeds 100%")

	// ErrInvalidTickRange covers reversed ranges and ranges outside the
	// usable tick bounds.
	ErrInvalidTickRange = errors.New("invalid tick range")
	// ErrTickNotAligned is returned when a range bound is not a multiple of
	// the pool's tick spacing.
	ErrTickNotAligned = errors.New("tick not aligned to pool spacing")
	// ErrTickLiquidityOverflow is returned when a tick's gross liquidity
	// would exceed the per-tick cap.
	ErrTickLiquidityOverflow = errors.New("tick liquidity overflow")

	ErrSwapAmountZero            = errors.New("swap amount cannot be zero")
	ErrPriceLimitAlreadyExceeded = errors.New("price limit already exceeded")
	ErrPriceLimitOutOfBounds     = errors.New("price limit out of bounds")
	// ErrInvalidFeeForExactOut is returned for exact-output swaps when the
	// total swap fee is 100%, which no input can cover.
	ErrInvalidFeeForExactOut = errors.New("swap fee of 100% cannot fill an exact output")
	// ErrInsufficientLiquidity is returned when a swap stops making progress
	// before filling the requested amount or reaching the price limit.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")

	// ErrNoLiquidity is returned when donating to a pool with no in-range
	// liquidity to credit.
	ErrNoLiquidity    = errors.New("no in-range liquidity")
	ErrNegativeAmount = errors.New("negative amount")

	ErrProtocolFeeTooLarge = errors.New("protocol fee exceeds maximum")
	// ErrUnknownCurrency is returned when a currency is not one of the pool's
	// pair.
	ErrUnknownCurrency          = errors.New("currency not in pool")
	ErrInsufficientProtocolFees = errors.New("collect amount exceeds accrued protocol fees")
)
