package exchange

import "errors"

var (
	// ErrInsufficientBalance is returned by PlaceOrder when the quote balance
	// cannot cover margin plus fee. Non-fatal; callers log and continue.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNoSuchPosition is returned by ClosePosition for an unknown symbol.
	ErrNoSuchPosition = errors.New("no such position")

	// ErrInsufficientPositionSize is returned by ClosePosition when the
	// requested amount exceeds the open quantity on that leg.
	ErrInsufficientPositionSize = errors.New("insufficient position size")

	// ErrEntryPriceMissing indicates a leg with quantity but no recorded
	// entry price; it signals tracker/venue divergence.
	ErrEntryPriceMissing = errors.New("entry price missing")

	// ErrSnapshotIO wraps snapshot read/write failures. Fatal: it propagates
	// to the process boundary.
	ErrSnapshotIO = errors.New("snapshot i/o")

	// ErrMalformedTick marks a broker delivery that cannot be consumed.
	// The tick is skipped and logged.
	ErrMalformedTick = errors.New("malformed tick")
)
