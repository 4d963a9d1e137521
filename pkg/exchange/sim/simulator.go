package sim

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"trademaker/pkg/exchange"
)

const (
	defaultFeeRate    = 0.001
	defaultLeverage   = 10
	defaultStorageDir = "storage"
)

// EntryMode selects how the entry price of a leg behaves when quantity is
// added to an already-open side.
type EntryMode string

const (
	// EntryFirstOpen keeps the price at which the leg was first opened from
	// zero; later adds do not move it.
	EntryFirstOpen EntryMode = "first-open"
	// EntryWeightedAverage re-averages the entry over the combined quantity.
	EntryWeightedAverage EntryMode = "weighted-average"
)

// Options configures a Simulator. A zero FeeRate means free trading; the
// venue-config layer supplies the 0.001 default when the field is omitted.
type Options struct {
	InitialFunds map[string]float64
	FeeRate      float64
	Leverage     int // defaults to 10
	Persist      bool
	StorageDir   string // defaults to "storage"
	EntryMode    EntryMode
}

// Simulator is a notional margin exchange for one venue. It debits quote
// margin for both order sides, tracks long/short legs per symbol, and
// realizes PnL on close. State survives restarts when persistence is on.
type Simulator struct {
	mu sync.Mutex

	name      string
	feeRate   float64
	leverage  int
	entryMode EntryMode

	realBalance   map[string]float64
	loanedBalance map[string]float64
	positions     map[string]*exchange.Position
	orders        []exchange.OrderRecord

	persist bool
	store   *snapshotStore

	nowFn func() time.Time
}

// New constructs a venue simulator. With persistence enabled, an existing
// snapshot at {storageDir}/{name}_state.json takes precedence over the
// provided initial funds.
func New(name string, opts Options) (*Simulator, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("sim: venue name is required")
	}
	feeRate := opts.FeeRate
	if feeRate < 0 {
		return nil, fmt.Errorf("sim: fee rate must not be negative, got %v", feeRate)
	}
	leverage := opts.Leverage
	if leverage == 0 {
		leverage = defaultLeverage
	}
	if leverage < 0 {
		return nil, fmt.Errorf("sim: leverage must be positive, got %d", leverage)
	}
	entryMode := opts.EntryMode
	if entryMode == "" {
		entryMode = EntryFirstOpen
	}
	if entryMode != EntryFirstOpen && entryMode != EntryWeightedAverage {
		return nil, fmt.Errorf("sim: unknown entry mode %q", entryMode)
	}

	s := &Simulator{
		name:          name,
		feeRate:       feeRate,
		leverage:      leverage,
		entryMode:     entryMode,
		realBalance:   make(map[string]float64, len(opts.InitialFunds)),
		loanedBalance: make(map[string]float64),
		positions:     make(map[string]*exchange.Position),
		persist:       opts.Persist,
		nowFn:         time.Now,
	}
	for asset, amount := range opts.InitialFunds {
		s.realBalance[asset] = amount
	}

	if opts.Persist {
		storageDir := opts.StorageDir
		if storageDir == "" {
			storageDir = defaultStorageDir
		}
		store, err := newSnapshotStore(storageDir, name)
		if err != nil {
			return nil, err
		}
		s.store = store
		loaded, err := store.load(s)
		if err != nil {
			return nil, err
		}
		if loaded {
			logx.Infof("sim: venue %s restored from snapshot %s", name, store.path)
		}
	}
	return s, nil
}

// Name returns the venue identifier.
func (s *Simulator) Name() string { return s.name }

// Leverage returns the venue-wide leverage multiplier.
func (s *Simulator) Leverage() int { return s.leverage }

// FeeRate returns the taker fee rate applied to order notional.
func (s *Simulator) FeeRate() float64 { return s.feeRate }

// PlaceOrder opens or adds to a leg. Margin (price*amount/leverage) plus the
// fee is debited from the quote balance; no base-asset credit occurs.
func (s *Simulator) PlaceOrder(ctx context.Context, symbol string, side exchange.Side, amount, price float64) error {
	if amount <= 0 {
		return fmt.Errorf("sim: amount must be positive, got %v", amount)
	}
	if price <= 0 {
		return fmt.Errorf("sim: price must be positive, got %v", price)
	}
	if side != exchange.SideBuy && side != exchange.SideSell {
		return fmt.Errorf("sim: unknown order side %q", side)
	}
	symbol = exchange.CanonicalSymbol(symbol)
	_, quote, err := exchange.SplitSymbol(symbol)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	marginCost := price * amount / float64(s.leverage)
	fee := amount * price * s.feeRate
	totalCost := marginCost + fee
	if balance := s.realBalance[quote]; balance < totalCost {
		return fmt.Errorf("%w: venue %s has %s %s, order requires %s",
			exchange.ErrInsufficientBalance, s.name, formatDecimal(balance), quote, formatDecimal(totalCost))
	}

	s.realBalance[quote] -= totalCost
	s.loanedBalance[quote] += marginCost * float64(s.leverage-1)

	pos := s.positions[symbol]
	if pos == nil {
		pos = &exchange.Position{}
		s.positions[symbol] = pos
	}
	switch exchange.PositionSideFor(side) {
	case exchange.PositionLong:
		pos.LongEntryPrice = s.nextEntry(pos.LongEntryPrice, pos.Long, amount, price)
		pos.Long += amount
	case exchange.PositionShort:
		pos.ShortEntryPrice = s.nextEntry(pos.ShortEntryPrice, pos.Short, amount, price)
		pos.Short += amount
	}

	s.orders = append(s.orders, exchange.OrderRecord{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      string(side),
		Amount:    amount,
		Price:     price,
		Fee:       fee,
		CreatedAt: s.nowFn().UTC(),
	})

	return s.saveLocked()
}

// nextEntry computes the entry price after adding amount@price to a leg that
// currently holds qty at the given entry.
func (s *Simulator) nextEntry(entry *float64, qty, amount, price float64) *float64 {
	if entry == nil || qty == 0 {
		p := price
		return &p
	}
	if s.entryMode == EntryWeightedAverage {
		p := (*entry*qty + price*amount) / (qty + amount)
		return &p
	}
	return entry
}

// ClosePosition closes amount of the given leg at price, releasing the
// margin locked for that slice and realizing PnL into the quote balance.
func (s *Simulator) ClosePosition(ctx context.Context, symbol string, side exchange.PositionSide, amount, price float64) (*exchange.CloseResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("sim: amount must be positive, got %v", amount)
	}
	if price <= 0 {
		return nil, fmt.Errorf("sim: price must be positive, got %v", price)
	}
	symbol = exchange.CanonicalSymbol(symbol)
	_, quote, err := exchange.SplitSymbol(symbol)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.positions[symbol]
	if pos == nil {
		return nil, fmt.Errorf("%w: venue %s has no position for %s", exchange.ErrNoSuchPosition, s.name, symbol)
	}

	var qty float64
	var entryPtr *float64
	switch side {
	case exchange.PositionLong:
		qty, entryPtr = pos.Long, pos.LongEntryPrice
	case exchange.PositionShort:
		qty, entryPtr = pos.Short, pos.ShortEntryPrice
	default:
		return nil, fmt.Errorf("sim: unknown position side %q", side)
	}
	if qty < amount {
		return nil, fmt.Errorf("%w: venue %s holds %s %s %s, close requested %s",
			exchange.ErrInsufficientPositionSize, s.name, formatDecimal(qty), side, symbol, formatDecimal(amount))
	}
	if entryPtr == nil {
		return nil, fmt.Errorf("%w: venue %s %s %s", exchange.ErrEntryPriceMissing, s.name, side, symbol)
	}
	entry := *entryPtr

	fee := amount * price * s.feeRate
	var pnl float64
	if side == exchange.PositionLong {
		pnl = (price-entry)*amount - fee
	} else {
		pnl = (entry-price)*amount - fee
	}

	releasedMargin := entry * amount / float64(s.leverage)
	s.realBalance[quote] += pnl + releasedMargin
	s.loanedBalance[quote] -= releasedMargin * float64(s.leverage-1)
	if s.loanedBalance[quote] < 0 {
		s.loanedBalance[quote] = 0
	}

	switch side {
	case exchange.PositionLong:
		pos.Long -= amount
		if roundsToZero(pos.Long) {
			pos.Long = 0
			pos.LongEntryPrice = nil
		}
	case exchange.PositionShort:
		pos.Short -= amount
		if roundsToZero(pos.Short) {
			pos.Short = 0
			pos.ShortEntryPrice = nil
		}
	}
	if pos.IsFlat() {
		delete(s.positions, symbol)
	}

	closedAt := s.nowFn().UTC()
	pnlCopy := pnl
	s.orders = append(s.orders, exchange.OrderRecord{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      "close_" + string(side),
		Amount:    amount,
		Price:     price,
		Fee:       fee,
		PnL:       &pnlCopy,
		CreatedAt: closedAt,
	})

	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return &exchange.CloseResult{
		Symbol:     symbol,
		Side:       string(side),
		Amount:     amount,
		Price:      price,
		PnL:        pnl,
		EntryPrice: entry,
		ClosedAt:   closedAt,
	}, nil
}

// HardReset replaces real balances, zeroes loaned balances and clears all
// positions and order history.
func (s *Simulator) HardReset(ctx context.Context, initialFunds map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.realBalance = make(map[string]float64, len(initialFunds))
	for asset, amount := range initialFunds {
		s.realBalance[asset] = amount
	}
	s.loanedBalance = make(map[string]float64)
	s.positions = make(map[string]*exchange.Position)
	s.orders = nil
	return s.saveLocked()
}

// Balance returns the real balance for an asset.
func (s *Simulator) Balance(asset string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realBalance[asset]
}

// Loaned returns the loaned balance for an asset.
func (s *Simulator) Loaned(asset string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loanedBalance[asset]
}

// Position returns a copy of the position for a symbol. An untouched symbol
// reads as a flat position without creating an entry.
func (s *Simulator) Position(symbol string) exchange.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.positions[exchange.CanonicalSymbol(symbol)]
	if pos == nil {
		return exchange.Position{}
	}
	out := exchange.Position{Long: pos.Long, Short: pos.Short}
	if pos.LongEntryPrice != nil {
		v := *pos.LongEntryPrice
		out.LongEntryPrice = &v
	}
	if pos.ShortEntryPrice != nil {
		v := *pos.ShortEntryPrice
		out.ShortEntryPrice = &v
	}
	return out
}

// Orders returns a copy of the order history in append order.
func (s *Simulator) Orders() []exchange.OrderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]exchange.OrderRecord, len(s.orders))
	copy(out, s.orders)
	return out
}

func (s *Simulator) saveLocked() error {
	if !s.persist || s.store == nil {
		return nil
	}
	return s.store.save(s)
}

func roundsToZero(v float64) bool {
	return math.Abs(v) < 1e-9
}
