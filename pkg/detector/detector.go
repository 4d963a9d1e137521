package detector

import (
	"fmt"
	"math"
	"sort"

	"github.com/zeromicro/go-zero/core/logx"

	"trademaker/pkg/exchange"
)

const (
	defaultThresholdPct          = 0.5
	defaultAlignmentThresholdPct = 0.01
	defaultHistorySize           = 5
)

// Kind tags an opportunity variant.
type Kind string

const (
	KindOpen  Kind = "open"
	KindClose Kind = "close"
)

// Opportunity is a single actionable dislocation or reconvergence. Open
// carries SpreadPct; Close carries Amount and PairKey.
type Opportunity struct {
	Kind      Kind
	Symbol    string
	BuyVenue  string
	BuyPrice  float64
	SellVenue string
	SellPrice float64
	SpreadPct float64
	Amount    float64
	PairKey   string
}

// PairPosition records one live paired trade registered by the coordinator.
type PairPosition struct {
	BuyVenue  string
	SellVenue string
	Amount    float64
}

// Tracker is the coordinator's registry of live paired trades, keyed by
// directional pair key and then canonical symbol. The detector only reads it.
type Tracker map[string]map[string]PairPosition

// PairKey names a directional paired trade between two venues.
func PairKey(buyVenue, sellVenue string) string {
	return fmt.Sprintf("%s-%s", buyVenue, sellVenue)
}

// ReversePairKey names the mirrored direction of a pair key's venues.
func ReversePairKey(buyVenue, sellVenue string) string {
	return fmt.Sprintf("%s-%s", sellVenue, buyVenue)
}

type pricePoint struct {
	Price     float64
	Timestamp int64
}

// Config tunes opportunity detection.
type Config struct {
	ThresholdPct          float64 // minimum open spread, percent of the buy leg
	AlignmentThresholdPct float64 // maximum close spread, percent of the sell leg
	HistorySize           int     // bounded per-venue price history
}

// Detector keeps a rolling per-venue price history and emits open and close
// opportunities on demand. It owns the active-pair set; the coordinator
// discards keys once a close is acted on.
type Detector struct {
	thresholdPct          float64
	alignmentThresholdPct float64
	historySize           int

	// venue -> symbol -> bounded history, newest last.
	history     map[string]map[string][]pricePoint
	activePairs map[string]struct{}
}

// New constructs a detector. Zero config fields fall back to the defaults
// (0.5% open threshold, 0.01% alignment threshold, history of 5).
func New(cfg Config) *Detector {
	if cfg.ThresholdPct == 0 {
		cfg.ThresholdPct = defaultThresholdPct
	}
	if cfg.AlignmentThresholdPct == 0 {
		cfg.AlignmentThresholdPct = defaultAlignmentThresholdPct
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	return &Detector{
		thresholdPct:          cfg.ThresholdPct,
		alignmentThresholdPct: cfg.AlignmentThresholdPct,
		historySize:           cfg.HistorySize,
		history:               make(map[string]map[string][]pricePoint),
		activePairs:           make(map[string]struct{}),
	}
}

// UpdatePrices appends the tick to the venue-symbol history, evicting the
// oldest entry once the history exceeds its capacity.
func (d *Detector) UpdatePrices(t *exchange.Tick) {
	symbol := t.Symbol()
	venueHistory := d.history[t.Exchange]
	if venueHistory == nil {
		venueHistory = make(map[string][]pricePoint)
		d.history[t.Exchange] = venueHistory
	}
	points := append(venueHistory[symbol], pricePoint{Price: t.Price, Timestamp: t.Timestamp})
	if len(points) > d.historySize {
		points = points[1:]
	}
	venueHistory[symbol] = points
	logx.Debugf("detector: price update venue=%s symbol=%s price=%v", t.Exchange, symbol, t.Price)
}

// LatestPrice returns the newest observed price for (venue, symbol).
func (d *Detector) LatestPrice(venue, symbol string) (float64, bool) {
	points := d.history[venue][exchange.CanonicalSymbol(symbol)]
	if len(points) == 0 {
		return 0, false
	}
	return points[len(points)-1].Price, true
}

// DetectOpportunity scans the latest prices for the symbol and returns open
// opportunities above the spread threshold followed by close opportunities
// for realigned active pairs. Venue pairs are visited in lexicographic order
// so emission is deterministic.
func (d *Detector) DetectOpportunity(symbol string, tracker Tracker) []Opportunity {
	symbol = exchange.CanonicalSymbol(symbol)
	latest := d.latestBySymbol(symbol)
	if len(latest) < 2 {
		return nil
	}

	venues := make([]string, 0, len(latest))
	for venue := range latest {
		venues = append(venues, venue)
	}
	sort.Strings(venues)

	var ops []Opportunity
	for _, buy := range venues {
		for _, sell := range venues {
			if buy == sell {
				continue
			}
			buyPrice, sellPrice := latest[buy], latest[sell]
			spreadPct := (sellPrice - buyPrice) / buyPrice * 100
			if spreadPct < d.thresholdPct {
				continue
			}
			key := PairKey(buy, sell)
			if d.isActive(buy, sell) || hasTrackedPosition(tracker, buy, sell, symbol) {
				continue
			}
			ops = append(ops, Opportunity{
				Kind:      KindOpen,
				Symbol:    symbol,
				BuyVenue:  buy,
				BuyPrice:  buyPrice,
				SellVenue: sell,
				SellPrice: sellPrice,
				SpreadPct: spreadPct,
				PairKey:   key,
			})
			d.activePairs[key] = struct{}{}
			logx.Infof("detector: open opportunity symbol=%s buy=%s@%v sell=%s@%v spread=%.4f%%",
				symbol, buy, buyPrice, sell, sellPrice, spreadPct)
		}
	}

	ops = append(ops, d.closeOpportunities(symbol, latest, tracker)...)
	return ops
}

func (d *Detector) closeOpportunities(symbol string, latest map[string]float64, tracker Tracker) []Opportunity {
	keys := make([]string, 0, len(tracker))
	for key := range tracker {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var ops []Opportunity
	for _, key := range keys {
		pair, ok := tracker[key][symbol]
		if !ok {
			continue
		}
		buyPrice, buyOK := latest[pair.BuyVenue]
		sellPrice, sellOK := latest[pair.SellVenue]
		if !buyOK || !sellOK {
			continue
		}
		spreadPct := math.Abs(buyPrice-sellPrice) / sellPrice * 100
		if spreadPct > d.alignmentThresholdPct {
			continue
		}
		ops = append(ops, Opportunity{
			Kind:      KindClose,
			Symbol:    symbol,
			BuyVenue:  pair.BuyVenue,
			BuyPrice:  buyPrice,
			SellVenue: pair.SellVenue,
			SellPrice: sellPrice,
			SpreadPct: spreadPct,
			Amount:    pair.Amount,
			PairKey:   key,
		})
		logx.Infof("detector: close opportunity symbol=%s pair=%s spread=%.4f%%", symbol, key, spreadPct)
	}
	return ops
}

func (d *Detector) latestBySymbol(symbol string) map[string]float64 {
	latest := make(map[string]float64)
	for venue, venueHistory := range d.history {
		points := venueHistory[symbol]
		if len(points) == 0 {
			continue
		}
		latest[venue] = points[len(points)-1].Price
	}
	return latest
}

func (d *Detector) isActive(buyVenue, sellVenue string) bool {
	if _, ok := d.activePairs[PairKey(buyVenue, sellVenue)]; ok {
		return true
	}
	_, ok := d.activePairs[ReversePairKey(buyVenue, sellVenue)]
	return ok
}

// hasTrackedPosition blocks both directions of a venue pair that already has
// a live paired trade for the symbol.
func hasTrackedPosition(tracker Tracker, buyVenue, sellVenue, symbol string) bool {
	for _, key := range []string{PairKey(buyVenue, sellVenue), ReversePairKey(buyVenue, sellVenue)} {
		if _, ok := tracker[key][symbol]; ok {
			return true
		}
	}
	return false
}

// Discard removes a pair key from the active set once its close has been
// acted on, or to roll back a failed open.
func (d *Detector) Discard(pairKey string) {
	delete(d.activePairs, pairKey)
}

// ActivePairs returns the active pair keys in sorted order.
func (d *Detector) ActivePairs() []string {
	keys := make([]string, 0, len(d.activePairs))
	for key := range d.activePairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
