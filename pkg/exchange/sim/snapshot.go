package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"trademaker/pkg/exchange"
)

// snapshotState is the on-disk serialization of one venue's full state.
type snapshotState struct {
	RealBalance   map[string]float64           `json:"real_balance"`
	LoanedBalance map[string]float64           `json:"loaned_balance"`
	Positions     map[string]exchange.Position `json:"positions"`
	Orders        []exchange.OrderRecord       `json:"orders"`
}

// snapshotStore owns the snapshot file of one venue. Writes replace the file
// fully via write-tmp+rename so a crash never leaves a torn snapshot.
type snapshotStore struct {
	path string
}

func newSnapshotStore(dir, venue string) (*snapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage dir %s: %v", exchange.ErrSnapshotIO, dir, err)
	}
	return &snapshotStore{path: filepath.Join(dir, venue+"_state.json")}, nil
}

// load restores simulator state from disk. Returns false when no snapshot
// exists yet.
func (st *snapshotStore) load(s *Simulator) (bool, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", exchange.ErrSnapshotIO, st.path, err)
	}

	var state snapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", exchange.ErrSnapshotIO, st.path, err)
	}

	s.realBalance = state.RealBalance
	if s.realBalance == nil {
		s.realBalance = make(map[string]float64)
	}
	s.loanedBalance = state.LoanedBalance
	if s.loanedBalance == nil {
		s.loanedBalance = make(map[string]float64)
	}
	s.positions = make(map[string]*exchange.Position, len(state.Positions))
	for symbol, pos := range state.Positions {
		p := pos
		s.positions[symbol] = &p
	}
	s.orders = state.Orders
	return true, nil
}

// save writes the full simulator state. Callers hold the simulator lock, so
// writes are serialized against reads.
func (st *snapshotStore) save(s *Simulator) error {
	state := snapshotState{
		RealBalance:   s.realBalance,
		LoanedBalance: s.loanedBalance,
		Positions:     make(map[string]exchange.Position, len(s.positions)),
		Orders:        s.orders,
	}
	for symbol, pos := range s.positions {
		state.Positions[symbol] = *pos
	}
	if state.Orders == nil {
		state.Orders = []exchange.OrderRecord{}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", exchange.ErrSnapshotIO, st.path, err)
	}

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", exchange.ErrSnapshotIO, tmp, err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", exchange.ErrSnapshotIO, st.path, err)
	}
	return nil
}

func formatDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	if math.Abs(v) < 1e-9 {
		return "0"
	}
	s := strconv.FormatFloat(v, 'f', 8, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
