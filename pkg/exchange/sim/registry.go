package sim

import "trademaker/pkg/exchange"

// Registry hook for exchange.Config.
func init() {
	exchange.RegisterVenue("sim", func(name string, cfg *exchange.VenueConfig) (exchange.Venue, error) {
		feeRate := defaultFeeRate
		if cfg.FeeRate != nil {
			feeRate = *cfg.FeeRate
		}
		return New(name, Options{
			InitialFunds: cfg.InitialFunds,
			FeeRate:      feeRate,
			Leverage:     cfg.Leverage,
			Persist:      cfg.Persist,
			StorageDir:   cfg.StorageDir,
			EntryMode:    EntryMode(cfg.EntryMode),
		})
	})
}
