// Package preferences keeps the instrument and timeframe combinations each chat subscribed to.
package preferences

import (
	"slices"
	"strings"

	"github.com/Proton-105/sigmapips-bot/pkg/config"
)

// Market groups the instruments offered under one menu entry.
type Market struct {
	Name        string
	Instruments []string
}

// Catalog is the fixed set of markets, instruments and timeframes users can pick from.
type Catalog struct {
	markets    []Market
	timeframes []string
}

// DefaultCatalog mirrors the menu offered when nothing is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		markets: []Market{
			{Name: "Forex", Instruments: []string{"EURUSD", "GBPUSD", "USDJPY", "AUDUSD"}},
			{Name: "Indices", Instruments: []string{"US500", "NAS100", "UK100", "GER40"}},
			{Name: "Commodities", Instruments: []string{"XAUUSD", "XAGUSD", "USOIL", "UKOIL"}},
			{Name: "Crypto", Instruments: []string{"BTCUSD", "ETHUSD", "LTCUSD", "XRPUSD"}},
		},
		timeframes: []string{"15m", "1h", "4h"},
	}
}

// NewCatalog builds a catalog from configuration, falling back to the defaults for empty parts.
func NewCatalog(cfg config.PreferencesConfig) Catalog {
	catalog := DefaultCatalog()

	if len(cfg.Markets) > 0 {
		markets := make([]Market, 0, len(cfg.Markets))
		for _, m := range cfg.Markets {
			markets = append(markets, Market{Name: m.Name, Instruments: slices.Clone(m.Instruments)})
		}
		catalog.markets = markets
	}
	if len(cfg.Timeframes) > 0 {
		catalog.timeframes = slices.Clone(cfg.Timeframes)
	}

	return catalog
}

// Markets returns the market names in menu order.
func (c Catalog) Markets() []string {
	names := make([]string, 0, len(c.markets))
	for _, m := range c.markets {
		names = append(names, m.Name)
	}
	return names
}

// Instruments returns the instruments of market, or false for an unknown market.
func (c Catalog) Instruments(market string) ([]string, bool) {
	for _, m := range c.markets {
		if m.Name == market {
			return m.Instruments, true
		}
	}
	return nil, false
}

// MarketOf resolves the market an instrument belongs to.
func (c Catalog) MarketOf(instrument string) (string, bool) {
	for _, m := range c.markets {
		if slices.Contains(m.Instruments, instrument) {
			return m.Name, true
		}
	}
	return "", false
}

// Timeframes returns the selectable timeframes.
func (c Catalog) Timeframes() []string {
	return c.timeframes
}

// HasTimeframe reports whether tf is selectable, ignoring case.
func (c Catalog) HasTimeframe(tf string) bool {
	return slices.ContainsFunc(c.timeframes, func(candidate string) bool {
		return strings.EqualFold(candidate, tf)
	})
}
