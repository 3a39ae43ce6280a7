package models

import "time"

// AssetClass identifies the instrument family a symbol belongs to. The
// class selects the archive price multiplier, the session timezone bars
// are normalized to, and the market directory in archive paths. The
// multiplier is a property of the asset class, never of the provider.
type AssetClass string

const (
	AssetEquity  AssetClass = "equity"
	AssetCrypto  AssetClass = "crypto"
	AssetFutures AssetClass = "futures"
	AssetOptions AssetClass = "options"
)

var newYork = loadLocation("America/New_York")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Hosts without tzdata fall back to UTC rather than failing
		// every equity request at construction time.
		return time.UTC
	}
	return loc
}

// Valid reports whether the asset class is one of the known classes.
func (a AssetClass) Valid() bool {
	switch a {
	case AssetEquity, AssetCrypto, AssetFutures, AssetOptions:
		return true
	default:
		return false
	}
}

// Market returns the market directory used under the data root, e.g.
// equity/usa or crypto/binance.
func (a AssetClass) Market() string {
	switch a {
	case AssetEquity:
		return "usa"
	case AssetCrypto:
		return "binance"
	case AssetFutures, AssetOptions:
		return "yahoo"
	default:
		return ""
	}
}

// PriceMultiplier returns the integer scale applied to prices in the
// archive format. Equity, futures and options prices are stored in
// deci-cents; crypto prices are stored unscaled.
func (a AssetClass) PriceMultiplier() int64 {
	if a == AssetCrypto {
		return 1
	}
	return 10000
}

// SessionLocation returns the timezone bars of this asset class are
// normalized to before validation and encoding.
func (a AssetClass) SessionLocation() *time.Location {
	if a == AssetCrypto {
		return time.UTC
	}
	return newYork
}
