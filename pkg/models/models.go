package models

import "time"

// ConfidenceLevel is the price source's own estimate of how reliable a price is.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Theme selects the UI palette.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// TokenRecord holds metadata and the last fetched price for one tracked mint.
type TokenRecord struct {
	Address     string     `json:"address"`
	Name        string     `json:"name,omitempty"`
	Symbol      string     `json:"symbol,omitempty"`
	Decimals    *int       `json:"decimals,omitempty"`
	LogoURI     string     `json:"logoURI,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DailyVolume *float64   `json:"daily_volume,omitempty"`
	MintedAt    string     `json:"minted_at,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
	PriceData   *PriceData `json:"priceData,omitempty"`
}

// PriceData is an externally sourced price snapshot. Every field is optional.
type PriceData struct {
	ID        string     `json:"id,omitempty"`
	Type      string     `json:"type,omitempty"`
	Price     string     `json:"price,omitempty"`
	ExtraInfo *ExtraInfo `json:"extraInfo,omitempty"`
}

// ExtraInfo carries the optional market detail returned with showExtraInfo=true.
type ExtraInfo struct {
	ConfidenceLevel  ConfidenceLevel   `json:"confidenceLevel,omitempty"`
	LastSwappedPrice *LastSwappedPrice `json:"lastSwappedPrice,omitempty"`
	QuotedPrice      *QuotedPrice      `json:"quotedPrice,omitempty"`
	Depth            *Depth            `json:"depth,omitempty"`
}

// LastSwappedPrice holds the most recent executed buy and sell prices.
type LastSwappedPrice struct {
	LastJupiterSellAt    int64  `json:"lastJupiterSellAt,omitempty"`
	LastJupiterSellPrice string `json:"lastJupiterSellPrice,omitempty"`
	LastJupiterBuyAt     int64  `json:"lastJupiterBuyAt,omitempty"`
	LastJupiterBuyPrice  string `json:"lastJupiterBuyPrice,omitempty"`
}

// QuotedPrice holds the current quoted buy and sell prices.
type QuotedPrice struct {
	BuyPrice  string `json:"buyPrice,omitempty"`
	BuyAt     int64  `json:"buyAt,omitempty"`
	SellPrice string `json:"sellPrice,omitempty"`
	SellAt    int64  `json:"sellAt,omitempty"`
}

// Depth holds estimated price impact for buys and sells.
type Depth struct {
	BuyPriceImpactRatio  *ImpactRatio `json:"buyPriceImpactRatio,omitempty"`
	SellPriceImpactRatio *ImpactRatio `json:"sellPriceImpactRatio,omitempty"`
}

// ImpactRatio maps a notional size in SOL ("10", "100", "1000") to a price impact fraction.
type ImpactRatio struct {
	Depth     map[string]float64 `json:"depth,omitempty"`
	Timestamp int64              `json:"timestamp,omitempty"`
}

// UserSettings are the user preferences persisted independently of the tab state.
type UserSettings struct {
	APIKey string `json:"apiKey"`
	Theme  Theme  `json:"theme"`
}

// DefaultSettings returns the settings used when nothing has been saved yet.
func DefaultSettings() UserSettings {
	return UserSettings{Theme: ThemeDark}
}

// PricePoint is a timestamped price sample kept for the chart panel.
type PricePoint struct {
	Timestamp time.Time
	Value     float64
}

// TabResult holds the outcome of resolving one persisted tab during a check.
type TabResult struct {
	Address string `json:"address"`
	Status  string `json:"status"` // "ok", "not_found" or "error"
	Symbol  string `json:"symbol,omitempty"`
	Price   string `json:"price,omitempty"`
	Error   string `json:"error,omitempty"`
	Pruned  bool   `json:"pruned,omitempty"`
}

// CheckReport holds the results of the configuration and state check.
type CheckReport struct {
	ConfigPath      string      `json:"config_path"`
	ValidStructure  bool        `json:"valid_structure"`
	StructureErrors []string    `json:"structure_errors,omitempty"`
	StoreBackend    string      `json:"store_backend"`
	StorePath       string      `json:"store_path"`
	APIBaseURL      string      `json:"api_base_url"`
	APIReachable    bool        `json:"api_reachable"`
	TabCount        int         `json:"tab_count"`
	Active          string      `json:"active,omitempty"`
	Tabs            []TabResult `json:"tabs,omitempty"`
	StateUpdated    bool        `json:"state_updated"`
	SaveError       string      `json:"save_error,omitempty"`
	DryRun          bool        `json:"dry_run"`
}
