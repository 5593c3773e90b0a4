package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"soltabs/pkg/models"
)

// Field is one labeled row of the token detail panel.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Note  string `json:"note,omitempty"`
	Tone  string `json:"tone,omitempty"` // "price", "confidence-<level>" or empty
}

// depthSizes are the notional sizes (in SOL) shown as market impact rows.
var depthSizes = []string{"10", "100"}

// Details builds the display rows for a token record. Optional rows are left out
// when their source data is absent.
func Details(rec models.TokenRecord, now time.Time) []Field {
	name := rec.Name
	if name == "" {
		name = "Unknown"
	}
	symbol := rec.Symbol
	if symbol == "" {
		symbol = Placeholder
	}
	decimals := Placeholder
	if rec.Decimals != nil {
		decimals = strconv.Itoa(*rec.Decimals)
	}

	fields := []Field{
		{Label: "Token", Value: fmt.Sprintf("%s %s", name, symbol)},
		{Label: "Address", Value: TruncatedAddress(rec.Address)},
		{Label: "Decimals", Value: decimals},
	}

	if pd := rec.PriceData; pd != nil {
		fields = append(fields, Field{Label: "Price", Value: "$" + CurrencyString(pd.Price, 6), Tone: "price"})
		fields = append(fields, extraInfoFields(pd.ExtraInfo, now)...)
	}

	if rec.DailyVolume != nil && *rec.DailyVolume != 0 {
		fields = append(fields, Field{Label: "Daily Volume", Value: "$" + Currency(*rec.DailyVolume, 2)})
	}
	if rec.MintedAt != "" {
		fields = append(fields, Field{Label: "Minted", Value: Date(rec.MintedAt)})
	}
	return fields
}

func extraInfoFields(info *models.ExtraInfo, now time.Time) []Field {
	if info == nil {
		return nil
	}
	var fields []Field

	if info.ConfidenceLevel != "" {
		fields = append(fields, Field{
			Label: "Confidence",
			Value: strings.ToUpper(string(info.ConfidenceLevel)),
			Tone:  "confidence-" + string(info.ConfidenceLevel),
		})
	}

	if ls := info.LastSwappedPrice; ls != nil && ls.LastJupiterBuyPrice != "" && ls.LastJupiterSellPrice != "" {
		fields = append(fields, Field{
			Label: "Last Swap",
			Value: buySell(ls.LastJupiterBuyPrice, ls.LastJupiterSellPrice),
			Note:  "Spread: " + Spread(ls.LastJupiterBuyPrice, ls.LastJupiterSellPrice),
		})
	}

	if q := info.QuotedPrice; q != nil && q.BuyPrice != "" && q.SellPrice != "" {
		ago := Placeholder
		if q.BuyAt > 0 {
			ago = RelativeTime(q.BuyAt, now)
		}
		fields = append(fields, Field{
			Label: "Quote (Buy/Sell)",
			Value: buySell(q.BuyPrice, q.SellPrice),
			Note:  fmt.Sprintf("Spread: %s · %s", Spread(q.BuyPrice, q.SellPrice), ago),
		})
	}

	if d := info.Depth; d != nil && d.BuyPriceImpactRatio != nil && d.SellPriceImpactRatio != nil {
		buy, sell := d.BuyPriceImpactRatio.Depth, d.SellPriceImpactRatio.Depth
		for _, size := range depthSizes {
			b, okB := buy[size]
			s, okS := sell[size]
			if !okB || !okS {
				break
			}
			fields = append(fields, Field{
				Label: fmt.Sprintf("Market Impact (%s SOL)", size),
				Value: fmt.Sprintf("%s buy / %s sell", Percentage(b, 4), Percentage(s, 4)),
			})
		}
	}
	return fields
}

func buySell(buy, sell string) string {
	return fmt.Sprintf("$%s / $%s", CurrencyString(buy, 6), CurrencyString(sell, 6))
}

// Spread renders (sell - buy) / buy as a percentage.
func Spread(buy, sell string) string {
	b, okB := ParseDecimal(buy)
	s, okS := ParseDecimal(sell)
	if !okB || !okS || b.IsZero() {
		return Placeholder
	}
	f, _ := s.Sub(b).Div(b).Float64()
	return Percentage(f, 3)
}

// PriceValue extracts the numeric price of a snapshot for charting.
func PriceValue(pd *models.PriceData) (float64, bool) {
	if pd == nil {
		return 0, false
	}
	d, ok := ParseDecimal(pd.Price)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
