package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Placeholder is shown wherever a value is absent or unparsable.
const Placeholder = "N/A"

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 0 {
		return ""
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

var (
	oneCent = decimal.New(1, -2)
	one     = decimal.New(1, 0)
)

// CurrencyDecimal formats d with thousands separators and between 2 and p fraction
// digits. p starts at minPrecision and widens to 4 below 1 and to 6 below 0.01.
func CurrencyDecimal(d decimal.Decimal, minPrecision int) string {
	p := minPrecision
	if d.LessThan(oneCent) && p < 6 {
		p = 6
	} else if d.LessThan(one) && p < 4 {
		p = 4
	}
	if p < 2 {
		p = 2
	}
	s := d.StringFixed(int32(p))
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		minLen := dot + 3
		for len(s) > minLen && s[len(s)-1] == '0' {
			s = s[:len(s)-1]
		}
	}
	return AddCommas(s)
}

// Currency is CurrencyDecimal for float input. NaN and infinities yield the placeholder.
func Currency(value float64, minPrecision int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Placeholder
	}
	return CurrencyDecimal(decimal.NewFromFloat(value), minPrecision)
}

// CurrencyString formats a decimal string as returned by the price API.
func CurrencyString(value string, minPrecision int) string {
	d, ok := ParseDecimal(value)
	if !ok {
		return Placeholder
	}
	return CurrencyDecimal(d, minPrecision)
}

// CurrencyPtr formats an optional value.
func CurrencyPtr(value *float64, minPrecision int) string {
	if value == nil {
		return Placeholder
	}
	return Currency(*value, minPrecision)
}

// ParseDecimal parses an API price string. Empty or malformed input reports false.
func ParseDecimal(value string) (decimal.Decimal, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Percentage renders a fraction as a percentage with fixed decimal places.
func Percentage(fraction float64, precision int) string {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return Placeholder
	}
	if precision < 0 {
		precision = 0
	}
	return fmt.Sprintf("%.*f%%", precision, fraction*100)
}

// Number formats with separators and at most precision fraction digits.
func Number(value float64, precision int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Placeholder
	}
	return AddCommas(decimal.NewFromFloat(value).Round(int32(precision)).String())
}

func FormatFloat(f float64, decimals int) string {
	return AddCommas(fmt.Sprintf("%.*f", decimals, f))
}

// TruncatedAddress keeps the first and last four characters of an address.
func TruncatedAddress(address string) string {
	if address == "" {
		return Placeholder
	}
	r := []rune(address)
	if len(r) <= 8 {
		return address
	}
	return string(r[:4]) + "..." + string(r[len(r)-4:])
}
