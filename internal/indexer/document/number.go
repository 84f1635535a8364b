package document

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Text returns the canonical decimal form of n. Integer literals keep their
// digits (with "-0" folded to "0"). Any literal with a fraction or exponent
// is read as a float64 and printed as the shortest round-trip decimal with
// at least one fractional digit, switching to exponent form below 1e-4 and
// from 1e16 upwards. Overflow prints as "inf" or "-inf".
func (n Number) Text() string {
	lit := string(n)
	if !strings.ContainsAny(lit, ".eE") {
		if i, ok := new(big.Int).SetString(lit, 10); ok {
			return i.String()
		}
		return lit
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil && !math.IsInf(f, 0) {
		return lit
	}
	return formatFloat(f)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
