package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// Decimals is the protocol-wide fixed-point precision. Every amount, price,
// ratio, rate and the borrow index carry 18 decimals regardless of the
// underlying asset's native precision.
const Decimals = 18

// Base is 10^18, the fixed-point unit (1.0).
var Base = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

var intPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return intPool.Get().(*big.Int)
}

func putInt(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	intPool.Put(v)
}

// MulDown computes a * b / Base, truncating toward zero.
func MulDown(a, b *big.Int) *big.Int {
	product := getInt()
	product.Mul(a, b)

	result := new(big.Int).Quo(product, Base)

	putInt(product)
	return result
}

// MulUp computes a * b / Base, rounding away from zero.
// Operands must be non-negative.
func MulUp(a, b *big.Int) *big.Int {
	product := getInt()
	product.Mul(a, b)

	result := divUpInternal(product, Base)

	putInt(product)
	return result
}

// DivDown computes a * Base / b, truncating toward zero.
func DivDown(a, b *big.Int) *big.Int {
	scaled := getInt()
	scaled.Mul(a, Base)

	result := new(big.Int).Quo(scaled, b)

	putInt(scaled)
	return result
}

// DivUp computes a * Base / b, rounding away from zero.
// Operands must be non-negative, b must be positive.
func DivUp(a, b *big.Int) *big.Int {
	scaled := getInt()
	scaled.Mul(a, Base)

	result := divUpInternal(scaled, b)

	putInt(scaled)
	return result
}

// divUpInternal computes ceil(numerator / denominator) on non-negative inputs.
func divUpInternal(numerator, denominator *big.Int) *big.Int {
	adjusted := getInt()
	adjusted.Sub(denominator, big.NewInt(1))
	adjusted.Add(adjusted, numerator)

	result := new(big.Int).Quo(adjusted, denominator)

	putInt(adjusted)
	return result
}

// FromNativeDecimals normalizes an asset-native amount to 18 decimals,
// truncating any excess precision. Never credits more than was transferred.
func FromNativeDecimals(amount *big.Int, nativeDecimals int) *big.Int {
	if nativeDecimals == Decimals {
		return new(big.Int).Set(amount)
	}
	if nativeDecimals < Decimals {
		factor := pow10(Decimals - nativeDecimals)
		return new(big.Int).Mul(amount, factor)
	}
	factor := pow10(nativeDecimals - Decimals)
	return new(big.Int).Quo(amount, factor)
}

// ToNativeDecimals converts an 18-decimal amount back to the asset's native
// precision, truncating. Used for outbound transfers: never pay out more than
// the normalized balance represents.
func ToNativeDecimals(amount *big.Int, nativeDecimals int) *big.Int {
	if nativeDecimals == Decimals {
		return new(big.Int).Set(amount)
	}
	if nativeDecimals > Decimals {
		factor := pow10(nativeDecimals - Decimals)
		return new(big.Int).Mul(amount, factor)
	}
	factor := pow10(Decimals - nativeDecimals)
	return new(big.Int).Quo(amount, factor)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Min returns the smaller of a and b as a fresh value.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Clone returns an independent copy, treating nil as zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// IsZero reports whether v is nil or zero.
func IsZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

// ParseDecimal parses a non-negative decimal string ("475.25") into an
// 18-decimal fixed-point value. This is the wire representation for amounts:
// JSON carries decimal strings, never floats.
func ParseDecimal(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty decimal string")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative amount not allowed: %s", s)
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole = s[:i]
		frac = s[i+1:]
	}
	if len(frac) > Decimals {
		return nil, fmt.Errorf("too many decimal places in %q (max %d)", s, Decimals)
	}
	if whole == "" {
		whole = "0"
	}

	// Pad fraction to 18 digits and concatenate
	frac = frac + strings.Repeat("0", Decimals-len(frac))

	result, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal string: %q", s)
	}
	return result, nil
}

// MustParse is ParseDecimal for constants known valid at compile time.
// Panics on malformed input.
func MustParse(s string) *big.Int {
	v, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatDecimal renders an 18-decimal fixed-point value as a decimal string
// with trailing zeros trimmed ("475.25", "1000", "0.000000000000000001").
func FormatDecimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Abs(v)
	if v.Sign() < 0 {
		sign = "-"
	}

	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(abs, Base, frac)

	if frac.Sign() == 0 {
		return sign + whole.String()
	}

	fracStr := fmt.Sprintf("%018s", frac.String())
	fracStr = strings.TrimRight(fracStr, "0")
	return sign + whole.String() + "." + fracStr
}
