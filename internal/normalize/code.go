package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Code is a canonical PSGC code: a fixed-width decimal number whose digit
// groups encode region, province, municipality and barangay.
type Code int64

// Sentinel is substituted for codes that could not be parsed.
const Sentinel Code = 0

// CodeWidth is the number of decimal digits in a canonical code.
const CodeWidth = 10

// Tier is an administrative tier, one per digit group of a Code.
type Tier int

const (
	TierNone Tier = iota
	TierRegion
	TierProvince
	TierMunicipality
	TierBarangay
)

// groupEnd is the exclusive end offset of each tier's digit group.
var groupEnd = map[Tier]int{
	TierRegion:       2,
	TierProvince:     5,
	TierMunicipality: 7,
	TierBarangay:     10,
}

// ErrInvalidCodeFormat is matched by every *InvalidCodeError.
var ErrInvalidCodeFormat = errors.New("invalid code format")

// InvalidCodeError describes a code field that is not coercible to a Code.
type InvalidCodeError struct {
	Raw    string
	Reason string
}

// Error implements the error interface
func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code %q: %s", e.Raw, e.Reason)
}

// Is implements errors.Is support
func (e *InvalidCodeError) Is(target error) bool {
	return target == ErrInvalidCodeFormat
}

// String formats the code as ten zero-padded digits.
func (c Code) String() string {
	return Format(c)
}

// String returns a short label for the tier.
func (t Tier) String() string {
	switch t {
	case TierRegion:
		return "region"
	case TierProvince:
		return "province"
	case TierMunicipality:
		return "municipality"
	case TierBarangay:
		return "barangay"
	}
	return "none"
}

// ParseTier accepts a tier name ("barangay") or its adm number ("4", "adm4").
func ParseTier(s string) (Tier, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t := TierRegion; t <= TierBarangay; t++ {
		n := strconv.Itoa(int(t))
		if s == t.String() || s == n || s == "adm"+n {
			return t, true
		}
	}
	return TierNone, false
}

// SuffixWidth returns how many trailing digits sit below the tier. A legacy
// pcode for the tier carries only the digits above this suffix.
func SuffixWidth(t Tier) int {
	end, ok := groupEnd[t]
	if !ok {
		return CodeWidth
	}
	return CodeWidth - end
}

// Normalize converts a legacy geometry code such as "PH0102801" into a
// canonical Code. The PH/P prefix is stripped, suffixWidth zeros are appended
// and the result is fitted to CodeWidth digits. Non-numeric input yields an
// *InvalidCodeError; callers are expected to fall back to Sentinel.
func Normalize(raw string, suffixWidth int) (Code, error) {
	numeric := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(numeric, "PH"):
		numeric = numeric[2:]
	case strings.HasPrefix(numeric, "P"):
		numeric = numeric[1:]
	}

	if numeric == "" {
		return Sentinel, &InvalidCodeError{Raw: raw, Reason: "empty numeric part"}
	}
	for _, r := range numeric {
		if r < '0' || r > '9' {
			return Sentinel, &InvalidCodeError{Raw: raw, Reason: "non-numeric characters"}
		}
	}
	if suffixWidth < 0 || suffixWidth > CodeWidth {
		return Sentinel, &InvalidCodeError{Raw: raw, Reason: fmt.Sprintf("suffix width %d out of range", suffixWidth)}
	}

	digits := numeric + strings.Repeat("0", suffixWidth)
	if len(digits) > CodeWidth {
		digits = digits[:CodeWidth]
	}

	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Sentinel, &InvalidCodeError{Raw: raw, Reason: err.Error()}
	}
	return Code(value), nil
}

// ParseCode parses a registry code cell. Registry exports sometimes drop the
// leading zero or render the number as a float ("102801001.0").
func ParseCode(raw string) (Code, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return Sentinel, &InvalidCodeError{Raw: raw, Reason: "empty"}
	}
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil || value < 0 {
		return Sentinel, &InvalidCodeError{Raw: raw, Reason: "not an integer"}
	}
	return Code(value), nil
}

// Format renders a code as CodeWidth zero-padded digits.
func Format(c Code) string {
	return fmt.Sprintf("%0*d", CodeWidth, int64(c))
}

// FormatPCode renders the code the way geometry sources label a unit of the
// given tier: "PH" followed by the digits down to that tier.
func FormatPCode(c Code, t Tier) string {
	end, ok := groupEnd[t]
	if !ok {
		end = CodeWidth
	}
	return "PH" + Format(c)[:end]
}

func scale(t Tier) Code {
	p := Code(1)
	for i := 0; i < SuffixWidth(t); i++ {
		p *= 10
	}
	return p
}

// AncestorCode zero-fills every digit group below the tier.
func AncestorCode(c Code, t Tier) Code {
	if t <= TierNone {
		return Sentinel
	}
	if t >= TierBarangay {
		return c
	}
	p := scale(t)
	return c / p * p
}

// TierOf returns the finest tier with a non-zero digit group.
func TierOf(c Code) Tier {
	if c == Sentinel {
		return TierNone
	}
	for t := TierBarangay; t > TierRegion; t-- {
		if AncestorCode(c, t-1) != c {
			return t
		}
	}
	return TierRegion
}

// IsDescendant reports whether a lies strictly inside b: the groups of a
// above b's finest non-zero group equal b's prefix.
func IsDescendant(a, b Code) bool {
	t := TierOf(b)
	if t == TierNone || t == TierBarangay || a == b {
		return false
	}
	return AncestorCode(a, t) == b
}

// ReplaceGroup overwrites the digit group of the tier with value and keeps
// every other group.
func ReplaceGroup(c Code, t Tier, value int64) Code {
	if t <= TierNone || t > TierBarangay {
		return c
	}
	below := scale(t)
	width := groupEnd[t] - groupEnd[t-1]
	if t == TierRegion {
		width = groupEnd[t]
	}
	span := below
	for i := 0; i < width; i++ {
		span *= 10
	}
	return c/span*span + Code(value)*below + c%below
}
