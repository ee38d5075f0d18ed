// Package units converts the human-readable figures Redis prints into
// numbers and back.
package units

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatError reports a memory figure that is not "<number>M" or "<number>G".
type FormatError struct {
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unknown memory format %q (want <number>M or <number>G)", e.Value)
}

// ParseMB converts a used_memory_human value such as "512.00M" or "1.20G"
// into megabytes. Only the M and G suffixes are accepted.
func ParseMB(s string) (float64, error) {
	v := strings.TrimSpace(s)
	if len(v) < 2 {
		return 0, &FormatError{Value: s}
	}

	var factor float64
	switch v[len(v)-1] {
	case 'M':
		factor = 1
	case 'G':
		factor = 1024
	default:
		return 0, &FormatError{Value: s}
	}

	num := v[:len(v)-1]
	if !isDecimal(num) {
		return 0, &FormatError{Value: s}
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, &FormatError{Value: s}
	}
	return n * factor, nil
}

// FormatThousands renders n with comma thousands separators: 1234567 -> "1,234,567".
func FormatThousands(n int64) string {
	return humanize.Comma(n)
}

// isDecimal reports whether s is digits with at most one interior dot, the
// only shape used_memory_human takes. It rules out signs, exponents, NaN
// and Inf, all of which ParseFloat would accept.
func isDecimal(s string) bool {
	digits, dots := 0, 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && dots == 0 && i > 0 && i < len(s)-1:
			dots++
		default:
			return false
		}
	}
	return digits > 0
}
