package infra

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var lookbackUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseLookback parses windows such as "90m", "12h", "3d" or "2w".
// Unlike time.ParseDuration it knows days and weeks and takes a single unit.
func ParseLookback(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid lookback %q", s)
	}

	unit, ok := lookbackUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("invalid lookback %q: unknown unit %q", s, s[len(s)-1:])
	}

	n, err := strconv.ParseUint(s[:len(s)-1], 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid lookback %q: amount must be a positive integer", s)
	}

	if n > uint64(math.MaxInt64/int64(unit)) {
		return 0, fmt.Errorf("invalid lookback %q: window too large", s)
	}

	return time.Duration(n) * unit, nil
}
