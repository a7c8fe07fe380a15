package utils

import (
	"fmt"
	"strconv"
	"strings"

	"custody-backend/internal/domain"
)

// AssetCode is a human-readable code split into its text prefix and numeric suffix.
type AssetCode struct {
	Prefix string
	Number int
	Width  int
}

func (c AssetCode) String() string {
	return FormatCode(c.Prefix, c.Number, c.Width)
}

// SplitCode separates the trailing digits of code. ok is false when the code
// has no numeric suffix.
func SplitCode(code string) (AssetCode, bool) {
	i := len(code)
	for i > 0 && code[i-1] >= '0' && code[i-1] <= '9' {
		i--
	}
	digits := code[i:]
	if digits == "" {
		return AssetCode{Prefix: code}, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return AssetCode{Prefix: code}, false
	}
	return AssetCode{Prefix: code[:i], Number: n, Width: len(digits)}, true
}

// FormatCode renders prefix+number, zero padding the number to width.
func FormatCode(prefix string, number, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, number)
}

// SequentialCodes returns count codes starting at start (inclusive), keeping
// the zero-padding width of start.
func SequentialCodes(start string, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive: %w", domain.ErrInvalidInput)
	}
	c, ok := SplitCode(strings.TrimSpace(start))
	if !ok {
		return nil, fmt.Errorf("start code %q has no numeric suffix: %w", start, domain.ErrInvalidInput)
	}
	codes := make([]string, count)
	for i := 0; i < count; i++ {
		codes[i] = FormatCode(c.Prefix, c.Number+i, c.Width)
	}
	return codes, nil
}

// NextCode suggests the code after the highest numeric-suffixed code in
// existing that shares seed's prefix. The seed's padding width is kept.
// With no matching code the seed itself is suggested.
func NextCode(seed string, existing []string) (string, error) {
	s, ok := SplitCode(strings.TrimSpace(seed))
	if !ok {
		return "", fmt.Errorf("seed code %q has no numeric suffix: %w", seed, domain.ErrInvalidInput)
	}
	highest := -1
	for _, code := range existing {
		c, ok := SplitCode(code)
		if !ok || c.Prefix != s.Prefix {
			continue
		}
		if c.Number > highest {
			highest = c.Number
		}
	}
	if highest < 0 {
		return s.String(), nil
	}
	return FormatCode(s.Prefix, highest+1, s.Width), nil
}
