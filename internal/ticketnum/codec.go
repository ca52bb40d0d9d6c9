// Package ticketnum formats and parses raffle ticket numbers.
//
// Numbers are zero-padded to a width that depends only on the raffle size, so
// every slot of a raffle has exactly one textual form.
package ticketnum

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ms-raffle/internal/models"
)

const minWidth = 3

// Width returns the digit width used for a raffle of total tickets.
func Width(total int) int {
	w := len(strconv.Itoa(total - 1))
	if w < minWidth {
		return minWidth
	}
	return w
}

// Format left-pads number with zeros to Width(total).
func Format(number, total int) (string, error) {
	if number < 0 || number >= total {
		return "", fmt.Errorf("%w: %d outside [0,%d)", models.ErrInvalidNumber, number, total)
	}
	return pad(number, Width(total)), nil
}

func pad(number, width int) string {
	s := strconv.Itoa(number)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// Parse reads a padded or unpadded number and checks it belongs to the raffle.
func Parse(text string, total int) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "+") || strings.HasPrefix(text, "-") {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidNumber, text)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidNumber, text)
	}
	if n >= total {
		return 0, fmt.Errorf("%w: %d outside [0,%d)", models.ErrInvalidNumber, n, total)
	}
	return n, nil
}

// Canonical re-formats text to the raffle's padding.
func Canonical(text string, total int) (string, error) {
	n, err := Parse(text, total)
	if err != nil {
		return "", err
	}
	return Format(n, total)
}

// ParseSelection expands bulk input such as "001, 005-010, 015" into the
// formatted numbers it names, ascending and without duplicates. Malformed
// tokens, reversed ranges and numbers outside the raffle are skipped.
func ParseSelection(text string, total int) []string {
	seen := make(map[int]struct{})
	for _, token := range strings.Split(text, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		start, end, ok := parseToken(token, total)
		if !ok {
			continue
		}
		for n := start; n <= end; n++ {
			seen[n] = struct{}{}
		}
	}

	ints := make([]int, 0, len(seen))
	for n := range seen {
		ints = append(ints, n)
	}
	sort.Ints(ints)

	width := Width(total)
	out := make([]string, len(ints))
	for i, n := range ints {
		out[i] = pad(n, width)
	}
	return out
}

// parseToken returns the inclusive range a token names, clipped to the raffle.
func parseToken(token string, total int) (int, int, bool) {
	lo, hi, isRange := strings.Cut(token, "-")
	start, err := parseNonNegative(lo)
	if err != nil {
		return 0, 0, false
	}
	end := start
	if isRange {
		end, err = parseNonNegative(hi)
		if err != nil || start > end {
			return 0, 0, false
		}
	}
	if start >= total {
		return 0, 0, false
	}
	if end >= total {
		end = total - 1
	}
	return start, end, true
}

func parseNonNegative(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
