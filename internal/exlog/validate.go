package exlog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseNumber parses raw the way a lenient form field is read: surrounding
// whitespace is ignored, and NaN and infinities are not numbers.
func ParseNumber(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// ValidateExercise checks a submission and builds the Exercise to be stored.
// Checks run in order (duration, date, description) and the first failure is returned.
// A fractional duration is accepted and truncated toward zero.
func ValidateExercise(description, durationRaw, dateRaw string) (Exercise, error) {
	n, ok := ParseNumber(durationRaw)
	if !ok {
		return Exercise{}, fmt.Errorf("duration [%s]: %w", durationRaw, ErrInvalidDuration)
	}
	duration := math.Trunc(n)
	if duration < 1 || duration > math.MaxInt32 {
		return Exercise{}, fmt.Errorf("duration [%s] out of range: %w", durationRaw, ErrInvalidDuration)
	}

	date, err := ParseDate(dateRaw)
	if err != nil {
		return Exercise{}, err
	}

	if description == "" {
		return Exercise{}, ErrInvalidDescription
	}

	return Exercise{
		Description: description,
		Duration:    int(duration),
		Date:        date,
	}, nil
}
