package exlog

import (
	"fmt"
	"regexp"
	"time"
)

const (
	// DateLayout is the canonical form used for storage and comparison.
	DateLayout = "2006-01-02"
	// DisplayLayout is the human-readable form used in responses.
	DisplayLayout = "Mon Jan 02 2006"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Date is a calendar day without a time-of-day component.
// The zero value is not a valid date.
type Date struct {
	t time.Time
}

// NewDate returns the calendar day of t, in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate validates text against YYYY-MM-DD and returns the calendar day.
// Days that don't exist (2021-02-30, 2023-02-29) are rejected.
func ParseDate(text string) (Date, error) {
	if text == "" {
		return Date{}, fmt.Errorf("empty date: %w", ErrInvalidDate)
	}
	if !datePattern.MatchString(text) {
		return Date{}, fmt.Errorf("date [%s] does not match %s: %w", text, DateLayout, ErrInvalidDate)
	}
	t, err := time.Parse(DateLayout, text)
	if err != nil {
		return Date{}, fmt.Errorf("date [%s]: %s: %w", text, err, ErrInvalidDate)
	}
	return Date{t: t}, nil
}

// IsValidDate reports whether text is a valid calendar date.
func IsValidDate(text string) bool {
	_, err := ParseDate(text)
	return err == nil
}

func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	return d.t.Compare(other.t)
}

func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

func (d Date) After(other Date) bool {
	return d.Compare(other) > 0
}

func (d Date) Equal(other Date) bool {
	return d.Compare(other) == 0
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return d.t
}

// String renders the ISO form, e.g. 2023-07-04.
func (d Date) String() string {
	return d.t.Format(DateLayout)
}

// Display renders the form shown to API clients, e.g. Tue Jul 04 2023.
// It is one-directional: use String for anything that has to be parsed back.
func (d Date) Display() string {
	return d.t.Format(DisplayLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
