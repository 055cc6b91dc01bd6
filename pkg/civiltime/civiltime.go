// Package civiltime converts between the fixed UTC+8 (WITA) civil calendar used
// for every user-facing schedule and the absolute UTC instants that are stored.
//
// The offset is constant: there is no daylight-saving adjustment, and nothing in
// this package consults the process-local time zone.
package civiltime

import (
	"fmt"
	"strings"
	"time"

	apperrors "studiobook/pkg/errors"
)

const (
	Offset = 8 * time.Hour

	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04"
	DateTimeLayout  = "2006-01-02T15:04:05"
	minutesPerDay   = 24 * 60
	rangeSeparator  = " - "
)

// Zone is the WITA location, for formatting instants in local terms.
var Zone = time.FixedZone("WITA", int(Offset/time.Second))

var localLayouts = []string{
	DateTimeLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Date is a calendar day in the local civil calendar.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, invalid("date", s, DateLayout)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// At combines the day with a local time of day.
func (d Date) At(t TimeOfDay) LocalDateTime {
	return LocalDateTime{wall: time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Add(time.Duration(t) * time.Minute)}
}

// Bounds returns the absolute instants delimiting the local day as [start, end).
func (d Date) Bounds() (time.Time, time.Time) {
	start := ToAbsolute(d.At(0))
	return start, start.Add(24 * time.Hour)
}

// TimeOfDay counts minutes since local midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "H:MM" and "HH:MM" between 00:00 and 23:59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, invalid("time of day", s, TimeLayout)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// LocalDateTime is a wall-clock reading in the WITA calendar. It carries no
// location of its own; ToAbsolute pins it to an instant.
type LocalDateTime struct {
	wall time.Time
}

func NewLocal(d Date, hour, minute, second int) LocalDateTime {
	return LocalDateTime{wall: time.Date(d.Year, d.Month, d.Day, hour, minute, second, 0, time.UTC)}
}

// ParseLocal reads a local wall-clock value. Strings carrying an explicit zone
// are rejected: they already name an instant.
func ParseLocal(s string) (LocalDateTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return LocalDateTime{wall: t}, nil
		}
	}
	return LocalDateTime{}, invalid("local date-time", s, DateTimeLayout)
}

func (l LocalDateTime) Date() Date {
	return Date{Year: l.wall.Year(), Month: l.wall.Month(), Day: l.wall.Day()}
}

func (l LocalDateTime) TimeOfDay() TimeOfDay {
	return NewTimeOfDay(l.wall.Hour(), l.wall.Minute())
}

func (l LocalDateTime) Add(d time.Duration) LocalDateTime {
	return LocalDateTime{wall: l.wall.Add(d)}
}

func (l LocalDateTime) AddMinutes(n int) LocalDateTime {
	return l.Add(time.Duration(n) * time.Minute)
}

func (l LocalDateTime) Sub(o LocalDateTime) time.Duration { return l.wall.Sub(o.wall) }
func (l LocalDateTime) Before(o LocalDateTime) bool       { return l.wall.Before(o.wall) }
func (l LocalDateTime) After(o LocalDateTime) bool        { return l.wall.After(o.wall) }
func (l LocalDateTime) Equal(o LocalDateTime) bool        { return l.wall.Equal(o.wall) }
func (l LocalDateTime) IsZero() bool                      { return l.wall.IsZero() }

func (l LocalDateTime) String() string {
	return l.wall.Format(DateTimeLayout)
}

// Clock formats the time-of-day part, "15:04".
func (l LocalDateTime) Clock() string {
	return l.wall.Format(TimeLayout)
}

func (l LocalDateTime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LocalDateTime) UnmarshalText(b []byte) error {
	parsed, err := ParseLocal(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ToAbsolute subtracts the fixed offset from the wall-clock value and returns
// the UTC instant.
func ToAbsolute(l LocalDateTime) time.Time {
	return l.wall.Add(-Offset)
}

// ToLocal adds the fixed offset back to an instant.
func ToLocal(t time.Time) LocalDateTime {
	return LocalDateTime{wall: t.UTC().Add(Offset)}
}

// ParseAbsolute parses a local wall-clock string straight to its instant.
func ParseAbsolute(s string) (time.Time, error) {
	l, err := ParseLocal(s)
	if err != nil {
		return time.Time{}, err
	}
	return ToAbsolute(l), nil
}

// FormatRange renders an instant range as a local "15:04 - 15:04" label.
func FormatRange(start, end time.Time) string {
	return ToLocal(start).Clock() + rangeSeparator + ToLocal(end).Clock()
}

func invalid(kind, value, layout string) error {
	return apperrors.Validation(fmt.Sprintf("invalid %s", kind), map[string]any{
		"value":  value,
		"format": layout,
	})
}
