package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot is one bookable instant of a doctor's published availability.
// Identity is (DoctorID, DateTime).
type Slot struct {
	DoctorID  uuid.UUID
	DateTime  time.Time
	IsBooked  bool
	BookedAt  *time.Time
	CreatedAt time.Time
}

// Label renders the slot time the way the booking widgets show it ("09:00 AM").
// Display only; never compare labels.
func (s Slot) Label(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return s.DateTime.In(loc).Format("03:04 PM")
}

// Clock returns the current time. Stores and services take one so tests can pin "now".
type Clock func() time.Time

// Canonical reduces an instant to the form slots are keyed on: UTC, whole seconds.
func Canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

const dayLayout = "2006-01-02"

// Day is a calendar date read in a specific zone.
type Day struct {
	start time.Time
}

func NewDay(year int, month time.Month, day int, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day{start: time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

// DayOf returns the calendar day containing t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return NewDay(t.Year(), t.Month(), t.Day(), loc)
}

// ParseDay parses YYYY-MM-DD in loc.
func ParseDay(s string, loc *time.Location) (Day, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dayLayout, s, loc)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day{start: t}, nil
}

// Start is the first instant of the day, in UTC.
func (d Day) Start() time.Time {
	return d.start.UTC()
}

// End is the first instant of the following day, in UTC. Exclusive.
// AddDate keeps DST days at 23 or 25 hours.
func (d Day) End() time.Time {
	return d.start.AddDate(0, 0, 1).UTC()
}

func (d Day) Contains(t time.Time) bool {
	return !t.Before(d.Start()) && t.Before(d.End())
}

func (d Day) IsZero() bool {
	return d.start.IsZero()
}

func (d Day) String() string {
	return d.start.Format(dayLayout)
}
