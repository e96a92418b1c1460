package models

import (
	"database/sql/driver"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Frequency represents how often a schedule template fires
type Frequency string

const (
	FrequencyDaily        Frequency = "DAILY"
	FrequencyWeekly       Frequency = "WEEKLY"
	FrequencySpecificDays Frequency = "SPECIFIC_DAYS"
)

// IsValid checks the frequency against the known values
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencySpecificDays:
		return true
	}
	return false
}

// WeekdaySet is a set of weekdays stored as SMALLINT[] (0 = Sunday ... 6 = Saturday)
type WeekdaySet []int

// Value implements the driver.Valuer interface
func (w WeekdaySet) Value() (driver.Value, error) {
	days := make([]int64, len(w))
	for i, d := range w {
		days[i] = int64(d)
	}
	return pq.Array(days).Value()
}

// Scan implements the sql.Scanner interface
func (w *WeekdaySet) Scan(src interface{}) error {
	if src == nil {
		*w = WeekdaySet{}
		return nil
	}
	var days []int64
	if err := pq.Array(&days).Scan(src); err != nil {
		return fmt.Errorf("scan weekday set: %w", err)
	}
	set := make(WeekdaySet, len(days))
	for i, d := range days {
		set[i] = int(d)
	}
	*w = set
	return nil
}

// Contains reports whether the weekday is in the set
func (w WeekdaySet) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == int(day) {
			return true
		}
	}
	return false
}

// Validate checks every entry is a weekday number
func (w WeekdaySet) Validate() error {
	for _, d := range w {
		if d < 0 || d > 6 {
			return fmt.Errorf("weekday %d out of range, must be 0 (Sunday) to 6 (Saturday)", d)
		}
	}
	return nil
}

// String renders the set as "Mon,Wed" for logs
func (w WeekdaySet) String() string {
	days := append([]int(nil), w...)
	sort.Ints(days)
	names := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 {
			names = append(names, time.Weekday(d).String()[:3])
		}
	}
	return strings.Join(names, ",")
}

// ScheduleTemplate is a recurring service definition. The engine only reads it.
type ScheduleTemplate struct {
	ID            string     `json:"id" db:"id"`
	Origin        string     `json:"origin" db:"origin"`
	Destination   string     `json:"destination" db:"destination"`
	BusID         string     `json:"bus_id" db:"bus_id"`
	BusCapacity   int        `json:"bus_capacity" db:"bus_capacity"`
	DepartureTime string     `json:"departure_time" db:"departure_time"` // TIME as HH:MM:SS
	DurationHours float64    `json:"duration_hours" db:"duration_hours"`
	Fare          float64    `json:"fare" db:"fare"`
	Frequency     Frequency  `json:"frequency" db:"frequency"`
	Weekdays      WeekdaySet `json:"weekdays" db:"weekdays"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// FiresOn reports whether the template produces a trip on the given calendar date.
// DAILY always fires; WEEKLY and SPECIFIC_DAYS fire only on days in the set, so
// an empty set never fires.
func (t *ScheduleTemplate) FiresOn(date time.Time) bool {
	if !t.IsActive {
		return false
	}

	switch t.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly, FrequencySpecificDays:
		return t.Weekdays.Contains(date.Weekday())
	default:
		return false
	}
}

// ClockTime parses the departure time of day (HH:MM or HH:MM:SS)
func (t *ScheduleTemplate) ClockTime() (hour, minute int, err error) {
	parsed, err := time.Parse("15:04:05", t.DepartureTime)
	if err != nil {
		parsed, err = time.Parse("15:04", t.DepartureTime)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid departure_time %q for template %s", t.DepartureTime, t.ID)
		}
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// DepartureOn returns the departure instant on the date, in the date's own location
func (t *ScheduleTemplate) DepartureOn(date time.Time) (time.Time, error) {
	hour, minute, err := t.ClockTime()
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

// Duration converts the fractional hour duration to minute precision
func (t *ScheduleTemplate) Duration() time.Duration {
	minutes := math.Round(t.DurationHours * 60)
	return time.Duration(minutes) * time.Minute
}

// ServesRoute reports whether the template runs origin -> destination
func (t *ScheduleTemplate) ServesRoute(origin, destination string) bool {
	return strings.EqualFold(t.Origin, origin) && strings.EqualFold(t.Destination, destination)
}
