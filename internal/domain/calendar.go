package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BusinessCalendar is the recurring weekly schedule of open windows during
// which bookings are permitted. It is built once from configuration and
// read-only afterwards.
type BusinessCalendar struct {
	Location    *time.Location
	OpenMinute  int // minutes after local midnight
	CloseMinute int
	Operating   [7]bool // indexed by time.Weekday
	Slot        time.Duration
}

type CalendarConfig struct {
	OpenTime  string // "15:04" wall clock
	CloseTime string
	Weekdays  []string // "mon".."sun"; empty means every day
	Timezone  string
	Slot      time.Duration
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

func NewBusinessCalendar(cfg CalendarConfig) (BusinessCalendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return BusinessCalendar{}, fmt.Errorf("invalid calendar timezone %q", cfg.Timezone)
	}

	open, err := parseClockMinutes(cfg.OpenTime)
	if err != nil {
		return BusinessCalendar{}, fmt.Errorf("invalid open_time: %w", err)
	}
	close, err := parseClockMinutes(cfg.CloseTime)
	if err != nil {
		return BusinessCalendar{}, fmt.Errorf("invalid close_time: %w", err)
	}
	if close <= open {
		return BusinessCalendar{}, errors.New("close_time must be after open_time")
	}

	if cfg.Slot <= 0 {
		return BusinessCalendar{}, errors.New("slot duration must be positive")
	}
	if cfg.Slot > time.Duration(close-open)*time.Minute {
		return BusinessCalendar{}, errors.New("slot duration exceeds the open window")
	}

	cal := BusinessCalendar{
		Location:    loc,
		OpenMinute:  open,
		CloseMinute: close,
		Slot:        cfg.Slot,
	}

	if len(cfg.Weekdays) == 0 {
		for i := range cal.Operating {
			cal.Operating[i] = true
		}
		return cal, nil
	}
	for _, name := range cfg.Weekdays {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return BusinessCalendar{}, fmt.Errorf("invalid weekday %q", name)
		}
		cal.Operating[wd] = true
	}
	return cal, nil
}

func parseClockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a HH:MM clock time", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// OpenWindowsOn returns the calendar's open windows for the local date of t,
// in chronological order. Non-operating days yield no windows.
func (c BusinessCalendar) OpenWindowsOn(t time.Time) []Interval {
	local := t.In(c.Location)
	if !c.Operating[local.Weekday()] {
		return nil
	}
	y, m, d := local.Date()
	open := time.Date(y, m, d, c.OpenMinute/60, c.OpenMinute%60, 0, 0, c.Location)
	close := time.Date(y, m, d, c.CloseMinute/60, c.CloseMinute%60, 0, 0, c.Location)
	return []Interval{{Start: open, End: close}}
}

// Contains reports whether the half-open interval [start, end) lies entirely
// inside a single open window. Intervals that cross a window boundary are
// rejected, not split.
func (c BusinessCalendar) Contains(start, end time.Time) bool {
	if !end.After(start) {
		return false
	}
	for _, w := range c.OpenWindowsOn(start) {
		if !start.Before(w.Start) && !end.After(w.End) {
			return true
		}
	}
	return false
}

// OnSlotBoundary reports whether t is a valid slot start: inside an open
// window and offset from the window's open by a whole number of slots.
func (c BusinessCalendar) OnSlotBoundary(t time.Time) bool {
	for _, w := range c.OpenWindowsOn(t) {
		if t.Before(w.Start) || !t.Before(w.End) {
			continue
		}
		return t.Sub(w.Start)%c.Slot == 0
	}
	return false
}
