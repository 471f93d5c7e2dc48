package domain

import "time"

// AvailableSlots enumerates the bookable slot starts for each local date in
// [startsAt, endsAt] inclusive: every slot boundary inside the calendar's open
// windows whose slot would not overlap a busy interval. The result is in
// chronological order and depends only on the inputs.
func AvailableSlots(cal BusinessCalendar, startsAt, endsAt time.Time, busy []Interval) []time.Time {
	first := localMidnight(startsAt, cal.Location)
	last := localMidnight(endsAt, cal.Location)

	var out []time.Time
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, w := range cal.OpenWindowsOn(day) {
			for t := w.Start; !t.Add(cal.Slot).After(w.End); t = t.Add(cal.Slot) {
				if overlapsAny(Interval{Start: t, End: t.Add(cal.Slot)}, busy) {
					continue
				}
				out = append(out, t)
			}
		}
	}
	return out
}

func overlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

func localMidnight(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
