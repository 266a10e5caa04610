package occupancy

import "time"

// Interval is a closed time window [Start, End].
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval normalises both bounds to UTC and rejects End before Start.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start.UTC(), End: end.UTC()}
	if iv.End.Before(iv.Start) {
		return Interval{}, ErrInvalidInterval
	}
	return iv, nil
}

// Overlaps reports whether two closed intervals share at least one instant.
func Overlaps(a, b Interval) bool {
	return !a.Start.After(b.End) && !b.Start.After(a.End)
}

