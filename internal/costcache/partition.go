package costcache

import "time"

// Partition returns every calendar day in r, ascending.
func Partition(r DateRange) ([]time.Time, error) {
	if r.IsZero() {
		return nil, ErrInvalidRange
	}

	days := make([]time.Time, 0, r.Days())
	for d := r.start; !d.After(r.end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}
