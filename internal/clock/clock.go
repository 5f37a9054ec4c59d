// Package clock provides the time source used for window filtering and
// default-date generation. Injecting it keeps every date computation
// deterministic under test.
package clock

import "time"

// Clock is the source of "now".
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Fixed always reports the same instant. Test helper.
type Fixed struct {
	Instant time.Time
}

func (f Fixed) Now() time.Time {
	return f.Instant
}

// At returns a fixed clock pinned to the given instant.
func At(t time.Time) Fixed {
	return Fixed{Instant: t}
}
