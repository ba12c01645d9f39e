package timing

import "time"

// Clock reads the current time. Elapsed times are differences of two
// readings, so the wall clock's monotonic reading is what gets measured.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// WallClock returns the default clock backed by time.Now.
func WallClock() Clock { return wallClock{} }
