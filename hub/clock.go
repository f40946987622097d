package hub

import "time"

// clock is the hub time source: monotonic nanoseconds since the hub
// started. It is safe for concurrent use.
type clock struct {
	start time.Time
}

func newClock() *clock {
	return &clock{start: time.Now()}
}

func (c *clock) now() int64 {
	return int64(time.Since(c.start))
}
