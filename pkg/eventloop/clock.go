package eventloop

import "time"

// Clock abstracts wall-clock access so the three timed duties can be
// driven deterministically from a test instead of real sleeps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// nowMs returns c.Now() as Unix milliseconds, the unit every timing field
// on Device is kept in.
func nowMs(c Clock) int64 {
	return c.Now().UnixMilli()
}
