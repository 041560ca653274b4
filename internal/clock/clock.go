package clock

import "time"

// Clock abstracts time for services that stamp records or resolve periods.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Fixed returns a clock pinned to a single instant, for tests.
func Fixed(at time.Time) Clock { return fixedClock{at: at.UTC()} }

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }
