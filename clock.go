package aliascache

import "time"

// Clock provides the time used for change markers.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
