package clock

import "time"

// Clock abstracts time so batch jobs and settlement math are testable
// against fixed instants. All implementations return UTC.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
