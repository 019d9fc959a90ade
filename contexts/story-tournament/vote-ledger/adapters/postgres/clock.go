package postgresadapter

import "time"

// SystemClock supplies UTC wall-clock time for cast timestamps.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
