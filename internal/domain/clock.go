package domain

import "time"

// Clock provides the current time. Services take a Clock so tests can pin
// expiry and TTL arithmetic to a fixed instant.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

// ToMillis converts t to UTC epoch milliseconds, the resolution used for
// persisted OTP timestamps.
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC time.Time with no
// monotonic reading.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ Clock = RealClock{}
