package service

import "time"

// Clock is the time oracle. Now is read once per operation and reports unix
// seconds; successive calls never decrease.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 {
	return time.Now().Unix()
}
