package helpers

import (
	"math/rand"
	"strconv"
	"time"
)

// IntToString converts int64 to string.
func IntToString(i int64) string {
	return strconv.FormatInt(i, 10)
}

// MillisToTime converts a unix millisecond timestamp to time.Time. Zero stays
// the zero time.
func MillisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// NanosToTime is MillisToTime for nanosecond timestamps.
func NanosToTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// RandomReqID returns a request id for exchange websocket APIs.
func RandomReqID() int {
	min := 10000
	max := 9999999
	return min + rand.Intn(max-min)
}
