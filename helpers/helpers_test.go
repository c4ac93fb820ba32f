package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntToString(t *testing.T) {
	assert.Equal(t, "-42", IntToString(-42))
}

func TestMillisToTime(t *testing.T) {
	assert.True(t, MillisToTime(0).IsZero())
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 5e6, time.UTC), MillisToTime(1_700_000_000_005).UTC())
}

func TestNanosToTime(t *testing.T) {
	assert.True(t, NanosToTime(0).IsZero())
	assert.Equal(t, int64(1_700_000_000_000_000_123), NanosToTime(1_700_000_000_000_000_123).UnixNano())
}

func TestRandomReqID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := RandomReqID()
		assert.GreaterOrEqual(t, id, 10000)
		assert.Less(t, id, 9999999)
	}
}
