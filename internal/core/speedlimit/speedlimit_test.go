package speedlimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnlimitedIsNoOp(t *testing.T) {
	l := New()
	start := time.Now()
	l.Throttle(10 << 20)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSetLimitResetsWindow(t *testing.T) {
	l := New()
	l.SetLimit(1000)
	assert.Equal(t, uint64(1000), l.Limit())
	l.Throttle(50) // under the 100-byte window budget, no sleep
	assert.Equal(t, uint64(50), l.inWindow)
	l.SetLimit(0)
	assert.Equal(t, uint64(0), l.Limit())
	assert.Equal(t, uint64(0), l.inWindow)
}

func TestThrottleSleepsWhenOverBudget(t *testing.T) {
	l := New()
	l.SetLimit(1000) // 1000 B/s -> 100 B per 100ms window
	start := time.Now()
	l.Throttle(1000) // far over the 100-byte window budget
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}
