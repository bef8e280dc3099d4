package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBasic(t *testing.T) {
	segments := Split(10_000_000, 4)
	require.Len(t, segments, 4)
	assert.Equal(t, int64(0), segments[0].Start)
	assert.Equal(t, int64(2499999), segments[0].End)
	assert.Equal(t, int64(2500000), segments[1].Start)
	assert.Equal(t, int64(9999999), segments[3].End)
}

func TestSplitSmallFile(t *testing.T) {
	segments := Split(500_000, 8)
	require.Len(t, segments, 1)
	assert.Equal(t, int64(0), segments[0].Start)
	assert.Equal(t, int64(499999), segments[0].End)
}

func TestSplitOddSize(t *testing.T) {
	segments := Split(10_000_003, 4)
	require.Len(t, segments, 4)

	var total int64
	for i, s := range segments {
		total += s.End - s.Start + 1
		if i > 0 {
			assert.Equal(t, segments[i-1].End+1, s.Start, "chunks must be contiguous")
		}
	}
	assert.Equal(t, int64(10_000_003), total)
	assert.Equal(t, int64(0), segments[0].Start)
	assert.Equal(t, int64(10_000_002), segments[3].End)
}

func TestSegmentSizesBalanced(t *testing.T) {
	segments := Split(100_000_000, 10)
	require.Len(t, segments, 10)
	base := segments[0].End - segments[0].Start + 1
	for _, s := range segments[:len(segments)-1] {
		assert.Equal(t, base, s.End-s.Start+1)
	}
}

func TestSplitClampsRequestedToMax(t *testing.T) {
	segments := Split(1<<30, 1000)
	assert.LessOrEqual(t, len(segments), 32)
}

func TestSplitClampsRequestedToZero(t *testing.T) {
	segments := Split(10_000_000, 0)
	assert.GreaterOrEqual(t, len(segments), 1)
}

func TestSplitCoversWholeRangeExactly(t *testing.T) {
	const total = 7_654_321
	segments := Split(total, 6)
	assert.Equal(t, int64(0), segments[0].Start)
	assert.Equal(t, int64(total-1), segments[len(segments)-1].End)
	for i := 1; i < len(segments); i++ {
		assert.Equal(t, segments[i-1].End+1, segments[i].Start)
	}
}
