// Package chunk plans the byte-range segmentation of a download
// (component C3).
package chunk

import "github.com/arlofen/fetchcore/internal/core/task"

const (
	minSizeForSegments = 1 << 20  // 1 MiB
	bytesPerSegment    = 256 << 10 // 256 KiB
	maxSegments        = 32
)

// Split decides segment count and byte boundaries for a download of
// total bytes, honoring the caller's requested segment count.
//
// Below 1 MiB the file is always single-segment. Otherwise the
// segment count is clamped to [1, 32] and to total/256KiB, whichever
// is smaller, so tiny segments are never produced. The union of
// returned chunks is exactly [0, total) and they are pairwise
// disjoint; the last chunk absorbs any remainder from integer
// division.
func Split(total int64, requested int) []task.Segment {
	if total < minSizeForSegments {
		return []task.Segment{{ID: 0, Start: 0, End: total - 1}}
	}

	n := requested
	if byBudget := int(total / bytesPerSegment); byBudget < n {
		n = byBudget
	}
	if n < 1 {
		n = 1
	}
	if n > maxSegments {
		n = maxSegments
	}

	q := total / int64(n)
	segments := make([]task.Segment, n)
	for i := 0; i < n-1; i++ {
		segments[i] = task.Segment{
			ID:    i,
			Start: int64(i) * q,
			End:   int64(i+1)*q - 1,
		}
	}
	segments[n-1] = task.Segment{
		ID:    n - 1,
		Start: int64(n-1) * q,
		End:   total - 1,
	}
	return segments
}

// SplitForResume rebuilds the same boundaries as Split but carries
// forward each segment's previously downloaded byte count so a
// resumed download can seek straight to the right offset.
func SplitForResume(total int64, requested int, downloaded []int64) []task.Segment {
	segments := Split(total, requested)
	for i := range segments {
		if i < len(downloaded) {
			segments[i].Downloaded = downloaded[i]
			segments[i].Terminal = downloaded[i] >= segments[i].Size()
		}
	}
	return segments
}
