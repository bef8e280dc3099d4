// Package merge concatenates per-segment temp files into the final
// output file (component C9).
package merge

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/arlofen/fetchcore/internal/core/task"
)

const copyBufferSize = 64 * 1024

// Merge streams each segment_i file in tempDir (ascending id order) into
// output, in order, then flushes and fsyncs. If expectedSize is
// non-negative and the total bytes written do not match, the partial
// output is deleted and MergeFailedError is returned. The caller is
// responsible for removing tempDir on success.
func Merge(tempDir, output string, segments []task.Segment, expectedSize int64) (int64, error) {
	out, err := os.Create(output)
	if err != nil {
		return 0, &task.FileError{Path: output, Err: err}
	}

	var total int64
	buf := make([]byte, copyBufferSize)

	for _, seg := range segments {
		segPath := filepath.Join(tempDir, "segment_"+strconv.Itoa(seg.ID))
		in, err := os.Open(segPath)
		if err != nil {
			out.Close()
			os.Remove(output)
			return total, &task.MergeFailedError{Reason: "missing segment file " + segPath}
		}

		n, copyErr := io.CopyBuffer(out, in, buf)
		in.Close()
		total += n
		if copyErr != nil {
			out.Close()
			os.Remove(output)
			return total, &task.MergeFailedError{Reason: copyErr.Error()}
		}
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(output)
		return total, &task.MergeFailedError{Reason: err.Error()}
	}
	if err := out.Close(); err != nil {
		return total, &task.MergeFailedError{Reason: err.Error()}
	}

	if expectedSize >= 0 && total != expectedSize {
		os.Remove(output)
		return total, &task.MergeFailedError{Reason: "size mismatch"}
	}

	return total, nil
}
