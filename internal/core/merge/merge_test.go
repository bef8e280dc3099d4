package merge

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlofen/fetchcore/internal/core/task"
)

func writeSegment(t *testing.T, dir string, id int, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_"+strconv.Itoa(id)), []byte(content), 0o644))
}

func TestMergeConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, 0, "hello")
	writeSegment(t, dir, 1, "world")

	segments := []task.Segment{{ID: 0, Start: 0, End: 4}, {ID: 1, Start: 5, End: 9}}
	output := filepath.Join(dir, "out.bin")

	n, err := Merge(dir, output, segments, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "helloworld", string(data))
}

func TestMergeSizeMismatchDeletesOutput(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, 0, "hello")

	segments := []task.Segment{{ID: 0, Start: 0, End: 4}}
	output := filepath.Join(dir, "out.bin")

	_, err := Merge(dir, output, segments, 999)
	require.Error(t, err)
	var mergeErr *task.MergeFailedError
	assert.ErrorAs(t, err, &mergeErr)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMergeMissingSegmentFails(t *testing.T) {
	dir := t.TempDir()
	segments := []task.Segment{{ID: 0, Start: 0, End: 4}}
	output := filepath.Join(dir, "out.bin")

	_, err := Merge(dir, output, segments, -1)
	require.Error(t, err)
}

func TestMergeSkipsSizeCheckWhenExpectedNegative(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, 0, "abc")
	segments := []task.Segment{{ID: 0, Start: 0, End: 2}}
	output := filepath.Join(dir, "out.bin")

	n, err := Merge(dir, output, segments, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
