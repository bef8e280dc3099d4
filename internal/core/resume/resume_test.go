package resume

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlofen/fetchcore/internal/core/task"
)

func sampleRecord() *task.ResumeRecord {
	return &task.ResumeRecord{
		TaskID:    "abc-123",
		URL:       "https://example.com/f.bin",
		SavePath:  "/tmp/f.bin",
		TotalSize: 10000,
		Segments: []task.SegmentResumeData{
			{SegmentID: 0, Start: 0, End: 4999, Downloaded: 2500},
			{SegmentID: 1, Start: 5000, End: 9999, Downloaded: 1000},
		},
		ETag:      `"tag1"`,
		CreatedAt: time.Unix(1700000000, 0),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := sampleRecord()
	require.NoError(t, Save(dir, r))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, r.TaskID, loaded.TaskID)
	assert.Equal(t, r.ETag, loaded.ETag)
	assert.Equal(t, r.Segments, loaded.Segments)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	dir := t.TempDir()
	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestHasResumeData(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasResumeData(dir))
	require.NoError(t, Save(dir, sampleRecord()))
	assert.True(t, HasResumeData(dir))
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, sampleRecord()))
	require.NoError(t, Delete(dir))
	assert.False(t, HasResumeData(dir))
	// deleting again is a no-op, not an error
	require.NoError(t, Delete(dir))
}

func TestSegmentSizesReflectDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_0"), make([]byte, 123), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_1"), make([]byte, 456), 0o644))

	sizes := SegmentSizes(dir, 2)
	assert.Equal(t, []int64{123, 456}, sizes)
}

func TestValidMatchingETag(t *testing.T) {
	r := sampleRecord()
	assert.True(t, Valid(r, `"tag1"`))
	assert.False(t, Valid(r, `"tag2"`))
}

func TestValidNilRecord(t *testing.T) {
	assert.False(t, Valid(nil, `"tag1"`))
}

func TestValidWhenServerHasNoETag(t *testing.T) {
	r := sampleRecord()
	assert.True(t, Valid(r, ""))
}
