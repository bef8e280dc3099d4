package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskDefaults(t *testing.T) {
	tk := NewTask("https://example.com/file.bin", "/tmp/file.bin")
	require.NotEmpty(t, tk.ID)
	assert.Equal(t, StatusQueued, tk.Status)
	assert.Equal(t, int64(-1), tk.TotalSize)
}

func TestValidateDownloadedExceedsTotal(t *testing.T) {
	tk := NewTask("https://example.com/file.bin", "/tmp/file.bin")
	tk.TotalSize = 100
	tk.Downloaded = 200
	assert.Error(t, tk.Validate())
}

func TestValidateSegmentedPreconditions(t *testing.T) {
	tk := NewTask("https://example.com/file.bin", "/tmp/file.bin")
	tk.Segmented = true
	tk.Segments = 4
	tk.RangeSupported = true
	tk.TotalSize = 10 * 1 << 20
	assert.NoError(t, tk.Validate())

	tk.TotalSize = 100 // below 1 MiB
	assert.Error(t, tk.Validate())
}

func TestPercent(t *testing.T) {
	tk := NewTask("https://example.com/file.bin", "/tmp/file.bin")
	assert.Equal(t, float64(0), tk.Percent())
	tk.TotalSize = 200
	tk.Downloaded = 50
	assert.Equal(t, float64(25), tk.Percent())
}

func TestCatalogRowRoundTrip(t *testing.T) {
	tk := NewTask("https://example.com/file.bin", "/tmp/file.bin")
	tk.Filename = "file.bin"
	tk.TotalSize = 1234
	row := tk.ToCatalogRow()
	back := FromCatalogRow(row)
	assert.Equal(t, tk.ID, back.ID)
	assert.Equal(t, tk.Filename, back.Filename)
	assert.Equal(t, tk.TotalSize, back.TotalSize)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusDownloading.IsActive())
	assert.False(t, StatusQueued.IsActive())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusFailed.IsTerminal())
	assert.True(t, StatusPaused.IsResumable())
	assert.True(t, StatusFailed.IsResumable())
	assert.False(t, StatusCompleted.IsResumable())
}

func TestIsNonRetryable(t *testing.T) {
	assert.True(t, IsNonRetryable(&CancelledError{}))
	assert.True(t, IsNonRetryable(&ServerError{Status: 404}))
	assert.False(t, IsNonRetryable(&ServerError{Status: 500}))
	assert.False(t, IsNonRetryable(&NetworkError{Op: "dial"}))
}
