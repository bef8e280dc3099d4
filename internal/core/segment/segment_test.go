package segment

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlofen/fetchcore/internal/core/task"
)

type fakeFetcher struct {
	data      []byte
	callCount int
	failTimes int
}

func (f *fakeFetcher) FetchRange(ctx context.Context, url string, start, end int64) (io.ReadCloser, error) {
	f.callCount++
	if f.callCount <= f.failTimes {
		return nil, &task.NetworkError{Op: "read", Err: io.ErrUnexpectedEOF}
	}
	slice := f.data[start : end+1]
	return io.NopCloser(bytes.NewReader(slice)), nil
}

func TestDownloadFullChunk(t *testing.T) {
	dir := t.TempDir()
	tempPath := filepath.Join(dir, "segment_0")

	data := bytes.Repeat([]byte("x"), 1000)
	fetcher := &fakeFetcher{data: data}
	d := New(fetcher, nil)

	chunk := task.Segment{ID: 0, Start: 0, End: 999}
	err := d.Download(context.Background(), "https://example.com/f", chunk, tempPath, nil)
	require.NoError(t, err)

	written, err := os.ReadFile(tempPath)
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestDownloadResumesFromExistingBytes(t *testing.T) {
	dir := t.TempDir()
	tempPath := filepath.Join(dir, "segment_0")

	data := bytes.Repeat([]byte("y"), 1000)
	require.NoError(t, os.WriteFile(tempPath, data[:400], 0o644))

	fetcher := &fakeFetcher{data: data}
	d := New(fetcher, nil)

	chunk := task.Segment{ID: 0, Start: 0, End: 999}
	err := d.Download(context.Background(), "https://example.com/f", chunk, tempPath, nil)
	require.NoError(t, err)

	written, err := os.ReadFile(tempPath)
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestDownloadAlreadyCompleteSkipsNetwork(t *testing.T) {
	dir := t.TempDir()
	tempPath := filepath.Join(dir, "segment_0")
	data := bytes.Repeat([]byte("z"), 100)
	require.NoError(t, os.WriteFile(tempPath, data, 0o644))

	fetcher := &fakeFetcher{data: data}
	d := New(fetcher, nil)

	chunk := task.Segment{ID: 0, Start: 0, End: 99}
	err := d.Download(context.Background(), "https://example.com/f", chunk, tempPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, fetcher.callCount)
}

func TestDownloadRetriesTransientFailure(t *testing.T) {
	dir := t.TempDir()
	tempPath := filepath.Join(dir, "segment_0")
	data := bytes.Repeat([]byte("w"), 200)
	fetcher := &fakeFetcher{data: data, failTimes: 2}
	d := New(fetcher, nil)
	d.Retry.InitialDelay = 0
	d.Retry.MaxDelay = 0

	chunk := task.Segment{ID: 0, Start: 0, End: 199}
	err := d.Download(context.Background(), "https://example.com/f", chunk, tempPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.callCount)
}

func TestDownloadCancellationFlushesPartial(t *testing.T) {
	dir := t.TempDir()
	tempPath := filepath.Join(dir, "segment_0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := bytes.Repeat([]byte("v"), 100)
	fetcher := &fakeFetcher{data: data}
	d := New(fetcher, nil)

	chunk := task.Segment{ID: 0, Start: 0, End: 99}
	err := d.attempt(ctx, "https://example.com/f", chunk, tempPath, nil)
	var cancelled *task.CancelledError
	assert.ErrorAs(t, err, &cancelled)
}

func TestOnBytesCallback(t *testing.T) {
	dir := t.TempDir()
	tempPath := filepath.Join(dir, "segment_0")
	data := bytes.Repeat([]byte("u"), 500)
	fetcher := &fakeFetcher{data: data}
	d := New(fetcher, nil)

	var total int64
	chunk := task.Segment{ID: 0, Start: 0, End: 499}
	err := d.Download(context.Background(), "https://example.com/f", chunk, tempPath, func(n int64) {
		total += n
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), total)
}
