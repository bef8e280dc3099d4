package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlofen/fetchcore/internal/core/catalog"
	"github.com/arlofen/fetchcore/internal/core/task"
)

// fixedContentServer serves content as a single 200 response, or as a
// range-aware 206 responder when supportsRange is true. delay, if
// nonzero, is slept before every response, giving tests a window to
// exercise pause/cancel mid-transfer.
func fixedContentServer(content []byte, etag string, supportsRange bool, delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("ETag", etag)

		rangeHeader := r.Header.Get("Range")
		if !supportsRange || rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			w.WriteHeader(http.StatusOK)
			w.Write(content)
			return
		}

		spec := strings.TrimPrefix(rangeHeader, "bytes=")
		parts := strings.SplitN(spec, "-", 2)
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end := int64(len(content)) - 1
		if len(parts) > 1 && parts[1] != "" {
			if e, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				end = e
			}
		}
		if end >= int64(len(content)) {
			end = int64(len(content)) - 1
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(content)))
		w.Header().Set("Content-Length", strconv.Itoa(int(end-start+1)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[start : end+1])
	}))
}

func newTestEngine(t *testing.T, maxConcurrent int) (*Engine, *catalog.Catalog) {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	e := New(Config{DownloadDir: t.TempDir(), DefaultSegments: 4}, cat, maxConcurrent)
	return e, cat
}

func waitForStatus(t *testing.T, cat *catalog.Catalog, id string, want task.Status, timeout time.Duration) *task.Task {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last *task.Task
	for time.Now().Before(deadline) {
		tk, err := cat.Get(id)
		require.NoError(t, err)
		require.NotNil(t, tk)
		last = tk
		if tk.Status == want {
			return tk
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s, last status %s (err=%s)", id, want, last.Status, last.LastError)
	return nil
}

func repeatContent(n int) []byte {
	return bytes.Repeat([]byte("0123456789abcdef"), n/16+1)[:n]
}

func TestSingleSegmentDownloadCompletes(t *testing.T) {
	content := repeatContent(1024)
	srv := fixedContentServer(content, `"etag-small"`, false, 0)
	defer srv.Close()

	e, cat := newTestEngine(t, 2)

	tk, err := e.CreateTask(context.Background(), task.CreateRequest{URL: srv.URL + "/small.bin"})
	require.NoError(t, err)
	assert.False(t, tk.Segmented)

	require.NoError(t, e.Start(tk.ID))
	final := waitForStatus(t, cat, tk.ID, task.StatusCompleted, 5*time.Second)

	got, err := os.ReadFile(final.SavePath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestMultiSegmentDownloadCompletes(t *testing.T) {
	content := repeatContent(2 * 1024 * 1024)
	srv := fixedContentServer(content, `"etag-large"`, true, 0)
	defer srv.Close()

	e, cat := newTestEngine(t, 2)

	tk, err := e.CreateTask(context.Background(), task.CreateRequest{URL: srv.URL + "/large.bin"})
	require.NoError(t, err)
	require.True(t, tk.Segmented)
	assert.Equal(t, 4, tk.Segments)

	require.NoError(t, e.Start(tk.ID))
	final := waitForStatus(t, cat, tk.ID, task.StatusCompleted, 10*time.Second)

	got, err := os.ReadFile(final.SavePath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, int64(len(content)), final.Downloaded)
}

func TestChecksumMismatchFailsTask(t *testing.T) {
	content := repeatContent(512)
	srv := fixedContentServer(content, `"etag-checksum"`, false, 0)
	defer srv.Close()

	e, cat := newTestEngine(t, 2)

	tk, err := e.CreateTask(context.Background(), task.CreateRequest{
		URL:              srv.URL + "/checked.bin",
		ExpectedChecksum: strings.Repeat("0", 64),
		ChecksumAlgo:     task.ChecksumSHA256,
	})
	require.NoError(t, err)

	require.NoError(t, e.Start(tk.ID))
	final := waitForStatus(t, cat, tk.ID, task.StatusFailed, 5*time.Second)
	assert.Contains(t, final.LastError, "checksum mismatch")
}

func TestChecksumMatchCompletesVerifying(t *testing.T) {
	content := repeatContent(512)
	sum := sha256.Sum256(content)
	srv := fixedContentServer(content, `"etag-checksum-ok"`, false, 0)
	defer srv.Close()

	e, cat := newTestEngine(t, 2)

	tk, err := e.CreateTask(context.Background(), task.CreateRequest{
		URL:              srv.URL + "/checked-ok.bin",
		ExpectedChecksum: hex.EncodeToString(sum[:]),
		ChecksumAlgo:     task.ChecksumSHA256,
	})
	require.NoError(t, err)

	require.NoError(t, e.Start(tk.ID))
	final := waitForStatus(t, cat, tk.ID, task.StatusCompleted, 5*time.Second)
	assert.Equal(t, hex.EncodeToString(sum[:]), final.ComputedChecksum)
}

func TestPauseThenResumeCompletes(t *testing.T) {
	content := repeatContent(2 * 1024 * 1024)
	srv := fixedContentServer(content, `"etag-pause"`, true, 400*time.Millisecond)
	defer srv.Close()

	e, cat := newTestEngine(t, 2)

	tk, err := e.CreateTask(context.Background(), task.CreateRequest{URL: srv.URL + "/pausable.bin"})
	require.NoError(t, err)
	require.True(t, tk.Segmented)

	require.NoError(t, e.Start(tk.ID))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, e.Pause(tk.ID))

	paused := waitForStatus(t, cat, tk.ID, task.StatusPaused, 5*time.Second)
	assert.Equal(t, task.StatusPaused, paused.Status)

	require.NoError(t, e.Resume(tk.ID))
	final := waitForStatus(t, cat, tk.ID, task.StatusCompleted, 10*time.Second)

	got, err := os.ReadFile(final.SavePath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCancelRemovesTempDir(t *testing.T) {
	content := repeatContent(2 * 1024 * 1024)
	srv := fixedContentServer(content, `"etag-cancel"`, true, 400*time.Millisecond)
	defer srv.Close()

	e, cat := newTestEngine(t, 2)

	tk, err := e.CreateTask(context.Background(), task.CreateRequest{URL: srv.URL + "/cancellable.bin"})
	require.NoError(t, err)

	require.NoError(t, e.Start(tk.ID))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, e.Cancel(tk.ID))

	waitForStatus(t, cat, tk.ID, task.StatusCancelled, 5*time.Second)

	_, statErr := os.Stat(tempDirFor(tk))
	assert.True(t, os.IsNotExist(statErr))
}

func TestConcurrencyCapQueuesSecondTask(t *testing.T) {
	content := repeatContent(256)
	srv := fixedContentServer(content, `"etag-cap"`, false, 200*time.Millisecond)
	defer srv.Close()

	e, cat := newTestEngine(t, 1)

	first, err := e.CreateTask(context.Background(), task.CreateRequest{URL: srv.URL + "/a.bin"})
	require.NoError(t, err)
	second, err := e.CreateTask(context.Background(), task.CreateRequest{URL: srv.URL + "/b.bin"})
	require.NoError(t, err)

	require.NoError(t, e.Start(first.ID))
	require.NoError(t, e.Start(second.ID))

	time.Sleep(30 * time.Millisecond)
	st, err := cat.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusQueued, st.Status)

	waitForStatus(t, cat, first.ID, task.StatusCompleted, 5*time.Second)
	waitForStatus(t, cat, second.ID, task.StatusCompleted, 5*time.Second)
}

func TestRetryRestartsFailedTask(t *testing.T) {
	content := repeatContent(256)
	srv := fixedContentServer(content, `"etag-retry"`, false, 0)
	defer srv.Close()

	e, cat := newTestEngine(t, 2)

	tk, err := e.CreateTask(context.Background(), task.CreateRequest{
		URL:              srv.URL + "/retry.bin",
		ExpectedChecksum: strings.Repeat("f", 64),
		ChecksumAlgo:     task.ChecksumSHA256,
	})
	require.NoError(t, err)

	require.NoError(t, e.Start(tk.ID))
	waitForStatus(t, cat, tk.ID, task.StatusFailed, 5*time.Second)

	require.NoError(t, e.Retry(tk.ID))
	retried := waitForStatus(t, cat, tk.ID, task.StatusFailed, 5*time.Second)
	assert.Equal(t, 1, retried.RetryAttempts)
}
