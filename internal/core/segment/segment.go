// Package segment downloads one byte range of a task to one temp
// file (component C7): resume-aware, speed-limited, and cancellable.
package segment

import (
	"context"
	"io"
	"os"

	"github.com/arlofen/fetchcore/internal/core/retry"
	"github.com/arlofen/fetchcore/internal/core/speedlimit"
	"github.com/arlofen/fetchcore/internal/core/task"
	"github.com/arlofen/fetchcore/internal/utils"
)

// Fetcher is the capability a segment downloader needs from the HTTP
// client: a ranged GET returning a streaming response body. Segment
// depends on this narrow interface rather than a concrete client so
// it can be exercised with fakes in tests.
type Fetcher interface {
	FetchRange(ctx context.Context, url string, start, end int64) (io.ReadCloser, error)
}

const writeBufferSize = 32 * 1024

// Downloader downloads a single chunk to a temp file, resuming from
// whatever bytes are already on disk.
type Downloader struct {
	Fetcher Fetcher
	Limiter *speedlimit.Limiter
	Retry   retry.Config
}

// New returns a Downloader wired to fetcher and limiter using the
// default retry policy.
func New(fetcher Fetcher, limiter *speedlimit.Limiter) *Downloader {
	return &Downloader{Fetcher: fetcher, Limiter: limiter, Retry: retry.DefaultConfig()}
}

// OnBytes, when set, is invoked after each write with the number of
// bytes written, letting callers feed a speedtrack.Tracker without
// Downloader depending on it directly.
type OnBytes func(n int64)

// Download fetches url's chunk into tempPath, retrying transient
// failures per the configured retry policy. Downloaded bytes already
// present in tempPath are treated as a resume point: if they already
// cover the whole chunk, Download returns immediately without any
// network activity.
func (d *Downloader) Download(ctx context.Context, rawURL string, chunk task.Segment, tempPath string, onBytes OnBytes) error {
	return retry.Run(ctx, d.Retry, "segment-download", func(ctx context.Context) error {
		return d.attempt(ctx, rawURL, chunk, tempPath, onBytes)
	})
}

func (d *Downloader) attempt(ctx context.Context, rawURL string, chunk task.Segment, tempPath string, onBytes OnBytes) error {
	existing := int64(0)
	if info, err := os.Stat(tempPath); err == nil {
		existing = info.Size()
	}

	start := chunk.Start + existing
	if start > chunk.End {
		utils.Debug("segment %d already complete at %d bytes", chunk.ID, existing)
		return nil
	}

	body, err := d.Fetcher.FetchRange(ctx, rawURL, start, chunk.End)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &task.FileError{Path: tempPath, Err: err}
	}
	defer f.Close()

	buf := make([]byte, writeBufferSize)
	for {
		select {
		case <-ctx.Done():
			f.Sync()
			return &task.CancelledError{}
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if d.Limiter != nil {
				d.Limiter.Throttle(uint64(n))
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Sync()
				return &task.FileError{Path: tempPath, Err: werr}
			}
			if onBytes != nil {
				onBytes(int64(n))
			}
		}

		if readErr == io.EOF {
			if err := f.Sync(); err != nil {
				return &task.FileError{Path: tempPath, Err: err}
			}
			return nil
		}
		if readErr != nil {
			f.Sync()
			return &task.NetworkError{Op: "segment-read", Err: readErr}
		}
	}
}
