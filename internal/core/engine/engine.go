// Package engine orchestrates the URL normalizer, HTTP client, chunk
// planner, segment downloaders, resume manager, merger, and checksum
// verifier into the full task lifecycle (component C11): create,
// start, pause, resume, cancel, remove, retry.
package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arlofen/fetchcore/internal/core/catalog"
	"github.com/arlofen/fetchcore/internal/core/checksum"
	"github.com/arlofen/fetchcore/internal/core/chunk"
	"github.com/arlofen/fetchcore/internal/core/merge"
	"github.com/arlofen/fetchcore/internal/core/queue"
	"github.com/arlofen/fetchcore/internal/core/resume"
	"github.com/arlofen/fetchcore/internal/core/retry"
	"github.com/arlofen/fetchcore/internal/core/segment"
	"github.com/arlofen/fetchcore/internal/core/speedlimit"
	"github.com/arlofen/fetchcore/internal/core/speedtrack"
	"github.com/arlofen/fetchcore/internal/core/task"
	"github.com/arlofen/fetchcore/internal/network/httpclient"
	"github.com/arlofen/fetchcore/internal/network/urlnorm"
	"github.com/arlofen/fetchcore/internal/utils"
)

const tempDirPrefix = ".fc_"

// minSizeForSegments mirrors chunk.Split's own threshold; duplicated
// here (rather than exported from chunk) because strategy selection
// is an engine-level decision independent of how chunk computes
// boundaries.
const minSizeForSegments = 1 << 20

// Config carries the engine's tunables. Zero values fall back to
// sensible defaults in New.
type Config struct {
	DownloadDir     string
	DefaultSegments int
	Retry           retry.Config
	ProxyURL        string
}

// Engine is the orchestrator for every task's lifecycle.
type Engine struct {
	cfg     Config
	http    *httpclient.Client
	limiter *speedlimit.Limiter
	tracker *speedtrack.GlobalTracker
	cat     *catalog.Catalog
	queue   *queue.Manager

	mu     sync.Mutex
	active map[string]*activeTask

	subsMu sync.Mutex
	subs   []chan task.ProgressEvent
}

type activeTask struct {
	cancel   context.CancelFunc
	paused   bool
	started  time.Time
	lastEmit time.Time
}

// New constructs an Engine backed by cat for durable storage and
// bounded to maxConcurrent simultaneous active tasks.
func New(cfg Config, cat *catalog.Catalog, maxConcurrent int) *Engine {
	if cfg.DefaultSegments <= 0 {
		cfg.DefaultSegments = 8
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}

	var httpOpts []httpclient.Option
	if cfg.ProxyURL != "" {
		httpOpts = append(httpOpts, httpclient.WithProxy(cfg.ProxyURL))
	}

	return &Engine{
		cfg:     cfg,
		http:    httpclient.New(httpOpts...),
		limiter: speedlimit.New(),
		tracker: speedtrack.NewGlobal(),
		cat:     cat,
		queue:   queue.New(maxConcurrent),
		active:  make(map[string]*activeTask),
	}
}

// SetSpeedLimit configures the process-wide throughput cap. A limit of
// 0 means unlimited; it is distinct from pausing tasks.
func (e *Engine) SetSpeedLimit(bytesPerSec uint64) {
	e.limiter.SetLimit(bytesPerSec)
}

// Subscribe returns a channel of progress events for every task this
// engine manages. Delivery is best-effort: a slow subscriber may miss
// events rather than block the engine.
func (e *Engine) Subscribe() <-chan task.ProgressEvent {
	ch := make(chan task.ProgressEvent, 64)
	e.subsMu.Lock()
	e.subs = append(e.subs, ch)
	e.subsMu.Unlock()
	return ch
}

func (e *Engine) publish(ev task.ProgressEvent) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// CreateTask validates the URL, probes the server, resolves a unique
// save path and filename, decides the segmentation strategy, and
// writes the initial Queued row. It does not start the download.
func (e *Engine) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	parsed, err := urlnorm.Parse(req.URL)
	if err != nil {
		return nil, err
	}

	probe, err := e.http.Probe(ctx, parsed.String)
	if err != nil {
		return nil, err
	}

	filename := req.Filename
	if filename == "" {
		filename = probe.Filename
	}
	if filename == "" {
		// probe.Filename is never empty in practice (DetermineFilename
		// floors at "download" itself); kept as the same floor here
		// in case a future probe implementation ever returns "".
		filename = "download"
	}

	dir := req.SavePath
	if dir == "" {
		dir = e.cfg.DownloadDir
	}
	savePath, err := uniquePath(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}

	segments := req.Segments
	if segments <= 0 {
		segments = e.cfg.DefaultSegments
	}

	t := task.NewTask(req.URL, savePath)
	t.ResolvedURL = probe.FinalURL
	t.Filename = filepath.Base(savePath)
	t.TotalSize = probe.Size
	t.RangeSupported = probe.RangeSupport
	t.ETag = probe.ETag
	t.Segments = segments
	t.Segmented = shouldSegment(probe.RangeSupport, probe.Size, segments)
	t.ExpectedChecksum = req.ExpectedChecksum
	t.ChecksumAlgo = req.ChecksumAlgo
	t.Category = req.Category
	t.Priority = req.Priority
	t.MaxRetries = req.MaxRetries

	if err := t.Validate(); err != nil {
		// Segmentation preconditions unmet: fall back to single-segment
		// rather than reject the task outright.
		t.Segmented = false
	}

	if err := e.cat.Insert(t); err != nil {
		return nil, fmt.Errorf("inserting task into catalog: %w", err)
	}

	return t, nil
}

func shouldSegment(rangeSupported bool, size int64, segments int) bool {
	return rangeSupported && size >= minSizeForSegments && segments >= 2
}

// uniquePath appends " (N)" before the extension until a free path is
// found, matching the engine's unique-name policy.
func uniquePath(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; i < 1000; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", &task.FileExistsError{Path: path}
}

func tempDirFor(t *task.Task) string {
	return filepath.Join(filepath.Dir(t.SavePath), tempDirPrefix+t.ID)
}

// retryConfigFor returns the engine's default retry policy, overridden
// with the task's own MaxRetries when it set one.
func (e *Engine) retryConfigFor(t *task.Task) retry.Config {
	cfg := e.cfg.Retry
	if t.MaxRetries > 0 {
		cfg.MaxRetries = t.MaxRetries
	}
	return cfg
}

// Start runs taskID to a terminal state, either immediately (if the
// queue admits it) or once admitted from the wait list.
func (e *Engine) Start(taskID string) error {
	t, err := e.cat.Get(taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s not found", taskID)
	}

	if e.queue.Enqueue(taskID) {
		go e.runTask(t)
	} else {
		t.Status = task.StatusQueued
		e.cat.Update(t)
	}
	return nil
}

func (e *Engine) runTask(t *task.Task) {
	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.active[t.ID] = &activeTask{cancel: cancel, started: time.Now()}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.active, t.ID)
		e.mu.Unlock()
		e.tracker.Remove(t.ID)

		next, ok := e.queue.Complete(t.ID)
		if ok {
			if nt, err := e.cat.Get(next); err == nil && nt != nil {
				go e.runTask(nt)
			}
		}
	}()

	e.transition(t, task.StatusConnecting, "")

	tr := e.tracker.For(t.ID)
	onBytes := func(n int64) {
		// Called concurrently by every segment goroutine in the
		// multi-segment path, so the counter must be atomic rather
		// than a plain +=.
		atomic.AddInt64(&t.Downloaded, n)
		tr.Add(n)
		e.maybeEmitProgress(t, tr)
	}

	var runErr error
	if t.Segmented {
		runErr = e.runMultiSegment(ctx, t, onBytes)
	} else {
		runErr = e.runSingleSegment(ctx, t, onBytes)
	}

	e.finish(t, runErr)
}

func (e *Engine) finish(t *task.Task, err error) {
	switch {
	case err == nil:
		e.transition(t, task.StatusCompleted, "")
		t.CompletedAt = time.Now()
		e.cat.Update(t)
	case isCancelled(err):
		e.mu.Lock()
		at, ok := e.active[t.ID]
		paused := ok && at.paused
		e.mu.Unlock()
		if paused {
			e.transition(t, task.StatusPaused, "")
		} else {
			e.transition(t, task.StatusCancelled, "")
			os.RemoveAll(tempDirFor(t))
		}
	default:
		t.LastError = err.Error()
		e.transition(t, task.StatusFailed, err.Error())
	}
}

func isCancelled(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*task.CancelledError)
	return ok
}

func (e *Engine) transition(t *task.Task, status task.Status, lastError string) {
	t.Status = status
	t.LastError = lastError
	e.cat.Update(t)
	e.publish(t.ToProgressEvent())
}

// maybeEmitProgress emits at most every 200ms per task, bounding
// emission to <=5/s as required. The whole check-and-emit body runs
// under e.mu, since t.Rate/t.ETA and the ToProgressEvent snapshot
// below are otherwise written and read by whichever segment goroutine
// happens to win the 200ms gate, same as the downloaded counter in
// onBytes.
func (e *Engine) maybeEmitProgress(t *task.Task, tr *speedtrack.Tracker) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, ok := e.active[t.ID]
	if !ok {
		return
	}
	now := time.Now()
	if now.Sub(at.lastEmit) < 200*time.Millisecond {
		return
	}
	at.lastEmit = now

	t.Rate = tr.Rate()
	if t.TotalSize >= 0 {
		t.ETA = tr.ETA(t.TotalSize - atomic.LoadInt64(&t.Downloaded))
	}
	e.publish(t.ToProgressEvent())
}

// ---------------- single-segment path ----------------

func (e *Engine) runSingleSegment(ctx context.Context, t *task.Task, onBytes func(int64)) error {
	e.transition(t, task.StatusDownloading, "")

	var resumeFrom int64
	if info, err := os.Stat(t.SavePath); err == nil {
		resumeFrom = info.Size()
		t.Downloaded = resumeFrom
	}

	err := retry.Run(ctx, e.retryConfigFor(t), "single-segment", func(ctx context.Context) error {
		return e.streamSingleSegment(ctx, t, resumeFrom, onBytes)
	})
	if err != nil {
		return err
	}

	return e.verifyIfRequested(t)
}

func (e *Engine) streamSingleSegment(ctx context.Context, t *task.Task, resumeFrom int64, onBytes func(int64)) error {
	var resp *http.Response
	var err error

	if resumeFrom > 0 {
		resp, err = e.http.FetchResume(ctx, t.ResolvedURL, resumeFrom)
	} else {
		resp, err = e.http.FetchFull(ctx, t.ResolvedURL)
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if resp.StatusCode == http.StatusPartialContent {
		flags |= os.O_APPEND
	} else {
		// server refused resume (200): truncate and start over
		flags |= os.O_TRUNC
		resumeFrom = 0
		t.Downloaded = 0
	}

	f, err := os.OpenFile(t.SavePath, flags, 0o644)
	if err != nil {
		return &task.FileError{Path: t.SavePath, Err: err}
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			f.Sync()
			return &task.CancelledError{}
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			e.limiter.Throttle(uint64(n))
			if _, werr := f.Write(buf[:n]); werr != nil {
				return &task.FileError{Path: t.SavePath, Err: werr}
			}
			onBytes(int64(n))
		}
		if readErr == io.EOF {
			return f.Sync()
		}
		if readErr != nil {
			return &task.NetworkError{Op: "single-segment-read", Err: readErr}
		}
	}
}

// ---------------- multi-segment path ----------------

type segmentFetcher struct {
	client *httpclient.Client
}

func (f *segmentFetcher) FetchRange(ctx context.Context, url string, start, end int64) (io.ReadCloser, error) {
	resp, err := f.client.FetchRange(ctx, url, start, end)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (e *Engine) runMultiSegment(ctx context.Context, t *task.Task, onBytes func(int64)) error {
	e.transition(t, task.StatusDownloading, "")

	tempDir := tempDirFor(t)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return &task.FileError{Path: tempDir, Err: err}
	}

	if rec, _ := resume.Load(tempDir); rec != nil && !resume.Valid(rec, t.ETag) {
		utils.Debug("task %s: etag changed, discarding stale resume state", t.ID)
		os.RemoveAll(tempDir)
		os.MkdirAll(tempDir, 0o755)
	}

	segmentCount := len(chunk.Split(t.TotalSize, t.Segments))
	existing := resume.SegmentSizes(tempDir, segmentCount)
	segments := chunk.SplitForResume(t.TotalSize, t.Segments, existing)

	resume.Save(tempDir, &task.ResumeRecord{
		TaskID:    t.ID,
		URL:       t.ResolvedURL,
		SavePath:  t.SavePath,
		TotalSize: t.TotalSize,
		ETag:      t.ETag,
		CreatedAt: t.CreatedAt,
	})

	downloader := segment.New(&segmentFetcher{client: e.http}, e.limiter)
	downloader.Retry = e.retryConfigFor(t)

	var wg sync.WaitGroup
	errs := make([]error, len(segments))
	for i, seg := range segments {
		wg.Add(1)
		go func(i int, seg task.Segment) {
			defer wg.Done()
			segPath := filepath.Join(tempDir, fmt.Sprintf("segment_%d", seg.ID))
			errs[i] = downloader.Download(ctx, t.ResolvedURL, seg, segPath, onBytes)
		}(i, seg)
	}
	wg.Wait()

	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if isCancelled(err) {
			return &task.CancelledError{}
		}
		if firstErr == nil {
			firstErr = &task.SegmentFailedError{SegmentID: segments[i].ID, Err: err}
		}
	}
	if firstErr != nil {
		return firstErr
	}

	e.transition(t, task.StatusMerging, "")
	expected := t.TotalSize
	if expected < 0 {
		expected = -1
	}
	if _, err := merge.Merge(tempDir, t.SavePath, segments, expected); err != nil {
		return err
	}

	resume.Delete(tempDir)
	os.RemoveAll(tempDir)

	return e.verifyIfRequested(t)
}

func (e *Engine) verifyIfRequested(t *task.Task) error {
	if t.ExpectedChecksum == "" {
		return nil
	}
	e.transition(t, task.StatusVerifying, "")

	ok, err := checksum.Verify(t.SavePath, t.ExpectedChecksum, t.ChecksumAlgo)
	if err != nil {
		return err
	}
	if !ok {
		t.ComputedChecksum, _ = checksum.Calculate(t.SavePath, t.ChecksumAlgo)
		return &task.ChecksumMismatchError{Expected: t.ExpectedChecksum, Actual: t.ComputedChecksum}
	}
	t.ComputedChecksum = t.ExpectedChecksum
	return nil
}

// ---------------- lifecycle operations ----------------

// Pause triggers the task's cancellation signal and transitions it to
// Paused. Temp files are preserved for a later Resume.
func (e *Engine) Pause(taskID string) error {
	e.mu.Lock()
	at, ok := e.active[taskID]
	if ok {
		at.paused = true
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("task %s is not active", taskID)
	}
	at.cancel()
	return nil
}

// Resume re-invokes Start using the task's on-disk resume state.
func (e *Engine) Resume(taskID string) error {
	return e.Start(taskID)
}

// Cancel triggers cancellation and marks the task Cancelled. For an
// active task, the worker removes its temp directory once it observes
// cancellation; a task that is not active is only marked Cancelled in
// the catalog, and its files are left as they are.
func (e *Engine) Cancel(taskID string) error {
	e.mu.Lock()
	at, ok := e.active[taskID]
	e.mu.Unlock()

	if ok {
		at.cancel()
		return nil
	}

	t, err := e.cat.Get(taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s not found", taskID)
	}
	t.Status = task.StatusCancelled
	return e.cat.Update(t)
}

// Remove cancels the task if active, optionally deletes its output
// file, and removes the catalog row.
func (e *Engine) Remove(taskID string, deleteFile bool) error {
	e.mu.Lock()
	at, ok := e.active[taskID]
	e.mu.Unlock()
	if ok {
		at.cancel()
	}

	t, err := e.cat.Get(taskID)
	if err != nil {
		return err
	}
	if t != nil {
		os.RemoveAll(tempDirFor(t))
		if deleteFile {
			os.Remove(t.SavePath)
		}
	}

	if nextID, admitted := e.queue.Remove(taskID); admitted {
		if nt, err := e.cat.Get(nextID); err == nil && nt != nil {
			go e.runTask(nt)
		}
	}

	return e.cat.Delete(taskID)
}

// Retry re-invokes Start on a Failed, Cancelled, or Paused task.
func (e *Engine) Retry(taskID string) error {
	t, err := e.cat.Get(taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s not found", taskID)
	}
	if !t.Status.IsResumable() {
		return fmt.Errorf("task %s in status %s cannot be retried", taskID, t.Status)
	}
	t.RetryAttempts++
	if err := e.cat.Update(t); err != nil {
		return err
	}
	return e.Start(taskID)
}
