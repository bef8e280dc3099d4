// Package task defines the shared aggregate types that every other
// core package operates on: Task, Segment, ResumeRecord, CatalogRow,
// and QueueState, plus the download status state machine.
package task

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the download state machine defined by the engine.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusConnecting  Status = "connecting"
	StatusDownloading Status = "downloading"
	StatusMerging     Status = "merging"
	StatusVerifying   Status = "verifying"
	StatusCompleted   Status = "completed"
	StatusPaused      Status = "paused"
	StatusCancelled   Status = "cancelled"
	StatusFailed      Status = "failed"
)

// IsActive reports whether a task in this status is being worked on by
// the engine (holds a cancellation signal and a worker goroutine).
func (s Status) IsActive() bool {
	switch s {
	case StatusConnecting, StatusDownloading, StatusMerging, StatusVerifying:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further mutation
// except deletion (invariant 2).
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsResumable reports whether a task parked in this status can be
// restarted from its on-disk resume state without discarding progress.
func (s Status) IsResumable() bool {
	return s == StatusPaused || s == StatusFailed || s == StatusCancelled
}

// ChecksumAlgorithm identifies a supported integrity hash.
type ChecksumAlgorithm string

const (
	ChecksumMD5    ChecksumAlgorithm = "md5"
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
	ChecksumCRC32  ChecksumAlgorithm = "crc32"
)

// Task is the aggregate root: one per user-visible download.
type Task struct {
	ID string

	URL         string // original, as requested
	ResolvedURL string // after following redirects

	SavePath string // absolute destination path
	Filename string

	TotalSize      int64 // -1 when unknown
	Downloaded     int64
	Segments       int // requested segment count, 1-32
	RangeSupported bool
	ETag           string

	Segmented bool

	Rate float64 // bytes/s, derived, not persisted authoritatively
	ETA  *int64  // seconds, optional

	Status Status

	ExpectedChecksum string
	ChecksumAlgo     ChecksumAlgorithm
	ComputedChecksum string

	LastError     string
	RetryAttempts int
	MaxRetries    int // 0 means use the engine default

	CreatedAt   time.Time
	CompletedAt time.Time

	Priority int
	Category string
}

// NewTask constructs a Task with a fresh identity and Queued status.
func NewTask(url, savePath string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		URL:       url,
		SavePath:  savePath,
		TotalSize: -1,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
}

// Validate enforces the cheaply checkable invariants from the data
// model: downloaded never exceeds a known total, and a segmented task
// satisfies the segmentation precondition.
func (t *Task) Validate() error {
	if t.TotalSize >= 0 && t.Downloaded > t.TotalSize {
		return fmt.Errorf("task %s: downloaded %d exceeds total %d", t.ID, t.Downloaded, t.TotalSize)
	}
	if t.Segmented {
		if t.Segments < 2 || !t.RangeSupported || t.TotalSize < 1<<20 {
			return fmt.Errorf("task %s: segmented=true but preconditions unmet", t.ID)
		}
	}
	return nil
}

// Percent returns completion in [0, 100]; 0 when total is unknown.
// Downloaded is read atomically: a multi-segment task's counter is
// written concurrently by every segment goroutine (see engine.onBytes).
func (t *Task) Percent() float64 {
	if t.TotalSize <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&t.Downloaded)) / float64(t.TotalSize) * 100
}

// Segment is one contiguous byte range owned by a segmented Task.
type Segment struct {
	ID         int
	Start      int64
	End        int64 // inclusive
	Downloaded int64
	Terminal   bool
}

// Size returns the segment's declared byte length.
func (s Segment) Size() int64 {
	return s.End - s.Start + 1
}

// SegmentResumeData is the per-segment slice persisted in a ResumeRecord.
type SegmentResumeData struct {
	SegmentID  int
	Start      int64
	End        int64
	Downloaded int64
	Completed  bool
}

// ResumeRecord is the sibling on-disk file capturing per-segment
// progress for crash recovery. It is persisted next to the segment
// temp files, never inside the catalog.
type ResumeRecord struct {
	TaskID    string
	URL       string
	SavePath  string
	TotalSize int64
	Segments  []SegmentResumeData
	ETag      string
	CreatedAt time.Time
}

// CatalogRow is the flattened, durable-store projection of a Task.
type CatalogRow struct {
	ID               string
	URL              string
	ResolvedURL      string
	SavePath         string
	Filename         string
	TotalSize        int64
	Downloaded       int64
	Segments         int
	RangeSupported   bool
	ETag             string
	Segmented        bool
	Status           Status
	ExpectedChecksum string
	ChecksumAlgo     ChecksumAlgorithm
	ComputedChecksum string
	LastError        string
	RetryAttempts    int
	MaxRetries       int
	CreatedAt        time.Time
	CompletedAt      time.Time
	Priority         int
	Category         string
}

// ToCatalogRow flattens a Task for durable storage.
func (t *Task) ToCatalogRow() CatalogRow {
	return CatalogRow{
		ID:               t.ID,
		URL:              t.URL,
		ResolvedURL:      t.ResolvedURL,
		SavePath:         t.SavePath,
		Filename:         t.Filename,
		TotalSize:        t.TotalSize,
		Downloaded:       t.Downloaded,
		Segments:         t.Segments,
		RangeSupported:   t.RangeSupported,
		ETag:             t.ETag,
		Segmented:        t.Segmented,
		Status:           t.Status,
		ExpectedChecksum: t.ExpectedChecksum,
		ChecksumAlgo:     t.ChecksumAlgo,
		ComputedChecksum: t.ComputedChecksum,
		LastError:        t.LastError,
		RetryAttempts:    t.RetryAttempts,
		MaxRetries:       t.MaxRetries,
		CreatedAt:        t.CreatedAt,
		CompletedAt:      t.CompletedAt,
		Priority:         t.Priority,
		Category:         t.Category,
	}
}

// FromCatalogRow rebuilds a Task from its durable-store projection.
func FromCatalogRow(r CatalogRow) *Task {
	return &Task{
		ID:               r.ID,
		URL:              r.URL,
		ResolvedURL:      r.ResolvedURL,
		SavePath:         r.SavePath,
		Filename:         r.Filename,
		TotalSize:        r.TotalSize,
		Downloaded:       r.Downloaded,
		Segments:         r.Segments,
		RangeSupported:   r.RangeSupported,
		ETag:             r.ETag,
		Segmented:        r.Segmented,
		Status:           r.Status,
		ExpectedChecksum: r.ExpectedChecksum,
		ChecksumAlgo:     r.ChecksumAlgo,
		ComputedChecksum: r.ComputedChecksum,
		LastError:        r.LastError,
		RetryAttempts:    r.RetryAttempts,
		MaxRetries:       r.MaxRetries,
		CreatedAt:        r.CreatedAt,
		CompletedAt:      r.CompletedAt,
		Priority:         r.Priority,
		Category:         r.Category,
	}
}

// ProgressEvent is the payload emitted to progress-event subscribers.
type ProgressEvent struct {
	ID         string
	Downloaded int64
	Total      int64 // -1 when unknown
	Rate       float64
	ETA        *int64
	Status     Status
	Percent    float64
	Error      string
}

// ToProgressEvent snapshots a Task into its wire-shaped progress event.
func (t *Task) ToProgressEvent() ProgressEvent {
	return ProgressEvent{
		ID:         t.ID,
		Downloaded: atomic.LoadInt64(&t.Downloaded),
		Total:      t.TotalSize,
		Rate:       t.Rate,
		ETA:        t.ETA,
		Status:     t.Status,
		Percent:    t.Percent(),
		Error:      t.LastError,
	}
}

// QueueState is the in-memory snapshot of the queue/concurrency manager.
type QueueState struct {
	Waiting []string
	Active  []string
	Cap     int
}

// CreateRequest is the input to Engine.CreateTask.
type CreateRequest struct {
	URL              string
	SavePath         string // optional explicit destination directory
	Filename         string // optional override
	Segments         int    // optional override, default from config
	MaxRetries       int
	ExpectedChecksum string
	ChecksumAlgo     ChecksumAlgorithm
	Category         string
	Priority         int
}
