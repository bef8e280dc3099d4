// Package resume persists and restores per-segment download progress
// next to the target file (component C8), surviving process crashes.
package resume

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/arlofen/fetchcore/internal/core/task"
)

const recordFilename = "resume.json"

// record is the on-disk JSON shape. Field names are kept stable
// across versions since this file is read by future process runs.
type record struct {
	TaskID    string                   `json:"task_id"`
	URL       string                   `json:"url"`
	SavePath  string                   `json:"save_path"`
	TotalSize int64                    `json:"total_size"`
	Segments  []task.SegmentResumeData `json:"segments"`
	ETag      string                   `json:"etag"`
	CreatedAt int64                    `json:"created_at"` // unix seconds
}

// Save writes r to the resume.json file inside tempDir, overwriting any
// previous record. Writes happen via a temp-file-then-rename so a
// crash mid-write never leaves a corrupt record.
func Save(tempDir string, r *task.ResumeRecord) error {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return &task.FileError{Path: tempDir, Err: err}
	}

	on := record{
		TaskID:    r.TaskID,
		URL:       r.URL,
		SavePath:  r.SavePath,
		TotalSize: r.TotalSize,
		Segments:  r.Segments,
		ETag:      r.ETag,
		CreatedAt: r.CreatedAt.Unix(),
	}

	data, err := json.MarshalIndent(on, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(tempDir, recordFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &task.FileError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &task.FileError{Path: path, Err: err}
	}
	return nil
}

// Load reads the resume record from tempDir, returning nil with no
// error if it does not exist.
func Load(tempDir string) (*task.ResumeRecord, error) {
	path := filepath.Join(tempDir, recordFilename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &task.FileError{Path: path, Err: err}
	}

	var on record
	if err := json.Unmarshal(data, &on); err != nil {
		return nil, &task.FileError{Path: path, Err: err}
	}

	return &task.ResumeRecord{
		TaskID:    on.TaskID,
		URL:       on.URL,
		SavePath:  on.SavePath,
		TotalSize: on.TotalSize,
		Segments:  on.Segments,
		ETag:      on.ETag,
		CreatedAt: time.Unix(on.CreatedAt, 0),
	}, nil
}

// HasResumeData reports whether a resume record exists for tempDir.
func HasResumeData(tempDir string) bool {
	_, err := os.Stat(filepath.Join(tempDir, recordFilename))
	return err == nil
}

// SegmentSizes returns the on-disk byte length of each segment_i file
// in tempDir for i in [0, n). Stat-ed sizes are the authoritative
// source of truth; the JSON record is a best-effort convenience and
// disagreements are resolved in favor of what is actually on disk.
func SegmentSizes(tempDir string, n int) []int64 {
	sizes := make([]int64, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(tempDir, segmentFilename(i))
		if info, err := os.Stat(path); err == nil {
			sizes[i] = info.Size()
		}
	}
	return sizes
}

// Delete removes the resume record. Called after a successful merge.
func Delete(tempDir string) error {
	err := os.Remove(filepath.Join(tempDir, recordFilename))
	if err != nil && !os.IsNotExist(err) {
		return &task.FileError{Path: tempDir, Err: err}
	}
	return nil
}

// Valid reports whether a previously saved record is still safe to
// resume against, given the server's current entity tag. An empty
// serverETag (server does not send one) is treated as "cannot verify,
// trust the resume" since the original implementation's resume path
// only distrusts state when it has positive evidence the resource
// changed.
func Valid(r *task.ResumeRecord, serverETag string) bool {
	if r == nil {
		return false
	}
	if serverETag == "" || r.ETag == "" {
		return true
	}
	return r.ETag == serverETag
}

func segmentFilename(i int) string {
	return "segment_" + strconv.Itoa(i)
}
