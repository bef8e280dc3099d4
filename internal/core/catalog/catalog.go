// Package catalog is the durable, crash-safe store of task records
// (component C13): insert/update/query, surviving process restarts.
// It is realized over database/sql and the pure-Go modernc.org/sqlite
// driver, following the upsert-on-conflict idiom of
// surge/internal/download/state/state.go.
package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arlofen/fetchcore/internal/core/task"
)

// Catalog is a single-writer, crash-safe store of task records.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer serializable store

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Insert writes a new task row, or upserts over an existing row with
// the same id.
func (c *Catalog) Insert(t *task.Task) error {
	return c.Update(t)
}

// Update upserts the task's current state into the catalog. Writes
// are flushed (committed) before returning, satisfying the durability
// requirement across process crashes.
func (c *Catalog) Update(t *task.Task) error {
	row := t.ToCatalogRow()
	return c.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO tasks (
				id, url, resolved_url, save_path, filename, total_size, downloaded,
				segments, range_supported, etag, segmented, status,
				expected_checksum, checksum_algo, computed_checksum,
				last_error, retry_attempts, max_retries, created_at, completed_at, priority, category
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				url=excluded.url,
				resolved_url=excluded.resolved_url,
				save_path=excluded.save_path,
				filename=excluded.filename,
				total_size=excluded.total_size,
				downloaded=excluded.downloaded,
				segments=excluded.segments,
				range_supported=excluded.range_supported,
				etag=excluded.etag,
				segmented=excluded.segmented,
				status=excluded.status,
				expected_checksum=excluded.expected_checksum,
				checksum_algo=excluded.checksum_algo,
				computed_checksum=excluded.computed_checksum,
				last_error=excluded.last_error,
				retry_attempts=excluded.retry_attempts,
				max_retries=excluded.max_retries,
				completed_at=excluded.completed_at,
				priority=excluded.priority,
				category=excluded.category
		`,
			row.ID, row.URL, row.ResolvedURL, row.SavePath, row.Filename, row.TotalSize, row.Downloaded,
			row.Segments, boolToInt(row.RangeSupported), row.ETag, boolToInt(row.Segmented), string(row.Status),
			row.ExpectedChecksum, string(row.ChecksumAlgo), row.ComputedChecksum,
			row.LastError, row.RetryAttempts, row.MaxRetries, row.CreatedAt.Unix(), nullableUnix(row.CompletedAt), row.Priority, row.Category,
		)
		return err
	})
}

// UpdateStatus is a narrow upsert-free update for the common case of
// a pure status transition.
func (c *Catalog) UpdateStatus(id string, status task.Status, lastError string) error {
	_, err := c.db.Exec(`UPDATE tasks SET status = ?, last_error = ? WHERE id = ?`, string(status), lastError, id)
	return err
}

// Get returns the task with the given id, or nil if not found.
func (c *Catalog) Get(id string) (*task.Task, error) {
	row := c.db.QueryRow(selectColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// Delete removes the task row with the given id.
func (c *Catalog) Delete(id string) error {
	_, err := c.db.Exec("DELETE FROM tasks WHERE id = ?", id)
	return err
}

// List returns every task row, most recently created first.
func (c *Catalog) List() ([]*task.Task, error) {
	rows, err := c.db.Query(selectColumns + " FROM tasks ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Categories returns the distinct, non-empty category tags in use.
func (c *Catalog) Categories() ([]string, error) {
	rows, err := c.db.Query(`SELECT DISTINCT category FROM tasks WHERE category IS NOT NULL AND category != '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

// sortField is a closed enumeration of columns the query builder may
// sort by. Accepting raw strings here would let query input compose
// into SQL; this type keeps that surface finite.
type sortField string

const (
	SortCreated    sortField = "created_at"
	SortFilename   sortField = "filename"
	SortSize       sortField = "total_size"
	SortDownloaded sortField = "downloaded"
	SortStatus     sortField = "status"
)

var validSortFields = map[sortField]bool{
	SortCreated: true, SortFilename: true, SortSize: true, SortDownloaded: true, SortStatus: true,
}

// Query describes a filtered, sorted, paginated catalog search.
type Query struct {
	Statuses       []task.Status
	Category       string
	SearchSubstr   string
	SortBy         sortField
	SortDescending bool
	Offset         int
	Limit          int // 0 means no limit
}

// Search runs q against the catalog.
func (c *Catalog) Search(q Query) ([]*task.Task, error) {
	var clauses []string
	var args []any

	if len(q.Statuses) > 0 {
		placeholders := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if q.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, q.Category)
	}
	if q.SearchSubstr != "" {
		clauses = append(clauses, "(filename LIKE ? OR url LIKE ?)")
		needle := "%" + q.SearchSubstr + "%"
		args = append(args, needle, needle)
	}

	sql := selectColumns + " FROM tasks"
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}

	sortBy := q.SortBy
	if !validSortFields[sortBy] {
		sortBy = SortCreated
	}
	direction := "ASC"
	if q.SortDescending {
		direction = "DESC"
	}
	sql += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)

	if q.Limit > 0 {
		sql += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := c.db.Query(sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

const selectColumns = `SELECT
	id, url, resolved_url, save_path, filename, total_size, downloaded,
	segments, range_supported, etag, segmented, status,
	expected_checksum, checksum_algo, computed_checksum,
	last_error, retry_attempts, max_retries, created_at, completed_at, priority, category`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*task.Task, error) {
	var row task.CatalogRow
	var rangeSupported, segmented int
	var createdAtUnix int64
	var completedAtUnix sql.NullInt64
	var etag, expected, algo, computed, lastErr, resolvedURL, filename, category sql.NullString

	err := r.Scan(
		&row.ID, &row.URL, &resolvedURL, &row.SavePath, &filename, &row.TotalSize, &row.Downloaded,
		&row.Segments, &rangeSupported, &etag, &segmented, &row.Status,
		&expected, &algo, &computed,
		&lastErr, &row.RetryAttempts, &row.MaxRetries, &createdAtUnix, &completedAtUnix, &row.Priority, &category,
	)
	if err != nil {
		return nil, err
	}

	row.ResolvedURL = resolvedURL.String
	row.Filename = filename.String
	row.RangeSupported = rangeSupported != 0
	row.ETag = etag.String
	row.Segmented = segmented != 0
	row.ExpectedChecksum = expected.String
	row.ChecksumAlgo = task.ChecksumAlgorithm(algo.String)
	row.ComputedChecksum = computed.String
	row.LastError = lastErr.String
	row.Category = category.String
	row.CreatedAt = time.Unix(createdAtUnix, 0)
	if completedAtUnix.Valid {
		row.CompletedAt = time.Unix(completedAtUnix.Int64, 0)
	}

	return task.FromCatalogRow(row), nil
}

func scanTasks(rows *sql.Rows) ([]*task.Task, error) {
	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
