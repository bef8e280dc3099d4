package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arlofen/fetchcore/internal/config"
)

var (
	debugMu   sync.Mutex
	debugDir  string
	debugFile *os.File
)

// ConfigureDebug redirects the debug log directory. Intended for tests;
// production code relies on the config.GetLogsDir() default.
func ConfigureDebug(dir string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	if debugFile != nil {
		debugFile.Close()
		debugFile = nil
	}
	debugDir = dir
}

func currentDebugDir() string {
	debugMu.Lock()
	dir := debugDir
	debugMu.Unlock()
	if dir != "" {
		return dir
	}
	return config.GetLogsDir()
}

// Debug writes a timestamped, printf-formatted line to the current
// debug log file, creating it lazily on first use.
func Debug(format string, args ...any) {
	debugMu.Lock()
	defer debugMu.Unlock()

	dir := debugDir
	if dir == "" {
		dir = config.GetLogsDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}

	if debugFile == nil {
		name := fmt.Sprintf("debug-%s.log", time.Now().Format("20060102-150405"))
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		debugFile = f
	}

	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(debugFile, "[%s] %s\n", time.Now().Format(time.RFC3339), msg)
}

// CleanupLogs removes all but the keep newest debug log files in the
// current log directory.
func CleanupLogs(keep int) {
	dir := currentDebugDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type logFile struct {
		name    string
		modTime time.Time
	}
	var logs []logFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) < len("debug-.log") || name[:6] != "debug-" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		logs = append(logs, logFile{name: name, modTime: info.ModTime()})
	}

	if len(logs) <= keep {
		return
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].modTime.After(logs[j].modTime)
	})

	for _, lf := range logs[keep:] {
		os.Remove(filepath.Join(dir, lf.name))
	}
}
