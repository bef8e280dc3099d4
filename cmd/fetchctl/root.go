package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arlofen/fetchcore/internal/config"
	"github.com/arlofen/fetchcore/internal/core/catalog"
	"github.com/arlofen/fetchcore/internal/core/engine"
	"github.com/arlofen/fetchcore/internal/core/retry"
	"github.com/arlofen/fetchcore/internal/utils"
)

// Version is set via ldflags during release builds.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "fetchctl",
	Short:   "Segmented, resumable downloads from the command line",
	Long:    `fetchctl queues, tracks, and controls downloads managed by the fetchcore engine.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate("fetchctl version {{.Version}}\n")
	rootCmd.AddCommand(addCmd, lsCmd, statusCmd, pauseCmd, resumeCmd, cancelCmd, rmCmd, retryCmd, scheduleCmd)
}

// openReadCatalog opens the shared catalog for read-only commands (ls,
// status). It does not take the writer lock: SQLite already
// serializes concurrent access, and a read should never block on a
// long-running `add` in another terminal.
func openReadCatalog() (*catalog.Catalog, error) {
	if err := os.MkdirAll(config.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}
	return catalog.Open(config.CatalogPath())
}

// openEngine opens the catalog under the advisory writer lock and
// builds an Engine from persisted settings, for commands that mutate
// task state. Only one such command may run at a time; a second
// invocation fails fast rather than silently interleaving writes with
// a engine instance that doesn't know about its tasks. Callers must
// invoke the returned close func when done.
func openEngine() (e *engine.Engine, cat *catalog.Catalog, closeFn func() error, err error) {
	if err := os.MkdirAll(config.Dir(), 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("creating config dir: %w", err)
	}

	lock, ok, err := catalog.AcquireLock(config.CatalogPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("acquiring catalog lock: %w", err)
	}
	if !ok {
		return nil, nil, nil, fmt.Errorf("another fetchctl command is already modifying the catalog")
	}

	cat, err = catalog.Open(config.CatalogPath())
	if err != nil {
		lock.Release()
		return nil, nil, nil, err
	}
	closeFn = func() error {
		closeErr := cat.Close()
		lock.Release()
		return closeErr
	}

	settings, err := config.LoadSettings()
	if err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("loading settings: %w", err)
	}

	utils.CleanupLogs(settings.RetainLogFiles)

	cfg := engine.Config{
		DownloadDir:     settings.DownloadDir,
		DefaultSegments: settings.DefaultSegments,
		Retry:           retry.DefaultConfig(),
	}
	e = engine.New(cfg, cat, settings.MaxConcurrent)
	if settings.SpeedLimitBytes > 0 {
		e.SetSpeedLimit(settings.SpeedLimitBytes)
	}
	return e, cat, closeFn, nil
}

// resolveTaskID resolves a partial task ID (an unambiguous prefix) to
// its full id, mirroring the lookup a user performs by eye against
// the truncated id column ls prints.
func resolveTaskID(cat *catalog.Catalog, partial string) (string, error) {
	if len(partial) >= 36 {
		return partial, nil
	}

	tasks, err := cat.List()
	if err != nil {
		return "", err
	}

	var matches []string
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, partial) {
			matches = append(matches, t.ID)
		}
	}

	switch len(matches) {
	case 0:
		return partial, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous id prefix %q matches %d tasks", partial, len(matches))
	}
}
