package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arlofen/fetchcore/internal/core/engine"
	"github.com/arlofen/fetchcore/internal/core/task"
	"github.com/arlofen/fetchcore/internal/tui"
)

var addCmd = &cobra.Command{
	Use:   "add <url> [url...]",
	Short: "Queue one or more downloads",
	Long: `Queue one or more downloads and block, printing progress, until
every one of them reaches a terminal state. fetchctl has no resident
daemon, so the process must stay alive for its downloads to run;
Ctrl+C pauses them in place (preserving resume state) instead of
leaving them half-written.`,
	Args: cobra.ArbitraryArgs,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringP("output", "o", "", "destination directory (overrides the configured default)")
	addCmd.Flags().String("filename", "", "override the resolved filename (only valid with a single url)")
	addCmd.Flags().IntP("segments", "s", 0, "segment count override (0 uses the configured default)")
	addCmd.Flags().String("batch", "", "file of URLs to queue, one per line (# comments allowed)")
	addCmd.Flags().String("checksum", "", "expected checksum the completed file must match")
	addCmd.Flags().String("algo", "sha256", "checksum algorithm: sha256, md5, or crc32")
	addCmd.Flags().String("category", "", "category tag for grouping in ls")
	addCmd.Flags().Int("priority", 0, "priority stored with the task (the wait list stays FIFO and ls does not sort by it)")
	addCmd.Flags().Int("max-retries", 0, "per-task retry override (0 uses the engine default)")
	addCmd.Flags().Bool("quiet", false, "suppress per-download progress lines")
	addCmd.Flags().Bool("tui", false, "show a live progress dashboard instead of plain progress lines")
}

func readURLsFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, scanner.Err()
}

func runAdd(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	filename, _ := cmd.Flags().GetString("filename")
	segments, _ := cmd.Flags().GetInt("segments")
	batch, _ := cmd.Flags().GetString("batch")
	checksum, _ := cmd.Flags().GetString("checksum")
	algo, _ := cmd.Flags().GetString("algo")
	category, _ := cmd.Flags().GetString("category")
	priority, _ := cmd.Flags().GetInt("priority")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	quiet, _ := cmd.Flags().GetBool("quiet")
	useTUI, _ := cmd.Flags().GetBool("tui")

	var urls []string
	if batch != "" {
		fileURLs, err := readURLsFromFile(batch)
		if err != nil {
			return err
		}
		urls = append(urls, fileURLs...)
	}
	urls = append(urls, args...)
	if len(urls) == 0 {
		return fmt.Errorf("requires at least one url argument, or --batch")
	}
	if filename != "" && len(urls) > 1 {
		return fmt.Errorf("--filename only applies to a single url")
	}

	e, cat, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	sub := e.Subscribe()

	queued := make(map[string]bool, len(urls))
	filenames := make(map[string]string, len(urls))
	for _, u := range urls {
		req := task.CreateRequest{
			URL:              u,
			SavePath:         output,
			Filename:         filename,
			Segments:         segments,
			MaxRetries:       maxRetries,
			ExpectedChecksum: checksum,
			ChecksumAlgo:     task.ChecksumAlgorithm(algo),
			Category:         category,
			Priority:         priority,
		}
		t, err := e.CreateTask(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", u, err)
			continue
		}
		if err := e.Start(t.ID); err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", u, err)
			continue
		}
		if !useTUI {
			fmt.Printf("queued %s (%s)\n", t.ID[:8], t.Filename)
		}
		queued[t.ID] = true
		filenames[t.ID] = t.Filename
	}
	if len(queued) == 0 {
		return fmt.Errorf("no downloads could be queued")
	}

	if useTUI {
		return runAddTUI(e, queued, filenames, sub)
	}

	go pauseOnInterrupt(e, queued)
	return waitForCompletion(cat, sub, queued, quiet)
}

// runAddTUI drives the bubbletea dashboard instead of the plain
// progress lines; ctrl+c/q inside it pauses every owned task in place,
// same as pauseOnInterrupt does for the plain-text path.
func runAddTUI(e *engine.Engine, queued map[string]bool, filenames map[string]string, sub <-chan task.ProgressEvent) error {
	ids := make([]string, 0, len(queued))
	for id := range queued {
		ids = append(ids, id)
	}
	onQuit := func() {
		for _, id := range ids {
			e.Pause(id)
		}
	}
	return tui.Run(ids, filenames, sub, onQuit)
}

// pauseOnInterrupt pauses every id in ids (best-effort; ids already
// finished are simply not active and Pause returns an error we
// ignore) on SIGINT/SIGTERM, so a Ctrl+C during add leaves resumable
// state on disk instead of a half-written file with no record of it.
func pauseOnInterrupt(e *engine.Engine, ids map[string]bool) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Fprintln(os.Stderr, "\npausing...")
	for id := range ids {
		e.Pause(id)
	}
}

// waitForCompletion prints progress for the given task ids as events
// arrive on sub, returning once every one of them has reached a
// terminal or paused status. It relies on the catalog as the source
// of truth for completion (sub is best-effort and may drop events
// under load) and on sub purely for a responsive progress line.
func waitForCompletion(cat interface {
	Get(id string) (*task.Task, error)
}, sub <-chan task.ProgressEvent, ids map[string]bool, quiet bool) error {
	lastPrint := make(map[string]time.Time)
	failed := 0
	total := len(ids)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for len(ids) > 0 {
		select {
		case ev, ok := <-sub:
			if !ok {
				sub = nil
				continue
			}
			if !ids[ev.ID] {
				continue
			}
			if isDone(ev.Status) {
				if !quiet {
					printFinal(ev)
				}
				delete(ids, ev.ID)
				if ev.Status == task.StatusFailed {
					failed++
				}
				continue
			}
			if !quiet && time.Since(lastPrint[ev.ID]) >= time.Second {
				lastPrint[ev.ID] = time.Now()
				printProgress(ev)
			}
		case <-ticker.C:
			for id := range ids {
				t, err := cat.Get(id)
				if err != nil || t == nil {
					continue
				}
				if isDone(t.Status) {
					if !quiet {
						printFinal(t.ToProgressEvent())
					}
					delete(ids, id)
					if t.Status == task.StatusFailed {
						failed++
					}
				}
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, total)
	}
	return nil
}

func isDone(s task.Status) bool {
	return s.IsTerminal() || s == task.StatusFailed || s == task.StatusPaused
}

func printProgress(ev task.ProgressEvent) {
	short := ev.ID
	if len(short) > 8 {
		short = short[:8]
	}
	if ev.Total > 0 {
		fmt.Printf("%s  %5.1f%%  %s/s  %s\n", short, ev.Percent, humanize.Bytes(uint64(ev.Rate)), ev.Status)
	} else {
		fmt.Printf("%s  %s downloaded  %s\n", short, humanize.Bytes(uint64(ev.Downloaded)), ev.Status)
	}
}

func printFinal(ev task.ProgressEvent) {
	short := ev.ID
	if len(short) > 8 {
		short = short[:8]
	}
	switch ev.Status {
	case task.StatusCompleted:
		fmt.Printf("%s  completed  %s\n", short, humanize.Bytes(uint64(ev.Downloaded)))
	case task.StatusFailed:
		fmt.Printf("%s  failed: %s\n", short, ev.Error)
	default:
		fmt.Printf("%s  %s\n", short, ev.Status)
	}
}
