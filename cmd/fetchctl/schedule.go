package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arlofen/fetchcore/internal/core/scheduler"
	"github.com/arlofen/fetchcore/internal/core/task"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <url>",
	Short: "Queue a download to start at a future time, optionally repeating",
	Long: `schedule defers a download's start until --at, using the same
scheduler a resident daemon would use to fire deferred and repeating
jobs. fetchctl has no resident daemon, so the process stays alive
waiting for the schedule to fire instead of exiting immediately;
Ctrl+C before the first fire cancels the pending task, and Ctrl+C
between repeats stops further repeats without touching a download
already in progress.

--at accepts RFC3339 ("2026-08-01T10:00:00Z") or a duration from now
("+90m", "+24h"). --every repeats the fetch on that cadence (hourly,
daily, weekly, monthly, or a Go duration like "6h"), queuing a fresh
download each time it fires rather than restarting the same one.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().String("at", "", "when to start: RFC3339 time or +duration from now (required)")
	scheduleCmd.Flags().String("every", "", "repeat cadence: hourly, daily, weekly, monthly, or a duration")
	scheduleCmd.Flags().StringP("output", "o", "", "destination directory (overrides the configured default)")
	scheduleCmd.Flags().String("filename", "", "override the resolved filename")
	scheduleCmd.Flags().IntP("segments", "s", 0, "segment count override (0 uses the configured default)")
	scheduleCmd.Flags().String("checksum", "", "expected checksum the completed file must match")
	scheduleCmd.Flags().String("algo", "sha256", "checksum algorithm: sha256, md5, or crc32")
	scheduleCmd.Flags().String("category", "", "category tag for grouping in ls")
	scheduleCmd.Flags().Int("priority", 0, "queue priority")
	scheduleCmd.Flags().Int("max-retries", 0, "per-task retry override (0 uses the engine default)")
	scheduleCmd.Flags().Bool("quiet", false, "suppress per-download progress lines")
}

func parseAt(s string) (time.Time, error) {
	if strings.HasPrefix(s, "+") {
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --at duration %q: %w", s, err)
		}
		return time.Now().Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at time %q: use RFC3339 or +duration", s)
	}
	return t, nil
}

func parseEvery(s string) (scheduler.RepeatInterval, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return scheduler.RepeatInterval{Kind: scheduler.RepeatNone}, nil
	case "hourly":
		return scheduler.RepeatInterval{Kind: scheduler.RepeatHourly}, nil
	case "daily":
		return scheduler.RepeatInterval{Kind: scheduler.RepeatDaily}, nil
	case "weekly":
		return scheduler.RepeatInterval{Kind: scheduler.RepeatWeekly}, nil
	case "monthly":
		return scheduler.RepeatInterval{Kind: scheduler.RepeatMonthly}, nil
	default:
		d, err := time.ParseDuration(s)
		if err != nil {
			return scheduler.RepeatInterval{}, fmt.Errorf("invalid --every %q: %w", s, err)
		}
		return scheduler.RepeatInterval{Kind: scheduler.RepeatCustom, Custom: d}, nil
	}
}

// runSchedule creates one task per occurrence rather than restarting a
// completed one: the scheduler's own repeat bookkeeping reschedules a
// single ScheduledTask in place, which fits a long-lived daemon, but
// each call here only ever registers a RepeatNone entry and drives the
// next occurrence itself once the previous download finishes.
func runSchedule(cmd *cobra.Command, args []string) error {
	atFlag, _ := cmd.Flags().GetString("at")
	if atFlag == "" {
		return fmt.Errorf("--at is required")
	}
	due, err := parseAt(atFlag)
	if err != nil {
		return err
	}
	everyFlag, _ := cmd.Flags().GetString("every")
	repeat, err := parseEvery(everyFlag)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	filename, _ := cmd.Flags().GetString("filename")
	segments, _ := cmd.Flags().GetInt("segments")
	checksum, _ := cmd.Flags().GetString("checksum")
	algo, _ := cmd.Flags().GetString("algo")
	category, _ := cmd.Flags().GetString("category")
	priority, _ := cmd.Flags().GetInt("priority")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	quiet, _ := cmd.Flags().GetBool("quiet")
	url := args[0]

	e, cat, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	req := task.CreateRequest{
		URL:              url,
		SavePath:         output,
		Filename:         filename,
		Segments:         segments,
		MaxRetries:       maxRetries,
		ExpectedChecksum: checksum,
		ChecksumAlgo:     task.ChecksumAlgorithm(algo),
		Category:         category,
		Priority:         priority,
	}

	sched := scheduler.New()
	sched.Start()
	defer sched.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		t, err := e.CreateTask(context.Background(), req)
		if err != nil {
			return fmt.Errorf("creating scheduled task: %w", err)
		}
		fmt.Printf("scheduled %s (%s) for %s\n", shortID(t.ID), t.Filename, due.Format(time.RFC3339))
		sched.Add(t.ID, due, scheduler.RepeatInterval{Kind: scheduler.RepeatNone})

		targetID, cancelled := waitForFire(sched, sigCh, t.ID)
		if cancelled {
			fmt.Fprintln(os.Stderr, "\ncancelled before start")
			e.Remove(t.ID, false)
			return nil
		}

		sub := e.Subscribe()
		if err := e.Start(targetID); err != nil {
			return err
		}
		if err := waitForCompletion(cat, sub, map[string]bool{targetID: true}, quiet); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}

		if repeat.Kind == scheduler.RepeatNone {
			return nil
		}
		due = time.Now().Add(repeat.ToDuration())

		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nstopping repeat")
			return nil
		default:
		}
	}
}

func waitForFire(sched *scheduler.Scheduler, sigCh <-chan os.Signal, taskID string) (targetID string, cancelled bool) {
	for {
		select {
		case fired := <-sched.Fired():
			if fired.TargetTaskID == taskID {
				return fired.TargetTaskID, false
			}
		case <-sigCh:
			return "", true
		}
	}
}
