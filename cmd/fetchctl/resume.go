package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arlofen/fetchcore/internal/core/catalog"
	"github.com/arlofen/fetchcore/internal/core/task"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused download",
	Long: `Resume a paused download by id and block until it finishes, since
fetchctl has no resident process to carry the download after this one
exits. Use --all to resume every paused download; they are all started
at once and run side by side up to the concurrency cap.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().Bool("all", false, "resume every paused download")
}

func runResume(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("provide a download id or use --all")
	}

	e, cat, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	var ids []string
	if all {
		tasks, err := cat.Search(catalog.Query{Statuses: []task.Status{task.StatusPaused}})
		if err != nil {
			return err
		}
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
	} else {
		id, err := resolveTaskID(cat, args[0])
		if err != nil {
			return err
		}
		ids = []string{id}
	}
	if len(ids) == 0 {
		fmt.Println("nothing to resume")
		return nil
	}

	sub := e.Subscribe()
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := e.Resume(id); err != nil {
			fmt.Printf("%s: %v\n", shortID(id), err)
			continue
		}
		pending[id] = true
	}
	if len(pending) == 0 {
		return fmt.Errorf("no downloads could be resumed")
	}
	return waitForCompletion(cat, sub, pending, false)
}
