package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arlofen/fetchcore/internal/core/catalog"
	"github.com/arlofen/fetchcore/internal/core/task"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause an active download",
	Long:  `Pause an active download by id. Use --all to pause every active download.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPause,
}

func init() {
	pauseCmd.Flags().Bool("all", false, "pause every active download")
}

func runPause(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("provide a download id or use --all")
	}

	e, cat, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	if all {
		tasks, err := cat.Search(catalog.Query{Statuses: []task.Status{
			task.StatusQueued, task.StatusConnecting, task.StatusDownloading,
		}})
		if err != nil {
			return err
		}
		var failed int
		for _, t := range tasks {
			if err := e.Pause(t.ID); err != nil {
				fmt.Printf("%s: %v\n", t.ID[:8], err)
				failed++
				continue
			}
			fmt.Printf("paused %s\n", t.ID[:8])
		}
		if failed > 0 {
			return fmt.Errorf("%d downloads could not be paused", failed)
		}
		return nil
	}

	id, err := resolveTaskID(cat, args[0])
	if err != nil {
		return err
	}
	if err := e.Pause(id); err != nil {
		return err
	}
	fmt.Printf("paused %s\n", shortID(id))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
