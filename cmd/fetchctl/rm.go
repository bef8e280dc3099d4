package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arlofen/fetchcore/internal/core/catalog"
	"github.com/arlofen/fetchcore/internal/core/task"
)

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a download from the catalog",
	Long: `Remove a download by id. The downloaded file is kept unless
--delete-file is given. Use --clean to remove every completed or
cancelled download instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRm,
}

func init() {
	rmCmd.Flags().Bool("clean", false, "remove every completed or cancelled download")
	rmCmd.Flags().Bool("delete-file", false, "also delete the downloaded file from disk")
}

func runRm(cmd *cobra.Command, args []string) error {
	clean, _ := cmd.Flags().GetBool("clean")
	deleteFile, _ := cmd.Flags().GetBool("delete-file")

	if !clean && len(args) == 0 {
		return fmt.Errorf("provide a download id or use --clean")
	}

	e, cat, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	if clean {
		tasks, err := cat.Search(catalog.Query{Statuses: []task.Status{
			task.StatusCompleted, task.StatusCancelled,
		}})
		if err != nil {
			return err
		}
		var removed int
		for _, t := range tasks {
			if err := e.Remove(t.ID, deleteFile); err != nil {
				fmt.Printf("%s: %v\n", shortID(t.ID), err)
				continue
			}
			removed++
		}
		fmt.Printf("removed %d downloads\n", removed)
		return nil
	}

	id, err := resolveTaskID(cat, args[0])
	if err != nil {
		return err
	}
	if err := e.Remove(id, deleteFile); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", shortID(id))
	return nil
}
