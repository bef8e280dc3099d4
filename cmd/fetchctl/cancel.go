package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:     "cancel <id>",
	Aliases: []string{"stop"},
	Short:   "Cancel a download (an active segmented download's temp files are removed)",
	Args:    cobra.ExactArgs(1),
	RunE:    runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	e, cat, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	id, err := resolveTaskID(cat, args[0])
	if err != nil {
		return err
	}
	if err := e.Cancel(id); err != nil {
		return err
	}
	fmt.Printf("cancelled %s\n", shortID(id))
	return nil
}
