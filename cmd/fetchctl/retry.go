package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Retry a failed, paused, or cancelled download from its resume state",
	Long: `Retry restarts the download from its existing resume state and
blocks until it reaches a terminal state, since fetchctl has no
resident process to carry the download after this one exits.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func runRetry(cmd *cobra.Command, args []string) error {
	e, cat, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	id, err := resolveTaskID(cat, args[0])
	if err != nil {
		return err
	}

	sub := e.Subscribe()
	if err := e.Retry(id); err != nil {
		return err
	}
	fmt.Printf("retrying %s\n", shortID(id))
	return waitForCompletion(cat, sub, map[string]bool{id: true}, false)
}
