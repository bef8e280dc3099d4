package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show detailed status for one download",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cat, err := openReadCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	id, err := resolveTaskID(cat, args[0])
	if err != nil {
		return err
	}
	t, err := cat.Get(id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("no download with id %q", id)
	}

	fmt.Printf("id:        %s\n", t.ID)
	fmt.Printf("url:       %s\n", t.URL)
	fmt.Printf("file:      %s\n", t.SavePath)
	fmt.Printf("status:    %s\n", t.Status)
	if t.TotalSize > 0 {
		fmt.Printf("progress:  %.1f%% (%s / %s)\n", t.Percent(), humanize.Bytes(uint64(t.Downloaded)), humanize.Bytes(uint64(t.TotalSize)))
	} else {
		fmt.Printf("progress:  %s downloaded (total size unknown)\n", humanize.Bytes(uint64(t.Downloaded)))
	}
	if t.Segmented {
		fmt.Printf("segments:  %d\n", t.Segments)
	}
	if t.Rate > 0 {
		fmt.Printf("rate:      %s/s\n", humanize.Bytes(uint64(t.Rate)))
	}
	if t.ETA != nil {
		fmt.Printf("eta:       %s\n", time.Duration(*t.ETA)*time.Second)
	}
	if t.RetryAttempts > 0 {
		fmt.Printf("retries:   %d\n", t.RetryAttempts)
	}
	if t.LastError != "" {
		fmt.Printf("error:     %s\n", t.LastError)
	}
	if t.Category != "" {
		fmt.Printf("category:  %s\n", t.Category)
	}
	fmt.Printf("created:   %s\n", t.CreatedAt.Format(time.RFC3339))
	if !t.CompletedAt.IsZero() {
		fmt.Printf("completed: %s\n", t.CompletedAt.Format(time.RFC3339))
	}
	return nil
}
