package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arlofen/fetchcore/internal/core/catalog"
	"github.com/arlofen/fetchcore/internal/core/task"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List downloads",
	Long:  `List downloads tracked in the catalog, optionally filtered and sorted.`,
	RunE:  runLs,
}

type downloadInfo struct {
	ID         string  `json:"id"`
	Filename   string  `json:"filename"`
	Status     string  `json:"status"`
	Percent    float64 `json:"percent"`
	TotalSize  int64   `json:"total_size"`
	Downloaded int64   `json:"downloaded"`
	Category   string  `json:"category,omitempty"`
}

func init() {
	lsCmd.Flags().Bool("json", false, "output JSON instead of a table")
	lsCmd.Flags().Bool("watch", false, "refresh the table every second until interrupted")
	lsCmd.Flags().String("status", "", "filter by status (e.g. downloading, queued, paused, failed, completed)")
	lsCmd.Flags().String("category", "", "filter by category tag")
}

func runLs(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	watch, _ := cmd.Flags().GetBool("watch")
	status, _ := cmd.Flags().GetString("status")
	category, _ := cmd.Flags().GetString("category")

	cat, err := openReadCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	q := catalog.Query{SortBy: catalog.SortCreated, SortDescending: true}
	if status != "" {
		q.Statuses = []task.Status{task.Status(status)}
	}
	if category != "" {
		q.Category = category
	}

	for {
		tasks, err := cat.Search(q)
		if err != nil {
			return err
		}
		printDownloads(tasks, jsonOutput)

		if !watch {
			return nil
		}
		fmt.Print("\033[H\033[2J")
		time.Sleep(time.Second)
	}
}

func printDownloads(tasks []*task.Task, jsonOutput bool) {
	downloads := make([]downloadInfo, 0, len(tasks))
	for _, t := range tasks {
		downloads = append(downloads, downloadInfo{
			ID:         t.ID,
			Filename:   t.Filename,
			Status:     string(t.Status),
			Percent:    t.Percent(),
			TotalSize:  t.TotalSize,
			Downloaded: t.Downloaded,
			Category:   t.Category,
		})
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(downloads, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(downloads) == 0 {
		fmt.Println("No downloads found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tSTATUS\tPROGRESS\tSIZE")
	for _, d := range downloads {
		id := d.ID
		if len(id) > 8 {
			id = id[:8]
		}
		filename := d.Filename
		if len(filename) > 30 {
			filename = filename[:27] + "..."
		}
		size := "-"
		if d.TotalSize > 0 {
			size = humanize.Bytes(uint64(d.TotalSize))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n", id, filename, d.Status, d.Percent, size)
	}
	w.Flush()
}
