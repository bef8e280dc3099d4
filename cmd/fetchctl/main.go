// Command fetchctl is the command-line front end for the fetchcore
// download engine: queue a download, watch its progress, and control
// it (pause, resume, cancel, retry) through direct calls against the
// catalog and engine rather than through a resident daemon.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
