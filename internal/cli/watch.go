package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencmr/dicomdir/internal/catalog"
	"github.com/opencmr/dicomdir/internal/scanner"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <folder>",
	Short: "Watch a folder and keep its catalog snapshot up to date",
	Long: `Watch scans the folder, writes the snapshot, then rescans whenever files
change, rewriting the snapshot after each pass. Runs until interrupted.

Examples:
  # Keep dicomdir.json current while a scanner exports into the folder
  dicomdir watch /data/incoming

  # Quiet mode for running under a supervisor
  dicomdir watch /data/incoming --quiet
`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	watchCmd.Flags().StringVarP(&outputFlag, "output", "o", "dicomdir.json", "Snapshot output path (relative paths resolve inside the folder)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	root := args[0]
	opts, err := scanOptions(cmd, root)
	if err != nil {
		return err
	}
	outPath := snapshotPath(root, outputFlag)

	onScan := func(cat *catalog.Catalog, stats scanner.Stats) {
		if err := cat.Save(outPath); err != nil {
			log.Printf("Failed to write snapshot: %v", err)
			return
		}
		if !quietFlag {
			log.Printf("Snapshot updated: %d instances in %.2fs", cat.InstanceCount(), stats.Elapsed.Seconds())
		}
	}
	onError := func(err error) {
		log.Printf("Rescan failed: %v", err)
	}

	// Initial scan before watching so the snapshot exists right away.
	cat, stats, err := scanner.Scan(ctx, root, opts)
	if err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}
	onScan(cat, stats)

	// Rescans run without progress bars to keep watch output readable.
	opts.Reporter = nil

	w, err := scanner.NewWatcher(root, opts, onScan, onError)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	w.Start(ctx)

	if !quietFlag {
		log.Println("Watching for changes...")
	}
	<-sigChan
	fmt.Println("\nInterrupted! Stopping watch...")
	cancel()
	w.Stop()
	return nil
}
