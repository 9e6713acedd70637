package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencmr/dicomdir/internal/catalog"
	"github.com/opencmr/dicomdir/internal/config"
	"github.com/opencmr/dicomdir/internal/scanner"
)

var (
	quietFlag       bool
	labelFlag       string
	singleStudyFlag bool
	outputFlag      string
	workersFlag     int
	ignoreFlag      []string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Scan a folder of DICOM files and write a catalog snapshot",
	Long: `Scan walks a folder, classifies each file as DICOM or not, extracts the
catalog tags, and folds the results into a study/series/instance catalog.

The catalog is written as a JSON snapshot next to the scanned folder's
contents (dicomdir.json by default).

Examples:
  # Scan a folder of exported exams
  dicomdir scan /data/exams

  # Scan a single-exam folder, refusing mixed studies
  dicomdir scan /data/exam01 --single-study

  # Scan without progress output
  dicomdir scan /data/exams --quiet

  # Write the snapshot somewhere else
  dicomdir scan /data/exams --output /tmp/exams.json
`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	scanCmd.Flags().StringVarP(&labelFlag, "label", "l", "", "Catalog label (defaults to the folder name)")
	scanCmd.Flags().BoolVar(&singleStudyFlag, "single-study", false, "Require all files to belong to one study")
	scanCmd.Flags().StringVarP(&outputFlag, "output", "o", "dicomdir.json", "Snapshot output path (relative paths resolve inside the folder)")
	scanCmd.Flags().IntVar(&workersFlag, "workers", 0, "Parallel extraction workers (0 uses all CPUs)")
	scanCmd.Flags().StringSliceVar(&ignoreFlag, "ignore", nil, "Additional glob patterns to skip")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted! Cancelling scan...")
		cancel()
	}()

	root := args[0]
	opts, err := scanOptions(cmd, root)
	if err != nil {
		return err
	}

	cat, stats, err := scanner.Scan(ctx, root, opts)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("scan cancelled")
		}
		if errors.Is(err, scanner.ErrMultipleStudies) {
			return fmt.Errorf("folder contains more than one study: %w", err)
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	outPath := snapshotPath(root, outputFlag)
	if err := cat.Save(outPath); err != nil {
		return err
	}

	if quietFlag {
		fmt.Printf("Scan complete: %d instances in %.2fs\n",
			cat.InstanceCount(), stats.Elapsed.Seconds())
	} else {
		fmt.Printf("Snapshot written to %s\n", outPath)
	}
	return nil
}

// scanOptions layers configuration and flags: defaults, then the folder's
// .dicomdir config, then explicitly set flags.
func scanOptions(cmd *cobra.Command, root string) (scanner.Options, error) {
	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return scanner.Options{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	opts := cfg.ToScanOptions()
	if singleStudyFlag {
		opts.Mode = catalog.ModeSingle
		opts.Duplicates = "" // single-study mode defaults to failing on duplicates
	}
	if labelFlag != "" {
		opts.Label = labelFlag
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers = workersFlag
	}
	opts.Ignore = append(opts.Ignore, ignoreFlag...)
	opts.Reporter = NewCLIProgressReporter(quietFlag)
	return opts, nil
}

// snapshotPath resolves the output flag: relative paths land inside the
// scanned folder so the snapshot travels with the data.
func snapshotPath(root, out string) string {
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(root, out)
}
