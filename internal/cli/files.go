package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencmr/dicomdir/internal/catalog"
)

var (
	studyFlag  string
	seriesFlag string
	frameFlag  int
)

// filesCmd represents the files command
var filesCmd = &cobra.Command{
	Use:   "files <snapshot>",
	Short: "List the files recorded in a catalog snapshot",
	Long: `Files prints instance filenames from a snapshot, one per line, in the
order the scan discovered them.

A series can be addressed by bare SeriesInstanceUID or, when a study holds
several series with the same UID, by "uid#number".

Examples:
  # Every file in the catalog
  dicomdir files dicomdir.json

  # Files of one series
  dicomdir files dicomdir.json --study 1.2.3 --series 1.2.3.1

  # The file holding frame 12 of a cine series
  dicomdir files dicomdir.json --study 1.2.3 --series 1.2.3.1 --frame 12
`,
	Args: cobra.ExactArgs(1),
	RunE: runFiles,
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.Flags().StringVar(&studyFlag, "study", "", "StudyInstanceUID to list")
	filesCmd.Flags().StringVar(&seriesFlag, "series", "", "SeriesInstanceUID (or uid#number) to list")
	filesCmd.Flags().IntVar(&frameFlag, "frame", -1, "Print only the file holding this frame (0-based)")
}

func runFiles(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load(args[0])
	if err != nil {
		return err
	}

	switch {
	case frameFlag >= 0:
		if studyFlag == "" || seriesFlag == "" {
			return fmt.Errorf("--frame requires --study and --series")
		}
		name, err := cat.FrameFilename(studyFlag, seriesFlag, frameFlag)
		if err != nil {
			return err
		}
		fmt.Println(name)

	case seriesFlag != "":
		if studyFlag == "" {
			return fmt.Errorf("--series requires --study")
		}
		names, err := cat.Filenames(studyFlag, seriesFlag)
		if err != nil {
			return err
		}
		printLines(names)

	case studyFlag != "":
		keys, err := cat.SeriesKeys(studyFlag)
		if err != nil {
			return err
		}
		for _, key := range keys {
			names, err := cat.Filenames(studyFlag, key.String())
			if err != nil {
				return err
			}
			printLines(names)
		}

	default:
		printLines(cat.AllFilenames())
	}
	return nil
}

func printLines(lines []string) {
	for _, line := range lines {
		fmt.Println(line)
	}
}
