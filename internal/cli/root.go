package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dicomdir",
	Short: "dicomdir - catalog DICOM imaging folders",
	Long: `dicomdir walks a folder of DICOM files and builds a study/series/instance
catalog that can be saved as a JSON snapshot, queried, or exported to SQLite.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
