package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencmr/dicomdir/internal/catalog"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <snapshot>",
	Short: "Summarize a catalog snapshot",
	Long: `Info loads a JSON snapshot and prints a per-study summary of its
series and instance counts.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load(args[0])
	if err != nil {
		return err
	}
	if cat.IsEmpty() {
		fmt.Println("Catalog is empty")
		return nil
	}
	fmt.Print(cat.Summary())
	return nil
}
