package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencmr/dicomdir/internal/catalog"
	"github.com/opencmr/dicomdir/internal/storage"
)

var (
	databaseFlag string
	fromDBFlag   bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <snapshot>",
	Short: "Move a catalog between its JSON snapshot and a SQLite database",
	Long: `Export loads a JSON snapshot and writes its studies, series, and
instances into a SQLite database, replacing any catalog already stored
there. Tag values keep their snapshot encoding so nothing is lost in
either direction.

With --from-db the direction reverses: the catalog is read from the
database and written out as the named snapshot file.

Examples:
  # Snapshot into a database
  dicomdir export dicomdir.json --database catalog.db

  # Recover the snapshot from a database
  dicomdir export restored.json --database catalog.db --from-db
`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&databaseFlag, "database", "d", "dicomdir.db", "SQLite database path")
	exportCmd.Flags().BoolVar(&fromDBFlag, "from-db", false, "Read the catalog from the database and write the snapshot")
}

func runExport(cmd *cobra.Command, args []string) error {
	if fromDBFlag {
		return runImport(args[0])
	}

	cat, err := catalog.Load(args[0])
	if err != nil {
		return err
	}

	db, err := storage.Open(databaseFlag)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := storage.CreateSchema(db); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := storage.NewCatalogWriter(db).WriteCatalog(cat); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	fmt.Printf("Exported %d studies, %d series, %d instances to %s\n",
		cat.StudyCount(), cat.SeriesCount(), cat.InstanceCount(), databaseFlag)
	return nil
}

func runImport(snapshotPath string) error {
	db, err := storage.Open(databaseFlag)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cat, err := storage.NewCatalogReader(db).ReadCatalog()
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	if err := cat.Save(snapshotPath); err != nil {
		return err
	}

	fmt.Printf("Imported %d studies, %d series, %d instances from %s\n",
		cat.StudyCount(), cat.SeriesCount(), cat.InstanceCount(), databaseFlag)
	return nil
}
