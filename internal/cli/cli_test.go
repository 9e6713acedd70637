package cli

// Test Plan for CLI Commands:
// - runScan scans a fixture folder and writes a loadable snapshot
// - runScan --single-study rejects a folder with two studies
// - snapshotPath keeps absolute paths and nests relative ones
// - runExport writes a readable SQLite database from a snapshot
// - runExport --from-db recovers a byte-identical snapshot from the database
// - runFiles frame addressing validates its flag combination

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencmr/dicomdir/internal/catalog"
	"github.com/opencmr/dicomdir/internal/dicomfile"
	"github.com/opencmr/dicomdir/internal/storage"
)

func resetFlags() {
	quietFlag = true
	labelFlag = ""
	singleStudyFlag = false
	outputFlag = "dicomdir.json"
	workersFlag = 0
	ignoreFlag = nil
	studyFlag = ""
	seriesFlag = ""
	frameFlag = -1
	databaseFlag = "dicomdir.db"
	fromDBFlag = false
}

func writeExam(t *testing.T, dir, studyUID string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for i, sop := range []string{".1", ".2"} {
		dicomfile.WriteTestFile(t, filepath.Join(dir, "IM"+sop), dicomfile.TestFileOpts{
			StudyUID:     studyUID,
			PatientID:    "P001",
			SeriesUID:    studyUID + ".10",
			SeriesNumber: "5",
			SOPUID:       studyUID + ".10" + sop,
			TriggerTime:  []string{"0", "30"}[i],
		})
	}
}

func TestRunScan_WritesSnapshot(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	writeExam(t, dir, "1.2.3")

	require.NoError(t, runScan(scanCmd, []string{dir}))

	cat, err := catalog.Load(filepath.Join(dir, "dicomdir.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3"}, cat.StudyUIDs())
	assert.Equal(t, 2, cat.InstanceCount())
}

func TestRunScan_SingleStudyRejectsMix(t *testing.T) {
	resetFlags()
	singleStudyFlag = true

	dir := t.TempDir()
	writeExam(t, dir, "1.2.3")
	writeExam(t, filepath.Join(dir, "other"), "9.8.7")

	err := runScan(scanCmd, []string{dir})
	assert.Error(t, err)
}

func TestSnapshotPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data/exam", "dicomdir.json"),
		snapshotPath("/data/exam", "dicomdir.json"))
	assert.Equal(t, "/tmp/out.json", snapshotPath("/data/exam", "/tmp/out.json"))
}

func TestRunExport_RoundTrip(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	writeExam(t, dir, "1.2.3")
	require.NoError(t, runScan(scanCmd, []string{dir}))

	databaseFlag = filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, runExport(exportCmd, []string{filepath.Join(dir, "dicomdir.json")}))

	db, err := storage.Open(databaseFlag)
	require.NoError(t, err)
	defer db.Close()

	back, err := storage.NewCatalogReader(db).ReadCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3"}, back.StudyUIDs())
	assert.Equal(t, 2, back.InstanceCount())
}

func TestRunExport_FromDB(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	writeExam(t, dir, "1.2.3")
	require.NoError(t, runScan(scanCmd, []string{dir}))
	original := filepath.Join(dir, "dicomdir.json")

	databaseFlag = filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, runExport(exportCmd, []string{original}))

	restored := filepath.Join(t.TempDir(), "restored.json")
	fromDBFlag = true
	require.NoError(t, runExport(exportCmd, []string{restored}))

	want, err := os.ReadFile(original)
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestRunFiles_FrameNeedsStudyAndSeries(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	writeExam(t, dir, "1.2.3")
	require.NoError(t, runScan(scanCmd, []string{dir}))

	frameFlag = 0
	err := runFiles(filesCmd, []string{filepath.Join(dir, "dicomdir.json")})
	assert.Error(t, err)

	studyFlag = "1.2.3"
	seriesFlag = "1.2.3.10"
	require.NoError(t, runFiles(filesCmd, []string{filepath.Join(dir, "dicomdir.json")}))
}
