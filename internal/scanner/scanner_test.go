package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencmr/dicomdir/internal/catalog"
	"github.com/opencmr/dicomdir/internal/dicomfile"
)

// Test Plan for Scan:
// - Counts: S studies, K series, I instances end up in the catalog
// - Non-DICOM files are skipped and recorded, never fatal
// - Empty folder yields an empty catalog
// - Missing root is ErrNotADirectory
// - Single-study mode rejects a second StudyUID and a second PatientID
// - Duplicate SOPInstanceUID: fatal under DuplicateFail, first-wins under
//   DuplicateSkip
// - Retired geometry tags populate the Patient-qualified attributes
// - Ignore patterns exclude files from discovery
// - Scanning twice produces snapshot-equal catalogs
// - Snapshot of a scanned catalog round-trips

func writeFixture(t *testing.T, root, rel string, opts dicomfile.TestFileOpts) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	dicomfile.WriteTestFile(t, path, opts)
}

// twoSeriesExam writes one study with two series, three instances total.
func twoSeriesExam(t *testing.T, root string) {
	t.Helper()
	writeFixture(t, root, "SER1/IM1.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001",
		SeriesUID: "1.2.3.1", SeriesNumber: "1", SeriesDesc: "cine_sax",
		SOPUID: "1.2.3.1.1", TriggerTime: "0", Rows: 224, Columns: 256,
	})
	writeFixture(t, root, "SER1/IM2.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001",
		SeriesUID: "1.2.3.1", SeriesNumber: "1", SeriesDesc: "cine_sax",
		SOPUID: "1.2.3.1.2", TriggerTime: "31.25", Rows: 224, Columns: 256,
	})
	writeFixture(t, root, "SER2/IM1.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001",
		SeriesUID: "1.2.3.2", SeriesNumber: "2", SeriesDesc: "scout",
		SOPUID: "1.2.3.2.1", Rows: 192, Columns: 192,
	})
}

func TestScan_Counts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	twoSeriesExam(t, root)

	cat, stats, err := Scan(context.Background(), root, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"1.2.3"}, cat.StudyUIDs())
	assert.Equal(t, 2, cat.SeriesCount())
	assert.Equal(t, 3, cat.InstanceCount())
	assert.Equal(t, 3, stats.FilesFound)
	assert.Equal(t, 3, stats.Recognized)
	assert.Equal(t, 0, stats.Skipped)

	files, err := cat.Filenames("1.2.3", "1.2.3.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"SER1/IM1.dcm", "SER1/IM2.dcm"}, files)

	pid, err := cat.PatientID()
	require.NoError(t, err)
	s, ok := pid.AsString()
	require.True(t, ok)
	assert.Equal(t, "P001", s)
}

func TestScan_SkipsNonDICOM(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFixture(t, root, "IM1.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001", SeriesUID: "1.2.3.1",
		SeriesNumber: "1", SOPUID: "1.2.3.1.1", Rows: 64, Columns: 64,
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.txt"), []byte("not an image\n"), 0644))

	var skipped []string
	reporter := &recordingReporter{onSkip: func(rel, reason string) {
		skipped = append(skipped, rel)
	}}

	opts := DefaultOptions()
	opts.Reporter = reporter
	cat, stats, err := Scan(context.Background(), root, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, cat.InstanceCount())
	assert.Equal(t, 1, stats.Recognized)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, []string{"README.txt"}, skipped)
}

func TestScan_EmptyFolder(t *testing.T) {
	t.Parallel()

	cat, stats, err := Scan(context.Background(), t.TempDir(), DefaultOptions())
	require.NoError(t, err)

	assert.True(t, cat.IsEmpty())
	assert.Equal(t, 0, stats.FilesFound)

	_, err = cat.PatientID()
	assert.ErrorIs(t, err, catalog.ErrEmptyCatalog)
}

func TestScan_NotADirectory(t *testing.T) {
	t.Parallel()

	_, _, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), DefaultOptions())
	assert.ErrorIs(t, err, ErrNotADirectory)
}

func TestScan_SingleStudy_SecondStudyFatal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFixture(t, root, "A.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001", SeriesUID: "1.2.3.1",
		SeriesNumber: "1", SOPUID: "1.2.3.1.1", Rows: 64, Columns: 64,
	})
	writeFixture(t, root, "B.dcm", dicomfile.TestFileOpts{
		StudyUID: "9.8.7", PatientID: "P001", SeriesUID: "9.8.7.1",
		SeriesNumber: "1", SOPUID: "9.8.7.1.1", Rows: 64, Columns: 64,
	})

	opts := DefaultOptions()
	opts.Mode = catalog.ModeSingle
	cat, _, err := Scan(context.Background(), root, opts)
	assert.ErrorIs(t, err, ErrMultipleStudies)
	assert.Nil(t, cat, "no partial catalog on a fatal violation")
}

func TestScan_SingleStudy_SecondPatientFatal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFixture(t, root, "A.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001", SeriesUID: "1.2.3.1",
		SeriesNumber: "1", SOPUID: "1.2.3.1.1", Rows: 64, Columns: 64,
	})
	writeFixture(t, root, "B.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P002", SeriesUID: "1.2.3.1",
		SeriesNumber: "1", SOPUID: "1.2.3.1.2", Rows: 64, Columns: 64,
	})

	opts := DefaultOptions()
	opts.Mode = catalog.ModeSingle
	_, _, err := Scan(context.Background(), root, opts)
	assert.ErrorIs(t, err, ErrMultipleStudies)
}

func TestScan_MultiStudyMode(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFixture(t, root, "A.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001", SeriesUID: "1.2.3.1",
		SeriesNumber: "1", SOPUID: "1.2.3.1.1", Rows: 64, Columns: 64,
	})
	writeFixture(t, root, "B.dcm", dicomfile.TestFileOpts{
		StudyUID: "9.8.7", PatientID: "P002", SeriesUID: "9.8.7.1",
		SeriesNumber: "1", SOPUID: "9.8.7.1.1", Rows: 64, Columns: 64,
	})

	cat, _, err := Scan(context.Background(), root, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3", "9.8.7"}, cat.StudyUIDs())
}

func TestScan_DuplicateInstance(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"A.dcm", "B.dcm"} {
		writeFixture(t, root, name, dicomfile.TestFileOpts{
			StudyUID: "1.2.3", PatientID: "P001", SeriesUID: "1.2.3.1",
			SeriesNumber: "1", SOPUID: "1.2.3.1.1", Rows: 64, Columns: 64,
		})
	}

	// Lenient: first wins, skip recorded.
	cat, stats, err := Scan(context.Background(), root, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, cat.InstanceCount())
	assert.Equal(t, 1, stats.DuplicatesSkipped)

	files, err := cat.Filenames("1.2.3", "1.2.3.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A.dcm"}, files)

	// Strict: fatal.
	opts := DefaultOptions()
	opts.Mode = catalog.ModeSingle
	_, _, err = Scan(context.Background(), root, opts)
	assert.ErrorIs(t, err, catalog.ErrDuplicateInstance)
}

func TestScan_RetiredGeometryFallback(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFixture(t, root, "IM1.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001", SeriesUID: "1.2.3.1",
		SeriesNumber: "1", SOPUID: "1.2.3.1.1", Rows: 64, Columns: 64,
		RetiredGeometry: true,
		Orientation:     []string{"1", "0", "0", "0", "1", "0"},
		Position:        []string{"-120.5", "-98.2", "45.1"},
	})

	cat, _, err := Scan(context.Background(), root, DefaultOptions())
	require.NoError(t, err)

	vals, err := cat.InstanceValues("1.2.3", "1.2.3.1", "ImageOrientationPatient")
	require.NoError(t, err)
	require.Len(t, vals, 1)
	fs, ok := vals[0].AsFloats()
	require.True(t, ok)
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0}, fs)
}

func TestScan_IgnorePatterns(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFixture(t, root, "SER1/IM1.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001", SeriesUID: "1.2.3.1",
		SeriesNumber: "1", SOPUID: "1.2.3.1.1", Rows: 64, Columns: 64,
	})
	writeFixture(t, root, "discard/IM2.dcm", dicomfile.TestFileOpts{
		StudyUID: "1.2.3", PatientID: "P001", SeriesUID: "1.2.3.1",
		SeriesNumber: "1", SOPUID: "1.2.3.1.2", Rows: 64, Columns: 64,
	})

	opts := DefaultOptions()
	opts.Ignore = []string{"discard/**"}
	cat, stats, err := Scan(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesFound)
	assert.Equal(t, 1, cat.InstanceCount())
}

func TestScan_Idempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	twoSeriesExam(t, root)

	first, _, err := Scan(context.Background(), root, DefaultOptions())
	require.NoError(t, err)
	second, _, err := Scan(context.Background(), root, DefaultOptions())
	require.NoError(t, err)

	a, err := first.Snapshot()
	require.NoError(t, err)
	b, err := second.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestScan_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	twoSeriesExam(t, root)

	cat, _, err := Scan(context.Background(), root, DefaultOptions())
	require.NoError(t, err)

	data, err := cat.Snapshot()
	require.NoError(t, err)
	back, err := catalog.Restore(data)
	require.NoError(t, err)
	assert.True(t, cat.Equal(back))
}

func TestScan_SingleWorkerMatchesParallel(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	twoSeriesExam(t, root)

	serial := DefaultOptions()
	serial.Workers = 1
	parallel := DefaultOptions()
	parallel.Workers = 8

	a, _, err := Scan(context.Background(), root, serial)
	require.NoError(t, err)
	b, _, err := Scan(context.Background(), root, parallel)
	require.NoError(t, err)
	assert.True(t, a.Equal(b), "worker count must not change the catalog")
}

// recordingReporter captures skip events for assertions.
type recordingReporter struct {
	onSkip func(rel, reason string)
}

func (r *recordingReporter) OnDiscoveryComplete(int) {}
func (r *recordingReporter) OnFileScanned(string)    {}
func (r *recordingReporter) OnFileSkipped(rel, reason string) {
	if r.onSkip != nil {
		r.onSkip(rel, reason)
	}
}
func (r *recordingReporter) OnScanComplete(Stats) {}
