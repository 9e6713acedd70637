package dicomfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Test Plan for Open:
// - A valid DICOM file opens and reports its transfer syntax
// - A file declaring no transfer syntax still opens, via the implicit VR
//   little endian retry, both with and without a file meta group
// - A plain text file is ErrNotDICOM
// - A DICOM file with at most one readable attribute is ErrNotDICOM
// - A missing file is ErrNotDICOM (skip, not a crash)

func writeValid(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "IM1.dcm")
	WriteTestFile(t, path, TestFileOpts{
		StudyUID:  "1.2.3",
		PatientID: "P001",
		SeriesUID: "1.2.3.1",
		SOPUID:    "1.2.3.1.1",
		Rows:      224,
		Columns:   256,
	})
	return path
}

func TestOpen_Valid(t *testing.T) {
	t.Parallel()

	path := writeValid(t, t.TempDir())
	rec, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, path, rec.Path())
	assert.Equal(t, explicitVRLittleEndian, rec.TransferSyntax())
	assert.True(t, rec.Has("StudyInstanceUID"))
	assert.False(t, rec.Has("TriggerTime"))
	assert.Equal(t, "1.2.3", rec.StringTag("StudyInstanceUID"))
}

func TestOpen_TextFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("patient notes, not an image\n"), 0644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrNotDICOM)
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "nope.dcm"))
	assert.ErrorIs(t, err, ErrNotDICOM)
}

func TestOpen_EssentiallyEmpty(t *testing.T) {
	t.Parallel()

	// Meta group plus a single dataset attribute: byte-parseable but not a
	// usable imaging record.
	path := filepath.Join(t.TempDir(), "empty.dcm")
	writeRawTestFile(t, path, []*dicom.Element{
		MustElement(t, tag.MediaStorageSOPClassUID, []string{mrImageStorage}),
		MustElement(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3.1.1"}),
		MustElement(t, tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		MustElement(t, tag.SOPInstanceUID, []string{"1.2.3.1.1"}),
	})

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrNotDICOM)
}

func TestOpen_NoTransferSyntax(t *testing.T) {
	t.Parallel()

	elems := []implicitElement{
		{tag.StudyInstanceUID, "1.2.10"},
		{tag.SeriesInstanceUID, "1.2.10.1"},
		{tag.SOPInstanceUID, "1.2.10.1.77"},
		{tag.Modality, "MR"},
		{tag.PatientID, "P1"},
	}

	t.Run("raw data set without meta", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "raw.dcm")
		writeImplicitTestFile(t, path, false, elems)

		rec, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, implicitVRLittleEndian, rec.TransferSyntax())
		assert.Equal(t, "1.2.10.1.77", rec.StringTag("SOPInstanceUID"))
		assert.Equal(t, "P1", rec.StringTag("PatientID"))
	})

	t.Run("meta group without TransferSyntaxUID", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nots.dcm")
		writeImplicitTestFile(t, path, true, elems)

		rec, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, implicitVRLittleEndian, rec.TransferSyntax())
		assert.Equal(t, "1.2.10", rec.StringTag("StudyInstanceUID"))
		assert.True(t, rec.Has("SeriesInstanceUID"))
	})
}
