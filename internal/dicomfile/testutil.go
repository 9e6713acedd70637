package dicomfile

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// explicitVRLittleEndian is the transfer syntax test fixtures are written in.
const explicitVRLittleEndian = "1.2.840.10008.1.2.1"

// mrImageStorage is the SOP class UID written into fixture file meta.
const mrImageStorage = "1.2.840.10008.5.1.4.1.1.4"

// TestFileOpts describes a synthetic DICOM fixture. Zero-valued fields are
// left out of the file entirely, which is how tests exercise absent tags.
type TestFileOpts struct {
	StudyUID     string
	StudyDesc    string
	PatientID    string
	SeriesUID    string
	SeriesNumber string
	SeriesDesc   string
	SOPUID       string
	TriggerTime  string
	Rows         int
	Columns      int

	// RetiredGeometry writes orientation/position into the retired
	// unqualified tags instead of the Patient-qualified ones.
	RetiredGeometry bool
	Orientation     []string
	Position        []string

	Extra []*dicom.Element
}

// MustElement builds a DICOM element or fails the test.
func MustElement(t *testing.T, dt tag.Tag, value interface{}) *dicom.Element {
	t.Helper()
	el, err := dicom.NewElement(dt, value)
	require.NoError(t, err)
	return el
}

// WriteTestFile writes a synthetic DICOM file for scanner and classifier
// tests. Fixtures carry the minimal file meta the writer requires.
func WriteTestFile(t *testing.T, path string, opts TestFileOpts) {
	t.Helper()

	elems := []*dicom.Element{
		MustElement(t, tag.MediaStorageSOPClassUID, []string{mrImageStorage}),
		MustElement(t, tag.MediaStorageSOPInstanceUID, []string{opts.SOPUID}),
		MustElement(t, tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		MustElement(t, tag.Modality, []string{"MR"}),
		MustElement(t, tag.Manufacturer, []string{"SIEMENS"}),
	}

	addString := func(dt tag.Tag, v string) {
		if v != "" {
			elems = append(elems, MustElement(t, dt, []string{v}))
		}
	}
	addString(tag.StudyInstanceUID, opts.StudyUID)
	addString(tag.StudyDescription, opts.StudyDesc)
	addString(tag.PatientID, opts.PatientID)
	addString(tag.SeriesInstanceUID, opts.SeriesUID)
	addString(tag.SeriesNumber, opts.SeriesNumber)
	addString(tag.SeriesDescription, opts.SeriesDesc)
	addString(tag.SOPInstanceUID, opts.SOPUID)
	addString(tag.TriggerTime, opts.TriggerTime)

	if opts.Rows > 0 {
		elems = append(elems, MustElement(t, tag.Rows, []int{opts.Rows}))
	}
	if opts.Columns > 0 {
		elems = append(elems, MustElement(t, tag.Columns, []int{opts.Columns}))
	}

	orientTag, posTag := tag.ImageOrientationPatient, tag.ImagePositionPatient
	if opts.RetiredGeometry {
		orientTag, posTag = tagImageOrientation, tagImagePosition
	}
	if len(opts.Orientation) > 0 {
		elems = append(elems, MustElement(t, orientTag, opts.Orientation))
	}
	if len(opts.Position) > 0 {
		elems = append(elems, MustElement(t, posTag, opts.Position))
	}

	elems = append(elems, opts.Extra...)
	writeRawTestFile(t, path, elems)
}

// writeRawTestFile writes exactly the given elements, meta included.
func writeRawTestFile(t *testing.T, path string, elems []*dicom.Element) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, dicom.Write(f, dicom.Dataset{Elements: elems}, dicom.SkipVRVerification()))
}

// implicitElement is a hand-encoded data set element for fixtures the
// library's writer cannot produce: it refuses data sets that declare no
// transfer syntax, which is exactly what old scanner exports look like.
type implicitElement struct {
	Tag   tag.Tag
	Value string
}

// writeImplicitTestFile writes a data set in implicit VR little endian with
// no TransferSyntaxUID anywhere. With meta it writes the preamble, the DICM
// magic, and a meta group omitting (0002,0010); without, the raw data set
// starts at byte zero.
func writeImplicitTestFile(t *testing.T, path string, withMeta bool, elems []implicitElement) {
	t.Helper()

	var b bytes.Buffer
	if withMeta {
		b.Write(make([]byte, 128))
		b.WriteString(magicWord)

		var meta bytes.Buffer
		writeExplicitShort(&meta, tag.MediaStorageSOPClassUID, "UI", padEven(mrImageStorage))
		writeExplicitShort(&meta, tag.MediaStorageSOPInstanceUID, "UI", padEven("1.2.999.1"))

		var groupLen [4]byte
		binary.LittleEndian.PutUint32(groupLen[:], uint32(meta.Len()))
		writeExplicitShort(&b, tag.FileMetaInformationGroupLength, "UL", groupLen[:])
		b.Write(meta.Bytes())
	}

	for _, el := range elems {
		value := padEven(el.Value)
		writeTagLE(&b, el.Tag)
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(value)))
		b.Write(length[:])
		b.Write(value)
	}

	require.NoError(t, os.WriteFile(path, b.Bytes(), 0644))
}

// writeExplicitShort encodes one element in the short explicit VR form:
// tag, two-byte VR, 16-bit length, value.
func writeExplicitShort(b *bytes.Buffer, dt tag.Tag, vr string, value []byte) {
	writeTagLE(b, dt)
	b.WriteString(vr)
	var length [2]byte
	binary.LittleEndian.PutUint16(length[:], uint16(len(value)))
	b.Write(length[:])
	b.Write(value)
}

func writeTagLE(b *bytes.Buffer, dt tag.Tag) {
	var raw [4]byte
	binary.LittleEndian.PutUint16(raw[0:2], dt.Group)
	binary.LittleEndian.PutUint16(raw[2:4], dt.Element)
	b.Write(raw[:])
}

// padEven pads a string value to even length with a NUL, as UID values are.
func padEven(s string) []byte {
	if len(s)%2 == 1 {
		s += "\x00"
	}
	return []byte(s)
}
