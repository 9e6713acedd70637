// Package dicomfile classifies files as DICOM records and extracts
// normalized tag values from them. It wraps github.com/suyashkumar/dicom;
// nothing outside this package touches the parser's types.
package dicomfile

import (
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/opencmr/dicomdir/internal/catalog"
)

// Spec maps a tag keyword onto its DICOM tag. Numeric marks decimal-string
// and integer-string tags whose components normalize to floats.
type Spec struct {
	Keyword string
	Tag     tag.Tag
	Numeric bool
}

// Retired geometry tags, kept for the extraction fallback chain. Old
// acquisitions carry these instead of the Patient-qualified variants.
var (
	tagImagePosition    = tag.Tag{Group: 0x0020, Element: 0x0030}
	tagImageOrientation = tag.Tag{Group: 0x0020, Element: 0x0035}
)

// StudySpecs, SeriesSpecs and InstanceSpecs follow the keyword order of the
// catalog tag name lists.
var StudySpecs = []Spec{
	{Keyword: "StudyInstanceUID", Tag: tag.StudyInstanceUID},
	{Keyword: "StudyDescription", Tag: tag.StudyDescription},
	{Keyword: "StudyDate", Tag: tag.StudyDate},
	{Keyword: "StudyTime", Tag: tag.StudyTime},
	{Keyword: "PatientID", Tag: tag.PatientID},
	{Keyword: "Manufacturer", Tag: tag.Manufacturer},
	{Keyword: "Modality", Tag: tag.Modality},
}

var SeriesSpecs = []Spec{
	{Keyword: "SeriesInstanceUID", Tag: tag.SeriesInstanceUID},
	{Keyword: "SeriesNumber", Tag: tag.SeriesNumber, Numeric: true},
	{Keyword: "SeriesDescription", Tag: tag.SeriesDescription},
	{Keyword: "ProtocolName", Tag: tag.ProtocolName},
	{Keyword: "SequenceName", Tag: tag.SequenceName},
}

var InstanceSpecs = []Spec{
	{Keyword: "SOPInstanceUID", Tag: tag.SOPInstanceUID},
	{Keyword: "AcquisitionTime", Tag: tag.AcquisitionTime},
	{Keyword: "Rows", Tag: tag.Rows},
	{Keyword: "Columns", Tag: tag.Columns},
	{Keyword: "TriggerTime", Tag: tag.TriggerTime, Numeric: true},
	{Keyword: "SliceLocation", Tag: tag.SliceLocation, Numeric: true},
	{Keyword: "SliceThickness", Tag: tag.SliceThickness, Numeric: true},
	{Keyword: "PixelRepresentation", Tag: tag.PixelRepresentation},
	{Keyword: "PixelSpacing", Tag: tag.PixelSpacing, Numeric: true},
	{Keyword: "ImageOrientationPatient", Tag: tag.ImageOrientationPatient, Numeric: true},
	{Keyword: "ImagePositionPatient", Tag: tag.ImagePositionPatient, Numeric: true},
	{Keyword: "SmallestImagePixelValue", Tag: tag.SmallestImagePixelValue},
	{Keyword: "LargestImagePixelValue", Tag: tag.LargestImagePixelValue},
}

// fallbackSpecs are extraction-only: they never appear as stored keywords.
var fallbackSpecs = []Spec{
	{Keyword: "ImageOrientation", Tag: tagImageOrientation, Numeric: true},
	{Keyword: "ImagePosition", Tag: tagImagePosition, Numeric: true},
}

// GeometryFallbacks maps a Patient-qualified geometry keyword onto the
// retired unqualified keyword tried when the qualified tag is absent.
var GeometryFallbacks = map[string]string{
	"ImageOrientationPatient": "ImageOrientation",
	"ImagePositionPatient":    "ImagePosition",
}

var specsByKeyword = func() map[string]Spec {
	m := make(map[string]Spec)
	for _, group := range [][]Spec{StudySpecs, SeriesSpecs, InstanceSpecs, fallbackSpecs} {
		for _, s := range group {
			m[s.Keyword] = s
		}
	}
	return m
}()

// ExtractAll reads every spec in order into a keyword → value map. Absent
// tags are stored as Absent, matching the catalog's lossless snapshot shape.
func (r *Record) ExtractAll(specs []Spec) map[string]catalog.Value {
	out := make(map[string]catalog.Value, len(specs))
	for _, s := range specs {
		out[s.Keyword] = r.Extract(s.Keyword)
	}
	return out
}
