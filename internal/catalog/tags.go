package catalog

// Ordered tag keyword lists per hierarchy level. Order here is the order tags
// appear in snapshots and summaries. The lists are configuration, not
// hardcoded per catalog variant: snapshot restore uses them to tell tag names
// apart from child UID keys inside the same JSON object.

// StudyTagNames are the tags stored on a Study.
var StudyTagNames = []string{
	"StudyInstanceUID",
	"StudyDescription",
	"StudyDate",
	"StudyTime",
	"PatientID",
	"Manufacturer",
	"Modality",
}

// SeriesTagNames are the tags stored on a Series.
var SeriesTagNames = []string{
	"SeriesInstanceUID",
	"SeriesNumber",
	"SeriesDescription",
	"ProtocolName",
	"SequenceName",
}

// InstanceTagNames are the tags stored on an Instance. The geometry tags hold
// the Patient-qualified variants; unqualified ImageOrientation/ImagePosition
// only ever appear as extraction fallbacks, never as stored keys.
var InstanceTagNames = []string{
	"SOPInstanceUID",
	"AcquisitionTime",
	"Rows",
	"Columns",
	"TriggerTime",
	"SliceLocation",
	"SliceThickness",
	"PixelRepresentation",
	"PixelSpacing",
	"ImageOrientationPatient",
	"ImagePositionPatient",
	"SmallestImagePixelValue",
	"LargestImagePixelValue",
}

func isTagName(names []string, key string) bool {
	for _, n := range names {
		if n == key {
			return true
		}
	}
	return false
}
