package dicomfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrNotDICOM marks a file that is not a usable DICOM record. It is a
// per-file skip condition, never fatal: any parse failure and any record
// that is essentially empty maps to it.
var ErrNotDICOM = errors.New("not a DICOM file")

// implicitVRLittleEndian is the transfer syntax assumed when a file carries
// no encoding declaration in its meta group.
const implicitVRLittleEndian = "1.2.840.10008.1.2"

// magicWord follows the 128-byte preamble in files that carry one.
const magicWord = "DICM"

// Record is an opened DICOM file. It only exposes keyword-based attribute
// access; the parser's dataset representation stays internal.
type Record struct {
	path           string
	ds             dicom.Dataset
	transferSyntax string
}

// Open parses a file as DICOM. Pixel data is skipped; the catalog never
// needs it. A file whose meta group lacks TransferSyntaxUID is not rejected:
// the parse is retried assuming implicit VR little endian and the record
// defaults to that transfer syntax. A record exposing at most one readable
// attribute is treated as not DICOM, which filters non-imaging files that
// happen to be byte-parseable.
func Open(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotDICOM, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotDICOM, path, err)
	}

	ds, err := dicom.Parse(f, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		ds, err = parseImplicit(f, info.Size())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotDICOM, path, err)
		}
	}

	r := &Record{path: path, ds: ds, transferSyntax: implicitVRLittleEndian}
	if el, err := ds.FindElementByTag(tag.TransferSyntaxUID); err == nil {
		if ts := firstString(el); ts != "" {
			r.transferSyntax = ts
		}
	}

	if r.elementCount() <= 1 {
		return nil, fmt.Errorf("%w: %s: record is empty", ErrNotDICOM, path)
	}
	return r, nil
}

// parseImplicit re-reads a file that declares no transfer syntax, assuming
// implicit VR little endian for the data set. Old scanner exports often
// carry either no file meta at all or a meta group without (0002,0010);
// the strict parser rejects both.
func parseImplicit(f *os.File, size int64) (dicom.Dataset, error) {
	offset := dataSetOffset(f)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return dicom.Dataset{}, err
	}

	p, err := dicom.NewParser(f, size-offset, nil,
		dicom.SkipMetadataReadOnNewParserInit(), dicom.SkipPixelData())
	if err != nil {
		return dicom.Dataset{}, err
	}
	p.SetTransferSyntax(binary.LittleEndian, true)

	var ds dicom.Dataset
	for {
		el, err := p.Next()
		if errors.Is(err, dicom.ErrorEndOfDICOM) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return dicom.Dataset{}, err
		}
		ds.Elements = append(ds.Elements, el)
	}
	return ds, nil
}

// dataSetOffset finds where the data set begins: past the 128-byte preamble
// and DICM magic when present, and past the meta group when its group
// length element is readable. Files with neither start at zero.
func dataSetOffset(f *os.File) int64 {
	var head [132]byte
	if _, err := f.ReadAt(head[:], 0); err != nil {
		return 0 // shorter than a preamble, parse from the start
	}
	if string(head[128:132]) != magicWord {
		return 0
	}
	offset := int64(132)

	// (0002,0000) FileMetaInformationGroupLength in explicit VR: tag,
	// "UL", 16-bit length, 32-bit value giving the meta group's size.
	var gl [12]byte
	if _, err := f.ReadAt(gl[:], offset); err != nil {
		return offset
	}
	group := binary.LittleEndian.Uint16(gl[0:2])
	element := binary.LittleEndian.Uint16(gl[2:4])
	if group != 0x0002 || element != 0x0000 || string(gl[4:6]) != "UL" {
		return offset
	}
	metaLen := int64(binary.LittleEndian.Uint32(gl[8:12]))
	return offset + int64(len(gl)) + metaLen
}

// Path returns the path the record was opened from.
func (r *Record) Path() string { return r.path }

// TransferSyntax returns the record's transfer syntax UID, defaulted to
// implicit VR little endian when the file declared none.
func (r *Record) TransferSyntax() string { return r.transferSyntax }

// elementCount counts readable attributes outside the file meta group.
func (r *Record) elementCount() int {
	n := 0
	for _, el := range r.ds.Elements {
		if el.Tag.Group != 0x0002 {
			n++
		}
	}
	return n
}

// Has reports whether the named attribute is present on the record.
func (r *Record) Has(keyword string) bool {
	s, ok := specsByKeyword[keyword]
	if !ok {
		return false
	}
	_, err := r.ds.FindElementByTag(s.Tag)
	return err == nil
}

func firstString(el *dicom.Element) string {
	if ss, ok := el.Value.GetValue().([]string); ok && len(ss) > 0 {
		return strings.TrimRight(ss[0], " \x00")
	}
	return ""
}
