package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrMalformedSnapshot is returned by Restore when required fields are
// missing or the document does not follow the snapshot schema.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// The snapshot schema nests tag names and child UIDs as keys of the same
// JSON object, mirroring the in-memory tree:
//
//	{
//	  "rootFolder": "...",
//	  "label": "...",
//	  "mode": "multi" | "single",
//	  "studies": {
//	    "<StudyUID>": {
//	      "<StudyTag>": value, ...,
//	      "<SeriesKey>": {
//	        "<SeriesTag>": value, ...,
//	        "<InstanceUID>": {
//	          "<InstanceTag>": value, ...,
//	          "filename": "relative/path"
//	        }
//	      }
//	    }
//	  }
//	}
//
// Restore tells tag names apart from child keys using the per-level tag name
// lists. Key order inside each object is discovery order, which is why both
// directions work on the token stream rather than Go maps.

const filenameKey = "filename"

// Snapshot serializes the catalog. The round trip through Restore is
// lossless for tag values, tree shape, and discovery order.
func (c *Catalog) Snapshot() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	writeKey(&b, "rootFolder")
	writeJSON(&b, c.RootFolder)
	b.WriteByte(',')
	writeKey(&b, "label")
	writeJSON(&b, c.Label)
	b.WriteByte(',')
	writeKey(&b, "mode")
	writeJSON(&b, string(c.mode))
	b.WriteByte(',')
	writeKey(&b, "studies")
	b.WriteByte('{')
	for i, studyUID := range c.order {
		if i > 0 {
			b.WriteByte(',')
		}
		writeKey(&b, studyUID)
		if err := c.studies[studyUID].appendJSON(&b); err != nil {
			return nil, err
		}
	}
	b.WriteString("}}")

	var out bytes.Buffer
	if err := json.Indent(&out, b.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (st *Study) appendJSON(b *bytes.Buffer) error {
	b.WriteByte('{')
	first := true
	for _, t := range StudyTagNames {
		if v, ok := st.tags[t]; ok {
			writeSep(b, &first)
			writeKey(b, t)
			writeJSON(b, v)
		}
	}
	for _, key := range st.order {
		writeSep(b, &first)
		writeKey(b, key.String())
		if err := st.series[key].appendJSON(b); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

func (s *Series) appendJSON(b *bytes.Buffer) error {
	b.WriteByte('{')
	first := true
	for _, t := range SeriesTagNames {
		if v, ok := s.tags[t]; ok {
			writeSep(b, &first)
			writeKey(b, t)
			writeJSON(b, v)
		}
	}
	for _, uid := range s.order {
		in := s.instances[uid]
		writeSep(b, &first)
		writeKey(b, uid)
		b.WriteByte('{')
		innerFirst := true
		for _, t := range InstanceTagNames {
			if v, ok := in.tags[t]; ok {
				writeSep(b, &innerFirst)
				writeKey(b, t)
				writeJSON(b, v)
			}
		}
		writeSep(b, &innerFirst)
		writeKey(b, filenameKey)
		writeJSON(b, in.Filename)
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return nil
}

func writeSep(b *bytes.Buffer, first *bool) {
	if !*first {
		b.WriteByte(',')
	}
	*first = false
}

func writeKey(b *bytes.Buffer, key string) {
	writeJSON(b, key)
	b.WriteByte(':')
}

func writeJSON(b *bytes.Buffer, v interface{}) {
	enc, err := json.Marshal(v)
	if err != nil {
		// Value and string marshaling cannot fail for catalog contents.
		panic(err)
	}
	b.Write(enc)
}

// orderedObject is a JSON object with its key order preserved.
type orderedObject struct {
	keys []string
	vals map[string]json.RawMessage
}

func decodeOrderedObject(data []byte) (*orderedObject, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	obj := &orderedObject{vals: make(map[string]json.RawMessage)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		obj.keys = append(obj.keys, key)
		obj.vals[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

// Restore rebuilds a catalog from a snapshot produced by Snapshot.
func Restore(data []byte) (*Catalog, error) {
	top, err := decodeOrderedObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	rootRaw, ok := top.vals["rootFolder"]
	if !ok {
		return nil, fmt.Errorf("%w: missing rootFolder", ErrMalformedSnapshot)
	}
	studiesRaw, ok := top.vals["studies"]
	if !ok {
		return nil, fmt.Errorf("%w: missing studies", ErrMalformedSnapshot)
	}

	var root, label string
	if err := json.Unmarshal(rootRaw, &root); err != nil {
		return nil, fmt.Errorf("%w: rootFolder: %v", ErrMalformedSnapshot, err)
	}
	if labelRaw, ok := top.vals["label"]; ok {
		if err := json.Unmarshal(labelRaw, &label); err != nil {
			return nil, fmt.Errorf("%w: label: %v", ErrMalformedSnapshot, err)
		}
	}
	mode := ModeMulti
	if modeRaw, ok := top.vals["mode"]; ok {
		var m string
		if err := json.Unmarshal(modeRaw, &m); err != nil {
			return nil, fmt.Errorf("%w: mode: %v", ErrMalformedSnapshot, err)
		}
		switch Mode(m) {
		case ModeMulti, ModeSingle:
			mode = Mode(m)
		default:
			return nil, fmt.Errorf("%w: unknown mode %q", ErrMalformedSnapshot, m)
		}
	}

	c := New(root, label, mode)

	studiesObj, err := decodeOrderedObject(studiesRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: studies: %v", ErrMalformedSnapshot, err)
	}
	for _, studyUID := range studiesObj.keys {
		studyObj, err := decodeOrderedObject(studiesObj.vals[studyUID])
		if err != nil {
			return nil, fmt.Errorf("%w: study %s: %v", ErrMalformedSnapshot, studyUID, err)
		}
		tags := make(map[string]Value)
		st := c.AddStudy(studyUID, tags)
		for _, key := range studyObj.keys {
			if isTagName(StudyTagNames, key) {
				var v Value
				if err := json.Unmarshal(studyObj.vals[key], &v); err != nil {
					return nil, fmt.Errorf("%w: study tag %s: %v", ErrMalformedSnapshot, key, err)
				}
				tags[key] = v
				continue
			}
			if err := restoreSeries(st, key, studyObj.vals[key]); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func restoreSeries(st *Study, key string, raw json.RawMessage) error {
	seriesObj, err := decodeOrderedObject(raw)
	if err != nil {
		return fmt.Errorf("%w: series %s: %v", ErrMalformedSnapshot, key, err)
	}
	tags := make(map[string]Value)
	s := st.AddSeries(parseSeriesKey(key), tags)
	for _, k := range seriesObj.keys {
		if isTagName(SeriesTagNames, k) {
			var v Value
			if err := json.Unmarshal(seriesObj.vals[k], &v); err != nil {
				return fmt.Errorf("%w: series tag %s: %v", ErrMalformedSnapshot, k, err)
			}
			tags[k] = v
			continue
		}
		if err := restoreInstance(s, k, seriesObj.vals[k]); err != nil {
			return err
		}
	}
	return nil
}

func restoreInstance(s *Series, uid string, raw json.RawMessage) error {
	instObj, err := decodeOrderedObject(raw)
	if err != nil {
		return fmt.Errorf("%w: instance %s: %v", ErrMalformedSnapshot, uid, err)
	}
	tags := make(map[string]Value)
	filename := ""
	haveFilename := false
	for _, k := range instObj.keys {
		if k == filenameKey {
			if err := json.Unmarshal(instObj.vals[k], &filename); err != nil {
				return fmt.Errorf("%w: instance %s filename: %v", ErrMalformedSnapshot, uid, err)
			}
			haveFilename = true
			continue
		}
		if !isTagName(InstanceTagNames, k) {
			continue
		}
		var v Value
		if err := json.Unmarshal(instObj.vals[k], &v); err != nil {
			return fmt.Errorf("%w: instance tag %s: %v", ErrMalformedSnapshot, k, err)
		}
		tags[k] = v
	}
	if !haveFilename {
		return fmt.Errorf("%w: instance %s has no filename", ErrMalformedSnapshot, uid)
	}
	if err := s.AddInstance(uid, filename, tags); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return nil
}

// Save writes the snapshot to a file.
func (c *Catalog) Save(path string) error {
	data, err := c.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to serialize catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot file and restores the catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Restore(data)
}
