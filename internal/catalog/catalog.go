// Package catalog holds the in-memory index of a scanned DICOM folder: a
// three-level Study → Series → Instance tree keyed by UIDs, the query
// operations over it, and its lossless JSON snapshot form.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Mode selects the catalog's grouping invariants at construction time.
type Mode string

const (
	// ModeMulti indexes any number of studies under one root. Series are
	// keyed by SeriesInstanceUID alone and a duplicate SOPInstanceUID is a
	// recorded skip, keeping the first instance seen.
	ModeMulti Mode = "multi"

	// ModeSingle requires exactly one study and one patient per root.
	// Series are keyed by (SeriesInstanceUID, SeriesNumber) so duplicate
	// UIDs across acquisitions stay distinct, and a duplicate
	// SOPInstanceUID aborts the scan.
	ModeSingle Mode = "single"
)

var (
	ErrStudyNotFound     = errors.New("study not found")
	ErrSeriesNotFound    = errors.New("series not found")
	ErrDuplicateInstance = errors.New("duplicate SOPInstanceUID")
	ErrEmptyCatalog      = errors.New("catalog is empty")
	ErrFrameOutOfRange   = errors.New("frame index out of range")
)

// SeriesKey identifies a series within a study. Number is empty under
// UID-only keying (ModeMulti).
type SeriesKey struct {
	UID    string
	Number string
}

// String renders the key in its snapshot form: the UID, with "#<number>"
// appended when a series number participates in the key.
func (k SeriesKey) String() string {
	if k.Number == "" {
		return k.UID
	}
	return k.UID + "#" + k.Number
}

// parseSeriesKey is the inverse of SeriesKey.String.
func parseSeriesKey(s string) SeriesKey {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return SeriesKey{UID: s[:i], Number: s[i+1:]}
	}
	return SeriesKey{UID: s}
}

// Instance is one image file within a series.
type Instance struct {
	UID      string
	Filename string // slash-separated path relative to the catalog root
	tags     map[string]Value
}

// Tag returns the named instance tag value, Absent if never extracted.
func (i *Instance) Tag(name string) Value {
	if v, ok := i.tags[name]; ok {
		return v
	}
	return Absent()
}

// Series is one acquisition run within a study.
type Series struct {
	key       SeriesKey
	tags      map[string]Value
	instances map[string]*Instance
	order     []string
}

// Key returns the series grouping key.
func (s *Series) Key() SeriesKey { return s.key }

// Tag returns the named series tag value, Absent if never extracted.
func (s *Series) Tag(name string) Value {
	if v, ok := s.tags[name]; ok {
		return v
	}
	return Absent()
}

// HasInstance reports whether a SOPInstanceUID is already stored.
func (s *Series) HasInstance(uid string) bool {
	_, ok := s.instances[uid]
	return ok
}

// Instance returns a stored instance by SOPInstanceUID.
func (s *Series) Instance(uid string) (*Instance, bool) {
	in, ok := s.instances[uid]
	return in, ok
}

// InstanceUIDs returns SOPInstanceUIDs in discovery order.
func (s *Series) InstanceUIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// InstanceCount returns the number of stored instances.
func (s *Series) InstanceCount() int { return len(s.order) }

// AddInstance stores a new instance. A SOPInstanceUID already present in the
// series is ErrDuplicateInstance; the existing instance is never overwritten.
func (s *Series) AddInstance(uid, filename string, tags map[string]Value) error {
	if _, ok := s.instances[uid]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateInstance, uid)
	}
	s.instances[uid] = &Instance{UID: uid, Filename: filename, tags: tags}
	s.order = append(s.order, uid)
	return nil
}

// Study is one imaging exam for one patient.
type Study struct {
	tags   map[string]Value
	series map[SeriesKey]*Series
	order  []SeriesKey
}

// Tag returns the named study tag value, Absent if never extracted.
func (st *Study) Tag(name string) Value {
	if v, ok := st.tags[name]; ok {
		return v
	}
	return Absent()
}

// Series returns a series by exact key.
func (st *Study) Series(key SeriesKey) (*Series, bool) {
	s, ok := st.series[key]
	return s, ok
}

// AddSeries creates a series under this study, or returns the existing one
// for the same key.
func (st *Study) AddSeries(key SeriesKey, tags map[string]Value) *Series {
	if s, ok := st.series[key]; ok {
		return s
	}
	s := &Series{
		key:       key,
		tags:      tags,
		instances: make(map[string]*Instance),
	}
	st.series[key] = s
	st.order = append(st.order, key)
	return s
}

// SeriesKeys returns series keys in discovery order.
func (st *Study) SeriesKeys() []SeriesKey {
	out := make([]SeriesKey, len(st.order))
	copy(out, st.order)
	return out
}

// Catalog is the root of the index. It is mutated only while a scan folds
// records into it and is read-only afterwards.
type Catalog struct {
	RootFolder string
	Label      string
	mode       Mode
	studies    map[string]*Study
	order      []string
}

// New creates an empty catalog for the given root folder.
func New(root, label string, mode Mode) *Catalog {
	return &Catalog{
		RootFolder: root,
		Label:      label,
		mode:       mode,
		studies:    make(map[string]*Study),
	}
}

// Mode returns the grouping mode fixed at construction.
func (c *Catalog) Mode() Mode { return c.mode }

// IsEmpty reports whether the catalog holds no studies.
func (c *Catalog) IsEmpty() bool { return len(c.studies) == 0 }

// StudyCount returns the number of studies.
func (c *Catalog) StudyCount() int { return len(c.studies) }

// SeriesCount returns the number of series across all studies.
func (c *Catalog) SeriesCount() int {
	n := 0
	for _, st := range c.studies {
		n += len(st.order)
	}
	return n
}

// InstanceCount returns the number of instances across all series.
func (c *Catalog) InstanceCount() int {
	n := 0
	for _, st := range c.studies {
		for _, s := range st.series {
			n += len(s.order)
		}
	}
	return n
}

// StudyUIDs returns StudyInstanceUIDs in discovery order.
func (c *Catalog) StudyUIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Study returns a study by StudyInstanceUID.
func (c *Catalog) Study(uid string) (*Study, bool) {
	st, ok := c.studies[uid]
	return st, ok
}

// AddStudy creates a study, or returns the existing one for the same UID.
func (c *Catalog) AddStudy(uid string, tags map[string]Value) *Study {
	if st, ok := c.studies[uid]; ok {
		return st
	}
	st := &Study{
		tags:   tags,
		series: make(map[SeriesKey]*Series),
	}
	c.studies[uid] = st
	c.order = append(c.order, uid)
	return st
}

func (c *Catalog) study(uid string) (*Study, error) {
	st, ok := c.studies[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStudyNotFound, uid)
	}
	return st, nil
}

// matchSeries resolves a series query argument against a study. The argument
// may be a bare SeriesInstanceUID, matching every series with that UID, or an
// exact "<uid>#<number>" key. Matches come back in discovery order.
func (st *Study) matchSeries(seriesUID string) []*Series {
	want := parseSeriesKey(seriesUID)
	var out []*Series
	for _, key := range st.order {
		if key == want || (want.Number == "" && key.UID == want.UID) {
			out = append(out, st.series[key])
		}
	}
	return out
}

// SeriesUIDs returns the SeriesInstanceUIDs under a study in discovery
// order. Under (UID, number) keying a UID shared by several series appears
// once per series.
func (c *Catalog) SeriesUIDs(studyUID string) ([]string, error) {
	st, err := c.study(studyUID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(st.order))
	for i, key := range st.order {
		out[i] = key.UID
	}
	return out, nil
}

// SeriesKeys returns the full series keys under a study in discovery order.
func (c *Catalog) SeriesKeys(studyUID string) ([]SeriesKey, error) {
	st, err := c.study(studyUID)
	if err != nil {
		return nil, err
	}
	return st.SeriesKeys(), nil
}

// InstanceUIDs returns the SOPInstanceUIDs of a series in discovery order.
func (c *Catalog) InstanceUIDs(studyUID, seriesUID string) ([]string, error) {
	st, err := c.study(studyUID)
	if err != nil {
		return nil, err
	}
	matches := st.matchSeries(seriesUID)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, seriesUID)
	}
	var out []string
	for _, s := range matches {
		out = append(out, s.order...)
	}
	return out, nil
}

// Filenames returns the relative paths of a series' files in discovery order.
func (c *Catalog) Filenames(studyUID, seriesUID string) ([]string, error) {
	st, err := c.study(studyUID)
	if err != nil {
		return nil, err
	}
	matches := st.matchSeries(seriesUID)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, seriesUID)
	}
	var out []string
	for _, s := range matches {
		for _, uid := range s.order {
			out = append(out, s.instances[uid].Filename)
		}
	}
	return out, nil
}

// FrameFilename returns the filename of the frame-th instance of a series
// under the frame ordering: ascending TriggerTime with absent trigger times
// last, ties broken by SOPInstanceUID. Frame indices are zero-based.
func (c *Catalog) FrameFilename(studyUID, seriesUID string, frame int) (string, error) {
	st, err := c.study(studyUID)
	if err != nil {
		return "", err
	}
	matches := st.matchSeries(seriesUID)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrSeriesNotFound, seriesUID)
	}
	var instances []*Instance
	for _, s := range matches {
		for _, uid := range s.order {
			instances = append(instances, s.instances[uid])
		}
	}
	sort.Slice(instances, func(i, j int) bool {
		ti, iok := instances[i].Tag("TriggerTime").AsFloat()
		tj, jok := instances[j].Tag("TriggerTime").AsFloat()
		if iok != jok {
			return iok
		}
		if iok && ti != tj {
			return ti < tj
		}
		return instances[i].UID < instances[j].UID
	})
	if frame < 0 || frame >= len(instances) {
		return "", fmt.Errorf("%w: frame %d of %d", ErrFrameOutOfRange, frame, len(instances))
	}
	return instances[frame].Filename, nil
}

// AllFilenames returns every stored filename across the whole catalog in
// discovery order.
func (c *Catalog) AllFilenames() []string {
	var out []string
	for _, studyUID := range c.order {
		st := c.studies[studyUID]
		for _, key := range st.order {
			s := st.series[key]
			for _, uid := range s.order {
				out = append(out, s.instances[uid].Filename)
			}
		}
	}
	return out
}

// InstanceValues returns one tag value per instance of a series, in
// discovery order.
func (c *Catalog) InstanceValues(studyUID, seriesUID, tagName string) ([]Value, error) {
	st, err := c.study(studyUID)
	if err != nil {
		return nil, err
	}
	matches := st.matchSeries(seriesUID)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, seriesUID)
	}
	var out []Value
	for _, s := range matches {
		for _, uid := range s.order {
			out = append(out, s.instances[uid].Tag(tagName))
		}
	}
	return out, nil
}

// PatientID returns the PatientID of the given study, or of the first study
// in discovery order when no UID is given. An empty catalog is
// ErrEmptyCatalog.
func (c *Catalog) PatientID(studyUID ...string) (Value, error) {
	uid := ""
	if len(studyUID) > 0 {
		uid = studyUID[0]
	} else {
		if len(c.order) == 0 {
			return Absent(), ErrEmptyCatalog
		}
		uid = c.order[0]
	}
	st, err := c.study(uid)
	if err != nil {
		return Absent(), err
	}
	return st.Tag("PatientID"), nil
}

// Summary renders a human-readable outline of the catalog.
func (c *Catalog) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d studies):\n", c.Label, len(c.order))
	for _, studyUID := range c.order {
		st := c.studies[studyUID]
		for _, t := range StudyTagNames {
			if v, ok := st.tags[t]; ok && !v.IsAbsent() {
				fmt.Fprintf(&b, "  %s: %s\n", t, v)
			}
		}
		fmt.Fprintf(&b, "  %s (%d series):\n", studyUID, len(st.order))
		for _, key := range st.order {
			s := st.series[key]
			fmt.Fprintf(&b, "    %s: %d files\n", key, len(s.order))
			for _, t := range SeriesTagNames {
				if v, ok := s.tags[t]; ok && !v.IsAbsent() {
					fmt.Fprintf(&b, "      %s: %s\n", t, v)
				}
			}
		}
	}
	return b.String()
}

// Equal reports whether two catalogs hold the same tree, tag values, and
// discovery order.
func (c *Catalog) Equal(o *Catalog) bool {
	if c.RootFolder != o.RootFolder || c.Label != o.Label || c.mode != o.mode {
		return false
	}
	if len(c.order) != len(o.order) {
		return false
	}
	for i, studyUID := range c.order {
		if o.order[i] != studyUID {
			return false
		}
		a, b := c.studies[studyUID], o.studies[studyUID]
		if !tagsEqual(a.tags, b.tags) || len(a.order) != len(b.order) {
			return false
		}
		for j, key := range a.order {
			if b.order[j] != key {
				return false
			}
			sa, sb := a.series[key], b.series[key]
			if !tagsEqual(sa.tags, sb.tags) || len(sa.order) != len(sb.order) {
				return false
			}
			for k, uid := range sa.order {
				if sb.order[k] != uid {
					return false
				}
				ia, ib := sa.instances[uid], sb.instances[uid]
				if ia.Filename != ib.Filename || !tagsEqual(ia.tags, ib.tags) {
					return false
				}
			}
		}
	}
	return true
}

func tagsEqual(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if !v.Equal(b[k]) {
			return false
		}
	}
	return true
}
