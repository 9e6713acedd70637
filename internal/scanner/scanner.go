package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/opencmr/dicomdir/internal/catalog"
	"github.com/opencmr/dicomdir/internal/dicomfile"
)

// ErrMultipleStudies means a single-study scan observed a second
// StudyInstanceUID or a second PatientID. It is fatal: no partial catalog is
// returned.
var ErrMultipleStudies = errors.New("multiple studies in folder")

// DuplicatePolicy selects what a scan does with a repeated SOPInstanceUID.
type DuplicatePolicy string

const (
	// DuplicateFail aborts the scan. Default in single-study mode.
	DuplicateFail DuplicatePolicy = "fail"
	// DuplicateSkip keeps the first instance seen in discovery order and
	// records a skip. Default in multi-study mode.
	DuplicateSkip DuplicatePolicy = "skip"
)

// Options parameterize a scan. Grouping behavior is fixed here at
// construction, never inferred from the data.
type Options struct {
	Mode       catalog.Mode
	Duplicates DuplicatePolicy // empty selects the mode's default
	Label      string          // empty defaults to the root folder's base name
	Ignore     []string        // glob patterns relative to the root
	Workers    int             // parallel classify+extract; <=0 means GOMAXPROCS
	Reporter   ProgressReporter
}

// DefaultOptions returns a lenient multi-study scan configuration.
func DefaultOptions() Options {
	return Options{
		Mode:       catalog.ModeMulti,
		Duplicates: DuplicateSkip,
	}
}

// Stats summarizes one scan pass.
type Stats struct {
	FilesFound        int
	Recognized        int
	Skipped           int
	DuplicatesSkipped int
	Elapsed           time.Duration
}

// fileResult is the per-file outcome of classification and extraction. It is
// a discriminated result: either skipped with a reason, or a full extracted
// tag set ready to fold.
type fileResult struct {
	relPath string
	skipped bool
	reason  string

	studyUID     string
	seriesUID    string
	seriesNumber string
	sopUID       string
	patientID    string

	studyTags    map[string]catalog.Value
	seriesTags   map[string]catalog.Value
	instanceTags map[string]catalog.Value
}

// Scan walks root, classifies and extracts every file in parallel, and folds
// the results into a catalog sequentially in discovery order. Classification
// and extraction are pure and independent per file; only the fold into the
// shared tree is serialized, so result order (not completion order)
// determines discovery order.
func Scan(ctx context.Context, root string, opts Options) (*catalog.Catalog, Stats, error) {
	start := time.Now()
	stats := Stats{}

	reporter := opts.Reporter
	if reporter == nil {
		reporter = NoOpReporter{}
	}
	if opts.Duplicates == "" {
		if opts.Mode == catalog.ModeSingle {
			opts.Duplicates = DuplicateFail
		} else {
			opts.Duplicates = DuplicateSkip
		}
	}
	label := opts.Label
	if label == "" {
		label = filepath.Base(root)
	}

	ignore, err := CompileIgnore(opts.Ignore)
	if err != nil {
		return nil, stats, err
	}
	paths, err := Discover(root, ignore)
	if err != nil {
		return nil, stats, err
	}
	stats.FilesFound = len(paths)
	reporter.OnDiscoveryComplete(len(paths))

	results := make([]*fileResult, len(paths))
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results[idx] = extractOne(root, paths[idx])
			}
		}()
	}
	for idx := range paths {
		select {
		case jobs <- idx:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	cat := catalog.New(root, label, opts.Mode)
	for _, res := range results {
		if err := foldOne(cat, opts, res, &stats, reporter); err != nil {
			return nil, stats, err
		}
	}

	if opts.Mode == catalog.ModeSingle {
		if err := verifySingleStudy(cat); err != nil {
			return nil, stats, err
		}
	}

	stats.Elapsed = time.Since(start)
	reporter.OnScanComplete(stats)
	return cat, stats, nil
}

// extractOne classifies a file and extracts all three tag levels. It is pure
// and safe to run concurrently.
func extractOne(root, relPath string) *fileResult {
	res := &fileResult{relPath: relPath}

	rec, err := dicomfile.Open(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		res.skipped = true
		res.reason = "not a DICOM file"
		return res
	}

	res.studyUID = rec.StringTag("StudyInstanceUID")
	res.seriesUID = rec.StringTag("SeriesInstanceUID")
	res.seriesNumber = rec.StringTag("SeriesNumber")
	res.sopUID = rec.StringTag("SOPInstanceUID")
	res.patientID = rec.StringTag("PatientID")

	switch {
	case res.studyUID == "":
		res.skipped, res.reason = true, "missing StudyInstanceUID"
	case res.seriesUID == "":
		res.skipped, res.reason = true, "missing SeriesInstanceUID"
	case res.sopUID == "":
		res.skipped, res.reason = true, "missing SOPInstanceUID"
	}
	if res.skipped {
		return res
	}

	res.studyTags = rec.ExtractAll(dicomfile.StudySpecs)
	res.seriesTags = rec.ExtractAll(dicomfile.SeriesSpecs)
	res.instanceTags = rec.ExtractAll(dicomfile.InstanceSpecs)

	// Second attempt for geometry: old acquisitions carry the retired
	// unqualified tags instead of the Patient-qualified ones.
	for qualified := range dicomfile.GeometryFallbacks {
		if res.instanceTags[qualified].IsAbsent() {
			res.instanceTags[qualified] = rec.ExtractWithFallback(qualified)
		}
	}
	return res
}

// foldOne inserts one extraction result into the catalog tree.
func foldOne(cat *catalog.Catalog, opts Options, res *fileResult, stats *Stats, reporter ProgressReporter) error {
	if res.skipped {
		stats.Skipped++
		reporter.OnFileSkipped(res.relPath, res.reason)
		return nil
	}

	if opts.Mode == catalog.ModeSingle && !cat.IsEmpty() {
		firstUID := cat.StudyUIDs()[0]
		if res.studyUID != firstUID {
			return fmt.Errorf("%w: %s and %s", ErrMultipleStudies, firstUID, res.studyUID)
		}
		firstPatient, _ := cat.PatientID()
		if got, _ := firstPatient.AsString(); got != res.patientID {
			return fmt.Errorf("%w: patient %q and %q", ErrMultipleStudies, got, res.patientID)
		}
	}

	study := cat.AddStudy(res.studyUID, res.studyTags)

	key := catalog.SeriesKey{UID: res.seriesUID}
	if opts.Mode == catalog.ModeSingle {
		key.Number = res.seriesNumber
	}
	series := study.AddSeries(key, res.seriesTags)

	if series.HasInstance(res.sopUID) {
		if opts.Duplicates == DuplicateFail {
			return fmt.Errorf("%w in %s", catalog.ErrDuplicateInstance, res.relPath)
		}
		stats.DuplicatesSkipped++
		reporter.OnFileSkipped(res.relPath, "duplicate SOPInstanceUID "+res.sopUID)
		return nil
	}

	if err := series.AddInstance(res.sopUID, res.relPath, res.instanceTags); err != nil {
		return err
	}
	stats.Recognized++
	reporter.OnFileScanned(res.relPath)
	return nil
}

// verifySingleStudy is the post-scan consistency check for single-study
// mode: exactly one StudyInstanceUID and one PatientID across the catalog.
func verifySingleStudy(cat *catalog.Catalog) error {
	uids := cat.StudyUIDs()
	if len(uids) > 1 {
		return fmt.Errorf("%w: found %d studies", ErrMultipleStudies, len(uids))
	}
	patients := make(map[string]bool)
	for _, uid := range uids {
		pid, err := cat.PatientID(uid)
		if err != nil {
			return err
		}
		patients[pid.String()] = true
	}
	if len(patients) > 1 {
		return fmt.Errorf("%w: found %d patients", ErrMultipleStudies, len(patients))
	}
	return nil
}
