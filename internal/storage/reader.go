package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/opencmr/dicomdir/internal/catalog"
)

// CatalogReader reconstructs a catalog from a database written by
// CatalogWriter.
type CatalogReader struct {
	db *sql.DB
}

// NewCatalogReader creates a CatalogReader.
func NewCatalogReader(db *sql.DB) *CatalogReader {
	return &CatalogReader{db: db}
}

// ReadCatalog rebuilds the catalog, equal (under Snapshot comparison) to the
// one that was written.
func (r *CatalogReader) ReadCatalog() (*catalog.Catalog, error) {
	meta, err := r.readMeta()
	if err != nil {
		return nil, err
	}
	mode := catalog.Mode(meta["mode"])
	switch mode {
	case catalog.ModeMulti, catalog.ModeSingle:
	default:
		return nil, fmt.Errorf("unknown catalog mode %q in database", meta["mode"])
	}

	cat := catalog.New(meta["root_folder"], meta["label"], mode)
	if err := r.readStudies(cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (r *CatalogReader) readMeta() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM catalog_meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan catalog meta: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, required := range []string{"root_folder", "mode"} {
		if _, ok := meta[required]; !ok {
			return nil, fmt.Errorf("catalog meta is missing %s", required)
		}
	}
	return meta, nil
}

func (r *CatalogReader) readStudies(cat *catalog.Catalog) error {
	cols := append([]string{"study_uid"}, columnNames(studyTagColumns)...)
	rows, err := sq.Select(cols...).
		From("studies").
		OrderBy("position").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to read studies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var studyUID string
		raws := make([]sql.NullString, len(studyTagColumns))
		dest := []interface{}{&studyUID}
		for i := range raws {
			dest = append(dest, &raws[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan study: %w", err)
		}
		tags, err := decodeTags(studyTagColumns, raws)
		if err != nil {
			return fmt.Errorf("study %s: %w", studyUID, err)
		}
		study := cat.AddStudy(studyUID, tags)
		if err := r.readSeries(study, studyUID); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *CatalogReader) readSeries(study *catalog.Study, studyUID string) error {
	cols := append([]string{"series_uid", "key_number"}, columnNames(seriesTagColumns)...)
	rows, err := sq.Select(cols...).
		From("series").
		Where(sq.Eq{"study_uid": studyUID}).
		OrderBy("position").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to read series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seriesUID, keyNumber string
		raws := make([]sql.NullString, len(seriesTagColumns))
		dest := []interface{}{&seriesUID, &keyNumber}
		for i := range raws {
			dest = append(dest, &raws[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan series: %w", err)
		}
		tags, err := decodeTags(seriesTagColumns, raws)
		if err != nil {
			return fmt.Errorf("series %s: %w", seriesUID, err)
		}
		key := catalog.SeriesKey{UID: seriesUID, Number: keyNumber}
		series := study.AddSeries(key, tags)
		if err := r.readInstances(series, studyUID, key); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *CatalogReader) readInstances(series *catalog.Series, studyUID string, key catalog.SeriesKey) error {
	cols := append([]string{"sop_uid", "filename"}, columnNames(instanceTagColumns)...)
	rows, err := sq.Select(cols...).
		From("instances").
		Where(sq.Eq{"study_uid": studyUID, "series_uid": key.UID, "key_number": key.Number}).
		OrderBy("position").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to read instances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sopUID, filename string
		raws := make([]sql.NullString, len(instanceTagColumns))
		dest := []interface{}{&sopUID, &filename}
		for i := range raws {
			dest = append(dest, &raws[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan instance: %w", err)
		}
		tags, err := decodeTags(instanceTagColumns, raws)
		if err != nil {
			return fmt.Errorf("instance %s: %w", sopUID, err)
		}
		if err := series.AddInstance(sopUID, filename, tags); err != nil {
			return fmt.Errorf("instance %s: %w", sopUID, err)
		}
	}
	return rows.Err()
}

func decodeTags(cols []tagColumn, raws []sql.NullString) (map[string]catalog.Value, error) {
	tags := make(map[string]catalog.Value, len(cols))
	for i, tc := range cols {
		if !raws[i].Valid {
			tags[tc.keyword] = catalog.Absent()
			continue
		}
		var v catalog.Value
		if err := json.Unmarshal([]byte(strings.TrimSpace(raws[i].String)), &v); err != nil {
			return nil, fmt.Errorf("bad %s value: %w", tc.keyword, err)
		}
		tags[tc.keyword] = v
	}
	return tags, nil
}
