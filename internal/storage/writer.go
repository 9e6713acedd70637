package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/opencmr/dicomdir/internal/catalog"
)

// CatalogWriter writes a catalog into SQLite.
type CatalogWriter struct {
	db *sql.DB
}

// NewCatalogWriter creates a CatalogWriter. The DB must have the schema
// already created via CreateSchema.
func NewCatalogWriter(db *sql.DB) *CatalogWriter {
	return &CatalogWriter{db: db}
}

// WriteCatalog replaces the database contents with the given catalog in one
// transaction. Discovery order is preserved in the position columns.
func (w *CatalogWriter) WriteCatalog(cat *catalog.Catalog) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	for _, table := range []string{"instances", "series", "studies"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	meta := map[string]string{
		"root_folder": cat.RootFolder,
		"label":       cat.Label,
		"mode":        string(cat.Mode()),
	}
	for k, v := range meta {
		if _, err := sq.Insert("catalog_meta").
			Columns("key", "value").
			Values(k, v).
			Options("OR REPLACE").
			RunWith(tx).
			Exec(); err != nil {
			return fmt.Errorf("failed to write catalog meta %s: %w", k, err)
		}
	}

	for studyPos, studyUID := range cat.StudyUIDs() {
		study, _ := cat.Study(studyUID)
		if err := insertStudy(tx, studyUID, studyPos, study); err != nil {
			return err
		}
		for seriesPos, key := range study.SeriesKeys() {
			series, _ := study.Series(key)
			if err := insertSeries(tx, studyUID, key, seriesPos, series); err != nil {
				return err
			}
			for instPos, sopUID := range series.InstanceUIDs() {
				inst, _ := series.Instance(sopUID)
				if err := insertInstance(tx, studyUID, key, sopUID, instPos, inst); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	return nil
}

func insertStudy(tx *sql.Tx, studyUID string, pos int, study *catalog.Study) error {
	cols := append([]string{"study_uid", "position"}, columnNames(studyTagColumns)...)
	vals := []interface{}{studyUID, pos}
	for _, tc := range studyTagColumns {
		enc, err := encodeValue(study.Tag(tc.keyword))
		if err != nil {
			return fmt.Errorf("failed to encode %s for study %s: %w", tc.keyword, studyUID, err)
		}
		vals = append(vals, enc)
	}
	if _, err := sq.Insert("studies").Columns(cols...).Values(vals...).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to insert study %s: %w", studyUID, err)
	}
	return nil
}

func insertSeries(tx *sql.Tx, studyUID string, key catalog.SeriesKey, pos int, series *catalog.Series) error {
	cols := append([]string{"study_uid", "series_uid", "key_number", "position"}, columnNames(seriesTagColumns)...)
	vals := []interface{}{studyUID, key.UID, key.Number, pos}
	for _, tc := range seriesTagColumns {
		enc, err := encodeValue(series.Tag(tc.keyword))
		if err != nil {
			return fmt.Errorf("failed to encode %s for series %s: %w", tc.keyword, key, err)
		}
		vals = append(vals, enc)
	}
	if _, err := sq.Insert("series").Columns(cols...).Values(vals...).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to insert series %s: %w", key, err)
	}
	return nil
}

func insertInstance(tx *sql.Tx, studyUID string, key catalog.SeriesKey, sopUID string, pos int, inst *catalog.Instance) error {
	cols := append(
		[]string{"study_uid", "series_uid", "key_number", "sop_uid", "position", "filename"},
		columnNames(instanceTagColumns)...,
	)
	vals := []interface{}{studyUID, key.UID, key.Number, sopUID, pos, inst.Filename}
	for _, tc := range instanceTagColumns {
		enc, err := encodeValue(inst.Tag(tc.keyword))
		if err != nil {
			return fmt.Errorf("failed to encode %s for instance %s: %w", tc.keyword, sopUID, err)
		}
		vals = append(vals, enc)
	}
	if _, err := sq.Insert("instances").Columns(cols...).Values(vals...).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to insert instance %s: %w", sopUID, err)
	}
	return nil
}

// encodeValue stores a tag value as its snapshot JSON, keeping the value
// kind intact. Absent encodes as SQL NULL rather than the string "null".
func encodeValue(v catalog.Value) (interface{}, error) {
	if v.IsAbsent() {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
