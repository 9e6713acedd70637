// Package storage exports a catalog into a relational SQLite snapshot and
// reads it back. The JSON snapshot stays the canonical interchange form;
// the database form exists for downstream tools that want SQL access to the
// same tree.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaVersion = "1"

const createMetaTable = `
CREATE TABLE IF NOT EXISTS catalog_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Tag columns hold the JSON encoding of the normalized value, so kind
// information (string vs number vs vector) survives the round trip. The
// position columns preserve discovery order.
const createStudiesTable = `
CREATE TABLE IF NOT EXISTS studies (
	study_uid          TEXT PRIMARY KEY,
	position           INTEGER NOT NULL,
	study_instance_uid TEXT,
	study_description  TEXT,
	study_date         TEXT,
	study_time         TEXT,
	patient_id         TEXT,
	manufacturer       TEXT,
	modality           TEXT
)`

const createSeriesTable = `
CREATE TABLE IF NOT EXISTS series (
	study_uid         TEXT NOT NULL,
	series_uid        TEXT NOT NULL,
	key_number        TEXT NOT NULL,
	position          INTEGER NOT NULL,
	series_instance_uid TEXT,
	series_number     TEXT,
	series_description TEXT,
	protocol_name     TEXT,
	sequence_name     TEXT,
	PRIMARY KEY (study_uid, series_uid, key_number),
	FOREIGN KEY (study_uid) REFERENCES studies(study_uid) ON DELETE CASCADE
)`

const createInstancesTable = `
CREATE TABLE IF NOT EXISTS instances (
	study_uid   TEXT NOT NULL,
	series_uid  TEXT NOT NULL,
	key_number  TEXT NOT NULL,
	sop_uid     TEXT NOT NULL,
	position    INTEGER NOT NULL,
	filename    TEXT NOT NULL,
	sop_instance_uid           TEXT,
	acquisition_time           TEXT,
	rows                       TEXT,
	columns                    TEXT,
	trigger_time               TEXT,
	slice_location             TEXT,
	slice_thickness            TEXT,
	pixel_representation       TEXT,
	pixel_spacing              TEXT,
	image_orientation_patient  TEXT,
	image_position_patient     TEXT,
	smallest_image_pixel_value TEXT,
	largest_image_pixel_value  TEXT,
	PRIMARY KEY (study_uid, series_uid, key_number, sop_uid),
	FOREIGN KEY (study_uid, series_uid, key_number)
		REFERENCES series(study_uid, series_uid, key_number) ON DELETE CASCADE
)`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_series_study ON series(study_uid, position)`,
	`CREATE INDEX IF NOT EXISTS idx_instances_series ON instances(study_uid, series_uid, key_number, position)`,
}

// Open opens (or creates) a catalog database with foreign keys enabled.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// CreateSchema creates all tables and indexes in one transaction.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"catalog_meta", createMetaTable},
		{"studies", createStudiesTable},
		{"series", createSeriesTable},
		{"instances", createInstancesTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}
	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO catalog_meta (key, value) VALUES ('schema_version', ?)`,
		schemaVersion,
	); err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// studyTagColumns maps study tag keywords to their columns, in column order.
var studyTagColumns = []tagColumn{
	{"study_instance_uid", "StudyInstanceUID"},
	{"study_description", "StudyDescription"},
	{"study_date", "StudyDate"},
	{"study_time", "StudyTime"},
	{"patient_id", "PatientID"},
	{"manufacturer", "Manufacturer"},
	{"modality", "Modality"},
}

var seriesTagColumns = []tagColumn{
	{"series_instance_uid", "SeriesInstanceUID"},
	{"series_number", "SeriesNumber"},
	{"series_description", "SeriesDescription"},
	{"protocol_name", "ProtocolName"},
	{"sequence_name", "SequenceName"},
}

var instanceTagColumns = []tagColumn{
	{"sop_instance_uid", "SOPInstanceUID"},
	{"acquisition_time", "AcquisitionTime"},
	{"rows", "Rows"},
	{"columns", "Columns"},
	{"trigger_time", "TriggerTime"},
	{"slice_location", "SliceLocation"},
	{"slice_thickness", "SliceThickness"},
	{"pixel_representation", "PixelRepresentation"},
	{"pixel_spacing", "PixelSpacing"},
	{"image_orientation_patient", "ImageOrientationPatient"},
	{"image_position_patient", "ImagePositionPatient"},
	{"smallest_image_pixel_value", "SmallestImagePixelValue"},
	{"largest_image_pixel_value", "LargestImagePixelValue"},
}

type tagColumn struct {
	column  string
	keyword string
}

func columnNames(cols []tagColumn) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.column
	}
	return out
}
