// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package portal

import (
	"fmt"
	"sort"
	"strings"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/sqlsafe"
)

// Row limits.
const (
	DefaultLimit    = 100
	SQLDefaultLimit = 1000
)

// drsColumn extracts the CRDC DRS URI from the viewers JSON.
const drsColumn = "JSONExtractString(viewers, 'crdcGc', 'drs_uri') as drs_uri"

var fileColumns = []string{
	"DataFileID", "Filename", "FileFormat", "assayName", "level",
	"organType", "atlas_name", "synapseId", drsColumn, "downloadSource",
}

// FileFilter selects rows of the files table. Empty fields are ignored.
type FileFilter struct {
	Organ       string
	Assay       string
	Atlas       string
	Level       string
	FileFormat  string
	Filename    string
	DataFileIDs []string
	Limit       int
}

// FilesSQL builds the files query for f.
func FilesSQL(f FileFilter) string {
	where := sqlsafe.BuildWhere([]sqlsafe.Filter{
		{Column: "organType", Value: f.Organ},
		{Column: "assayName", Value: f.Assay},
		{Column: "atlas_name", Value: f.Atlas},
		{Column: "level", Value: f.Level},
		{Column: "FileFormat", Value: f.FileFormat},
		{Column: "Filename", Value: f.Filename},
	}, sqlsafe.FilesArrayColumns)
	if len(f.DataFileIDs) > 0 {
		where = append(where, fmt.Sprintf("DataFileID IN (%s)", sqlsafe.InList(f.DataFileIDs)))
	}
	return selectSQL(strings.Join(fileColumns, ", "), "files", where, limitOr(f.Limit, DefaultLimit))
}

// ClinicalTables are the queryable clinical tables.
var ClinicalTables = []string{"cases", "demographics", "diagnosis", "specimen"}

// ClinicalFilter selects rows of a clinical table. Filters that do not
// apply to Table are ignored.
type ClinicalFilter struct {
	Table            string
	Atlas            string
	Organ            string
	Gender           string
	Race             string
	PrimaryDiagnosis string
	Preservation     string
	TissueType       string
	Limit            int
}

func (f ClinicalFilter) filters() []sqlsafe.Filter {
	atlas := sqlsafe.Filter{Column: "atlas_name", Value: f.Atlas}
	organ := sqlsafe.Filter{Column: "TissueorOrganofOrigin", Value: f.Organ}
	switch f.Table {
	case "demographics":
		return []sqlsafe.Filter{atlas,
			{Column: "Gender", Value: f.Gender},
			{Column: "Race", Value: f.Race}}
	case "diagnosis":
		return []sqlsafe.Filter{atlas, organ,
			{Column: "PrimaryDiagnosis", Value: f.PrimaryDiagnosis}}
	case "cases":
		return []sqlsafe.Filter{atlas, organ}
	case "specimen":
		return []sqlsafe.Filter{atlas, organ,
			{Column: "PreservationMethod", Value: f.Preservation},
			{Column: "TumorTissueType", Value: f.TissueType}}
	}
	return nil
}

// ValidateClinicalTable rejects tables outside ClinicalTables.
func ValidateClinicalTable(table string) error {
	i := sort.SearchStrings(ClinicalTables, table)
	if i < len(ClinicalTables) && ClinicalTables[i] == table {
		return nil
	}
	return herrors.Newf(herrors.InvalidInput, "Invalid table '%s'. Must be one of: %s",
		table, strings.Join(ClinicalTables, ", "))
}

// ClinicalSQL builds the query for a clinical table.
func ClinicalSQL(f ClinicalFilter) (string, error) {
	if err := ValidateClinicalTable(f.Table); err != nil {
		return "", err
	}
	where := sqlsafe.BuildWhere(f.filters(), nil)
	return selectSQL("*", f.Table, where, limitOr(f.Limit, DefaultLimit)), nil
}

// ManifestSQL looks up download coordinates for ids.
func ManifestSQL(ids []string) string {
	return "SELECT DataFileID, Filename, synapseId,\n" +
		"       " + drsColumn + ",\n" +
		"       downloadSource\n" +
		"FROM files\n" +
		"WHERE DataFileID IN (" + sqlsafe.InList(ids) + ")"
}

// DescribeSQL returns the schema and count statements for table.
func DescribeSQL(table string) (describe, count string, err error) {
	if err := sqlsafe.ValidateTableName(table); err != nil {
		return "", "", err
	}
	return "DESCRIBE " + table, "SELECT count() as cnt FROM " + table, nil
}

// NamedQuery is one summary aggregation.
type NamedQuery struct {
	Key   string
	Label string
	SQL   string
}

// SummaryQueries are run in order by Summary.
var SummaryQueries = []NamedQuery{
	{"files_by_atlas", "Files by atlas",
		"SELECT atlas_name, count() as file_count FROM files GROUP BY atlas_name ORDER BY file_count DESC"},
	{"files_by_assay", "Files by assay",
		"SELECT assayName, count() as file_count FROM files GROUP BY assayName ORDER BY file_count DESC"},
	{"files_by_organ", "Files by organ",
		"SELECT arrayJoin(organType) as organ, count() as file_count FROM files GROUP BY organ ORDER BY file_count DESC"},
	{"participants_by_atlas", "Participants by atlas",
		"SELECT atlas_name, count() as participant_count FROM demographics GROUP BY atlas_name ORDER BY participant_count DESC"},
	{"total_files", "Total files", "SELECT count() as total FROM files"},
	{"total_participants", "Total participants", "SELECT count() as total FROM demographics"},
}

func selectSQL(cols, table string, where []string, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&b, "\nLIMIT %d", limit)
	return b.String()
}

func limitOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
