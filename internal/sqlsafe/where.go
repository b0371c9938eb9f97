// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlsafe

import (
	"fmt"
	"strings"
)

// FilesArrayColumns are the Array(String) columns of the portal files table.
var FilesArrayColumns = map[string]bool{
	"organType":             true,
	"Gender":                true,
	"Ethnicity":             true,
	"Race":                  true,
	"VitalStatus":           true,
	"TreatmentType":         true,
	"PrimaryDiagnosis":      true,
	"TissueorOrganofOrigin": true,
	"biospecimenIds":        true,
	"publicationIds":        true,
	"diagnosisIds":          true,
	"demographicsIds":       true,
	"therapyIds":            true,
}

// Filter is a column substring match. Empty values are skipped.
type Filter struct {
	Column string
	Value  string
}

// BuildWhere renders filters as case-insensitive substring predicates, in
// order. Columns in arrayCols use arrayExists. Column names are trusted.
func BuildWhere(filters []Filter, arrayCols map[string]bool) []string {
	var clauses []string
	for _, f := range filters {
		if f.Value == "" {
			continue
		}
		escaped := EscapeString(f.Value)
		if arrayCols[f.Column] {
			clauses = append(clauses, fmt.Sprintf("arrayExists(x -> x ILIKE '%%%s%%', %s)", escaped, f.Column))
		} else {
			clauses = append(clauses, fmt.Sprintf("%s ILIKE '%%%s%%'", f.Column, escaped))
		}
	}
	return clauses
}

// InList renders values as a quoted, comma-separated IN list body.
func InList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return strings.Join(quoted, ", ")
}
