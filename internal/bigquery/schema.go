// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bigquery

import "strings"

// SchemaSummary describes the key HTAN tables for natural-language query
// authoring.
const SchemaSummary = `=== HTAN BigQuery Table Schemas (isb-cgc-bq.HTAN) ===
Tables use _current suffix, which always points to the latest release.
For reproducible analyses with a specific version, use isb-cgc-bq.HTAN_versioned with _rN suffixes.

--- Clinical tables ---

Table: clinical_tier1_demographics_current
  HTAN_Participant_ID (STRING) - Participant identifier, e.g. HTA1_1001
  HTAN_Center (STRING) - Atlas center, e.g. 'HTAN HTAPP', 'HTAN HMS'
  Age_at_Diagnosis (INTEGER) - Age in days at diagnosis
  Gender (STRING) - male, female
  Race (STRING) - e.g. white, black or african american, asian
  Ethnicity (STRING) - e.g. not hispanic or latino, hispanic or latino
  Vital_Status (STRING) - Alive, Dead

Table: clinical_tier1_diagnosis_current
  HTAN_Participant_ID (STRING)
  HTAN_Center (STRING)
  Primary_Diagnosis (STRING) - ICD-O-3 diagnosis
  Site_of_Resection_or_Biopsy (STRING)
  Tissue_or_Organ_of_Origin (STRING)
  Tumor_Grade (STRING) - G1, G2, G3
  AJCC_Pathologic_Stage (STRING)
  Morphology (STRING)

--- Biospecimen ---

Table: biospecimen_current
  HTAN_Biospecimen_ID (STRING) - e.g. HTA1_1001_001
  HTAN_Participant_ID (STRING)
  HTAN_Center (STRING)
  Biospecimen_Type (STRING)
  Preservation_Method (STRING)
  Tumor_Tissue_Type (STRING)

--- Assay metadata ---

Table: scRNAseq_level1_metadata_current (also level2, level3, level4)
  HTAN_Parent_Biospecimen_ID (STRING)
  HTAN_Data_File_ID (STRING)
  Library_Construction_Method (STRING)
  Filename (STRING)
  File_Size (INTEGER) -- file size in bytes (present in ALL assay metadata tables)
  entityId (STRING) -- Synapse ID (present in ALL assay metadata tables)
  HTAN_Center (STRING)

=== Notes ===
- Join clinical tables on HTAN_Participant_ID
- Join assay to biospecimen on HTAN_Parent_Biospecimen_ID = HTAN_Biospecimen_ID
- Dataset: isb-cgc-bq.HTAN (use fully qualified table names with _current suffix)
- File_Size (INTEGER, bytes) and entityId (STRING, Synapse ID) exist in ALL assay metadata tables`

// SchemaContext returns the prompt context for turning question into SQL.
func SchemaContext(question string) string {
	var b strings.Builder
	b.WriteString("=== HTAN BigQuery Natural Language Query ===\n\n")
	b.WriteString("USER QUESTION: " + question + "\n\n")
	b.WriteString(SchemaSummary + "\n\n")
	b.WriteString("=== INSTRUCTIONS ===\n")
	b.WriteString("Generate a safe read-only SQL query against isb-cgc-bq.HTAN tables.\n")
	b.WriteString("Then execute with: htan query bq sql \"YOUR_SQL_HERE\"\n")
	return b.String()
}
