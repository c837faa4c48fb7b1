package export

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/trace"
)

// CSVExporter writes the snapshot as two sections in one file: the
// traceability matrix, a blank line, then the full test case table. Fields
// containing delimiters or quotes are quoted with doubled quote characters.
type CSVExporter struct{}

func (e *CSVExporter) ContentType() string { return "text/csv" }

func (e *CSVExporter) Export(snap *trace.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{{"TRACEABILITY MATRIX"}, matrixHeader}
	for _, row := range snap.Rows {
		ids := make([]string, len(row.TestCases))
		for i, tc := range row.TestCases {
			ids[i] = tc.ID
		}
		records = append(records, []string{
			row.Requirement.ID,
			row.Requirement.Description,
			strings.Join(ids, ", "),
			strings.Join(row.ComplianceRefs, ", "),
			string(row.Status),
		})
	}

	records = append(records, []string{""}, []string{"TEST CASES"}, caseHeader)
	for _, tc := range snap.TestCases {
		records = append(records, []string{
			tc.ID,
			tc.Title,
			tc.RequirementID,
			strings.Join(tc.Steps, " | "),
			tc.ExpectedResult,
			string(tc.Priority),
			strings.Join(tc.ComplianceRefs, ", "),
			string(tc.Status),
		})
	}

	if err := w.WriteAll(records); err != nil {
		return nil, fault.Wrap(fault.KindExport, "csv write failed", err)
	}
	return buf.Bytes(), nil
}
