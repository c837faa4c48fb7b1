package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/trace"
)

// PDFExporter renders the snapshot as a report: a traceability summary per
// requirement followed by the detail of each test case.
type PDFExporter struct{}

func (e *PDFExporter) ContentType() string { return "application/pdf" }

func (e *PDFExporter) Export(snap *trace.Snapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Test Case Traceability Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Document %s, generated %s", snap.DocumentID, snap.GeneratedAt.Format("2006-01-02 15:04:05 UTC")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Traceability Matrix", "", 1, "L", false, 0, "")
	for _, row := range snap.Rows {
		ids := make([]string, len(row.TestCases))
		for i, tc := range row.TestCases {
			ids[i] = tc.ID
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  [%s]", row.Requirement.ID, row.Status), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, row.Requirement.Description, "", "L", false)
		if len(ids) > 0 {
			pdf.MultiCell(0, 5, "Test cases: "+strings.Join(ids, ", "), "", "L", false)
		}
		if len(row.ComplianceRefs) > 0 {
			pdf.MultiCell(0, 5, "Compliance: "+strings.Join(row.ComplianceRefs, ", "), "", "L", false)
		}
		pdf.Ln(2)
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Test Cases", "", 1, "L", false, 0, "")
	for _, tc := range snap.TestCases {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  %s  [%s, %s]", tc.ID, tc.Title, tc.Priority, tc.Status), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for i, step := range tc.Steps {
			pdf.MultiCell(0, 5, fmt.Sprintf("%d. %s", i+1, step), "", "L", false)
		}
		pdf.MultiCell(0, 5, "Expected: "+tc.ExpectedResult, "", "L", false)
		if len(tc.ComplianceRefs) > 0 {
			pdf.MultiCell(0, 5, "Compliance: "+strings.Join(tc.ComplianceRefs, ", "), "", "L", false)
		}
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fault.Wrap(fault.KindExport, "pdf write failed", err)
	}
	return buf.Bytes(), nil
}
