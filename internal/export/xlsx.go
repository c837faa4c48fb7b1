package export

import (
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/trace"
)

const (
	matrixSheet = "Traceability Matrix"
	casesSheet  = "Test Cases"
)

// XLSXExporter writes the snapshot as a workbook with one sheet for the
// traceability matrix and one for the full test case table.
type XLSXExporter struct{}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Export(snap *trace.Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", matrixSheet)
	if _, err := f.NewSheet(casesSheet); err != nil {
		return nil, fault.Wrap(fault.KindExport, "xlsx sheet creation failed", err)
	}

	if err := writeRow(f, matrixSheet, 1, matrixHeader); err != nil {
		return nil, err
	}
	for i, row := range snap.Rows {
		ids := make([]string, len(row.TestCases))
		for j, tc := range row.TestCases {
			ids[j] = tc.ID
		}
		cells := []string{
			row.Requirement.ID,
			row.Requirement.Description,
			strings.Join(ids, ", "),
			strings.Join(row.ComplianceRefs, ", "),
			string(row.Status),
		}
		if err := writeRow(f, matrixSheet, i+2, cells); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, casesSheet, 1, caseHeader); err != nil {
		return nil, err
	}
	for i, tc := range snap.TestCases {
		cells := []string{
			tc.ID,
			tc.Title,
			tc.RequirementID,
			strings.Join(tc.Steps, " | "),
			tc.ExpectedResult,
			string(tc.Priority),
			strings.Join(tc.ComplianceRefs, ", "),
			string(tc.Status),
		}
		if err := writeRow(f, casesSheet, i+2, cells); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fault.Wrap(fault.KindExport, "xlsx write failed", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fault.Wrap(fault.KindExport, "xlsx cell addressing failed", err)
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fault.Wrap(fault.KindExport, "xlsx row write failed", err)
	}
	return nil
}
