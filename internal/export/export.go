// Package export serializes traceability snapshots to tabular formats.
// Exporters consume value-copied snapshots, so they never block writers and
// never observe partially-updated state.
package export

import (
	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/trace"
)

// Exporter serializes one snapshot to a complete byte slice. An error means
// nothing was produced; exporters never emit partial output.
type Exporter interface {
	ContentType() string
	Export(snap *trace.Snapshot) ([]byte, error)
}

// For returns the exporter for a format name.
func For(format string) (Exporter, error) {
	switch format {
	case "csv":
		return &CSVExporter{}, nil
	case "xlsx":
		return &XLSXExporter{}, nil
	case "pdf":
		return &PDFExporter{}, nil
	}
	return nil, fault.Newf(fault.KindExport, "unsupported export format %q", format)
}

var matrixHeader = []string{"Requirement ID", "Description", "Test Cases", "Compliance", "Status"}

var caseHeader = []string{"Test Case ID", "Title", "Requirement ID", "Steps", "Expected Result", "Priority", "Compliance", "Status"}
