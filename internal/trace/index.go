// Package trace maintains the in-memory requirement-to-test-case index:
// per-requirement aggregate status, optimistic status edits, and
// copy-on-read snapshots for export.
package trace

import (
	"sync"
	"time"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/models"
)

// Index is the authoritative in-memory view of requirements and test cases.
// It is rebuilt from durable storage at startup and updated synchronously by
// the operation that caused each change, so a requirement's aggregate status
// is always consistent with its current case set.
type Index struct {
	mu     sync.RWMutex
	docs   map[string]*docState
	byCase map[string]string // test case id -> document id
}

type docState struct {
	requirements []models.Requirement // extraction order
	caseOrder    []string             // insertion order, superseded included
	cases        map[string]models.TestCase
	byReq        map[string][]string // requirement id -> non-superseded case ids
	agg          map[string]models.TestCaseStatus
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		docs:   make(map[string]*docState),
		byCase: make(map[string]string),
	}
}

// RegisterDocument installs a document's requirement set. Every requirement
// starts with aggregate status NotTested. Registering an already-known
// document replaces its requirements but keeps its cases.
func (ix *Index) RegisterDocument(docID string, reqs []models.Requirement) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	d := ix.docs[docID]
	if d == nil {
		d = &docState{
			cases: make(map[string]models.TestCase),
			byReq: make(map[string][]string),
			agg:   make(map[string]models.TestCaseStatus),
		}
		ix.docs[docID] = d
	}
	d.requirements = append([]models.Requirement(nil), reqs...)
	for _, r := range reqs {
		if _, ok := d.agg[r.ID]; !ok {
			d.agg[r.ID] = models.StatusNotTested
		}
	}
}

// PutCases upserts test cases for a document and recomputes the aggregate
// status of only the affected requirements. Every case must reference a
// requirement registered for the document.
func (ix *Index) PutCases(docID string, cases []models.TestCase) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	d := ix.docs[docID]
	if d == nil {
		return fault.Newf(fault.KindNotFound, "document %s is not indexed", docID)
	}

	known := make(map[string]bool, len(d.requirements))
	for _, r := range d.requirements {
		known[r.ID] = true
	}
	for _, tc := range cases {
		if !known[tc.RequirementID] {
			return fault.Newf(fault.KindInternal, "test case %s references unknown requirement %s", tc.ID, tc.RequirementID)
		}
	}

	affected := make(map[string]bool)
	for _, tc := range cases {
		prev, exists := d.cases[tc.ID]
		if !exists {
			d.caseOrder = append(d.caseOrder, tc.ID)
			ix.byCase[tc.ID] = docID
		}
		d.cases[tc.ID] = copyCase(tc)

		wasActive := exists && prev.Status != models.StatusSuperseded
		isActive := tc.Status != models.StatusSuperseded
		if isActive && !wasActive {
			d.byReq[tc.RequirementID] = append(d.byReq[tc.RequirementID], tc.ID)
		} else if !isActive && wasActive {
			d.byReq[tc.RequirementID] = removeID(d.byReq[tc.RequirementID], tc.ID)
		}
		affected[tc.RequirementID] = true
	}
	for reqID := range affected {
		d.recompute(reqID)
	}
	return nil
}

// SetStatus applies an optimistic status edit: the update succeeds only if
// the stored status still equals expected, otherwise a conflict is returned
// and the caller must re-read and retry. Superseded cases cannot be edited.
func (ix *Index) SetStatus(caseID string, newStatus, expected models.TestCaseStatus) (models.TestCase, error) {
	if !models.ValidReviewStatus(newStatus) {
		return models.TestCase{}, fault.Newf(fault.KindValidation, "status %q cannot be set by a reviewer", newStatus)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	docID, ok := ix.byCase[caseID]
	if !ok {
		return models.TestCase{}, fault.Newf(fault.KindNotFound, "test case %s not found", caseID)
	}
	d := ix.docs[docID]
	tc := d.cases[caseID]
	if tc.Status == models.StatusSuperseded {
		return models.TestCase{}, fault.Newf(fault.KindConflict, "test case %s is superseded", caseID)
	}
	if tc.Status != expected {
		return models.TestCase{}, fault.Newf(fault.KindConflict, "test case %s is %s, not %s", caseID, tc.Status, expected)
	}
	tc.Status = newStatus
	tc.UpdatedAt = time.Now().UTC()
	d.cases[caseID] = tc
	d.recompute(tc.RequirementID)
	return copyCase(tc), nil
}

// GetCase returns a copy of one test case.
func (ix *Index) GetCase(caseID string) (models.TestCase, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	docID, ok := ix.byCase[caseID]
	if !ok {
		return models.TestCase{}, fault.Newf(fault.KindNotFound, "test case %s not found", caseID)
	}
	return copyCase(ix.docs[docID].cases[caseID]), nil
}

// Rows returns the document's traceability matrix: one row per requirement in
// extraction order, with its active cases, aggregate status, and the union of
// compliance references across the requirement and its cases.
func (ix *Index) Rows(docID string) ([]models.TraceabilityRow, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	d := ix.docs[docID]
	if d == nil {
		return nil, fault.Newf(fault.KindNotFound, "document %s is not indexed", docID)
	}
	return d.rows(), nil
}

func (d *docState) rows() []models.TraceabilityRow {
	rows := make([]models.TraceabilityRow, 0, len(d.requirements))
	for _, r := range d.requirements {
		row := models.TraceabilityRow{
			Requirement: r,
			Status:      d.agg[r.ID],
		}
		seen := make(map[string]bool)
		for _, ref := range r.ComplianceRefs {
			if !seen[ref] {
				seen[ref] = true
				row.ComplianceRefs = append(row.ComplianceRefs, ref)
			}
		}
		for _, id := range d.byReq[r.ID] {
			tc := copyCase(d.cases[id])
			row.TestCases = append(row.TestCases, tc)
			for _, ref := range tc.ComplianceRefs {
				if !seen[ref] {
					seen[ref] = true
					row.ComplianceRefs = append(row.ComplianceRefs, ref)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// recompute derives the aggregate status of one requirement from its active
// cases: NotTested when empty, Fail when any failed, Pass when all passed,
// InProgress otherwise.
func (d *docState) recompute(reqID string) {
	ids := d.byReq[reqID]
	if len(ids) == 0 {
		d.agg[reqID] = models.StatusNotTested
		return
	}
	anyFail := false
	allPass := true
	for _, id := range ids {
		switch d.cases[id].Status {
		case models.StatusFail:
			anyFail = true
			allPass = false
		case models.StatusPass:
		default:
			allPass = false
		}
	}
	switch {
	case anyFail:
		d.agg[reqID] = models.StatusFail
	case allPass:
		d.agg[reqID] = models.StatusPass
	default:
		d.agg[reqID] = models.StatusInProgress
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func copyCase(tc models.TestCase) models.TestCase {
	tc.Steps = append([]string(nil), tc.Steps...)
	tc.ComplianceRefs = append([]string(nil), tc.ComplianceRefs...)
	return tc
}
