package trace

import (
	"reflect"
	"testing"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/models"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex()
	ix.RegisterDocument("doc1", []models.Requirement{
		{ID: "REQ-1", DocumentID: "doc1", Description: "Authenticate users.", ComplianceRefs: []string{"HIPAA"}},
		{ID: "REQ-2", DocumentID: "doc1", Description: "Encrypt data at rest."},
	})
	return ix
}

func tc(id, reqID string, status models.TestCaseStatus) models.TestCase {
	return models.TestCase{
		ID:            id,
		RequirementID: reqID,
		Title:         "Case " + id,
		Steps:         []string{"step"},
		Status:        status,
	}
}

func TestIndex_Aggregation(t *testing.T) {
	cases := []struct {
		name     string
		statuses []models.TestCaseStatus
		want     models.TestCaseStatus
	}{
		{"no cases", nil, models.StatusNotTested},
		{"all pass", []models.TestCaseStatus{models.StatusPass, models.StatusPass}, models.StatusPass},
		{"any fail", []models.TestCaseStatus{models.StatusPass, models.StatusFail}, models.StatusFail},
		{"mixed", []models.TestCaseStatus{models.StatusPass, models.StatusNotTested}, models.StatusInProgress},
		{"in progress", []models.TestCaseStatus{models.StatusInProgress}, models.StatusInProgress},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ix := newTestIndex(t)
			var batch []models.TestCase
			for i, s := range c.statuses {
				batch = append(batch, tc(caseName(i), "REQ-1", s))
			}
			if len(batch) > 0 {
				if err := ix.PutCases("doc1", batch); err != nil {
					t.Fatal(err)
				}
			}
			rows, err := ix.Rows("doc1")
			if err != nil {
				t.Fatal(err)
			}
			if rows[0].Status != c.want {
				t.Errorf("aggregate = %s, want %s", rows[0].Status, c.want)
			}
		})
	}
}

// caseName builds distinct ids for table-driven aggregation tests.
func caseName(i int) string {
	return "TC-REQ1-" + string(rune('1'+i))
}

func TestIndex_SupersededExcludedFromAggregate(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.PutCases("doc1", []models.TestCase{
		tc("TC-REQ1-1", "REQ-1", models.StatusPass),
		tc("TC-REQ1-2", "REQ-1", models.StatusFail),
	}); err != nil {
		t.Fatal(err)
	}

	// Supersede the failing case: aggregate flips to Pass.
	if err := ix.PutCases("doc1", []models.TestCase{
		tc("TC-REQ1-2", "REQ-1", models.StatusSuperseded),
	}); err != nil {
		t.Fatal(err)
	}
	rows, err := ix.Rows("doc1")
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Status != models.StatusPass {
		t.Errorf("aggregate = %s, want Pass", rows[0].Status)
	}
	if len(rows[0].TestCases) != 1 || rows[0].TestCases[0].ID != "TC-REQ1-1" {
		t.Errorf("superseded case still listed: %+v", rows[0].TestCases)
	}
}

func TestIndex_SetStatusCAS(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.PutCases("doc1", []models.TestCase{tc("TC-REQ1-1", "REQ-1", models.StatusNotTested)}); err != nil {
		t.Fatal(err)
	}

	updated, err := ix.SetStatus("TC-REQ1-1", models.StatusPass, models.StatusNotTested)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.StatusPass {
		t.Errorf("status = %s", updated.Status)
	}

	// Stale expectation is rejected; stored state is unchanged.
	_, err = ix.SetStatus("TC-REQ1-1", models.StatusFail, models.StatusNotTested)
	if !fault.IsKind(err, fault.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	got, err := ix.GetCase("TC-REQ1-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPass {
		t.Errorf("status after rejected edit = %s", got.Status)
	}

	_, err = ix.SetStatus("TC-REQ1-1", models.StatusSuperseded, models.StatusPass)
	if !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("reviewer must not set Superseded, got %v", err)
	}
	_, err = ix.SetStatus("TC-MISSING-1", models.StatusPass, models.StatusNotTested)
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestIndex_PutCases_UnknownRequirement(t *testing.T) {
	ix := newTestIndex(t)
	err := ix.PutCases("doc1", []models.TestCase{tc("TC-REQ9-1", "REQ-9", models.StatusNotTested)})
	if err == nil {
		t.Fatal("case for unregistered requirement must be rejected")
	}
	if err := ix.PutCases("missing", nil); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestIndex_RowsOrderAndComplianceUnion(t *testing.T) {
	ix := newTestIndex(t)
	c := tc("TC-REQ1-1", "REQ-1", models.StatusPass)
	c.ComplianceRefs = []string{"HIPAA", "GDPR"}
	if err := ix.PutCases("doc1", []models.TestCase{c}); err != nil {
		t.Fatal(err)
	}
	rows, err := ix.Rows("doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Requirement.ID != "REQ-1" || rows[1].Requirement.ID != "REQ-2" {
		t.Fatalf("rows out of order: %+v", rows)
	}
	if !reflect.DeepEqual(rows[0].ComplianceRefs, []string{"HIPAA", "GDPR"}) {
		t.Errorf("compliance union = %v", rows[0].ComplianceRefs)
	}
	if rows[1].Status != models.StatusNotTested {
		t.Errorf("untouched requirement aggregate = %s", rows[1].Status)
	}
}

func TestSnapshot_IsolatedFromLaterWrites(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.PutCases("doc1", []models.TestCase{tc("TC-REQ1-1", "REQ-1", models.StatusNotTested)}); err != nil {
		t.Fatal(err)
	}

	snap, err := ix.Snapshot("doc1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ix.SetStatus("TC-REQ1-1", models.StatusFail, models.StatusNotTested); err != nil {
		t.Fatal(err)
	}

	if snap.TestCases[0].Status != models.StatusNotTested {
		t.Errorf("snapshot mutated by later write: %s", snap.TestCases[0].Status)
	}
	if snap.Rows[0].Status != models.StatusNotTested {
		t.Errorf("snapshot row mutated: %s", snap.Rows[0].Status)
	}
}

func TestSnapshot_IncludesSuperseded(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.PutCases("doc1", []models.TestCase{
		tc("TC-REQ1-1", "REQ-1", models.StatusSuperseded),
		tc("TC-REQ1-2", "REQ-1", models.StatusPass),
	}); err != nil {
		t.Fatal(err)
	}
	snap, err := ix.Snapshot("doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.TestCases) != 2 {
		t.Errorf("snapshot cases = %d, want 2", len(snap.TestCases))
	}
	if len(snap.Rows[0].TestCases) != 1 {
		t.Errorf("matrix rows list only active cases: %+v", snap.Rows[0].TestCases)
	}
}
