package generate

import (
	"testing"
	"time"

	"github.com/hyperjump/kensho/internal/models"
)

func priorCase(id string, status models.TestCaseStatus) models.TestCase {
	return models.TestCase{
		ID:             id,
		RequirementID:  "REQ-1",
		Title:          "Verify session expiry",
		Steps:          []string{"Log in", "Wait sixteen minutes", "Issue a request"},
		ExpectedResult: "The request is rejected with a re-authentication prompt",
		Priority:       models.PriorityHigh,
		Status:         status,
		OriginRunID:    "run-1",
	}
}

func TestCaseID(t *testing.T) {
	if got := CaseID("REQ-3", 2); got != "TC-REQ3-2" {
		t.Errorf("CaseID = %q", got)
	}
}

func TestNextCaseIndex_SkipsSupersededOrdinals(t *testing.T) {
	existing := []models.TestCase{
		priorCase("TC-REQ1-1", models.StatusSuperseded),
		priorCase("TC-REQ1-3", models.StatusPass),
		{ID: "TC-REQ2-9", RequirementID: "REQ-2"},
	}
	if got := NextCaseIndex("REQ-1", existing); got != 4 {
		t.Errorf("NextCaseIndex = %d, want 4", got)
	}
	if got := NextCaseIndex("REQ-3", existing); got != 1 {
		t.Errorf("NextCaseIndex for fresh requirement = %d, want 1", got)
	}
}

func TestReconcile_ExactMatchKeepsIdentityAndStatus(t *testing.T) {
	req := models.Requirement{ID: "REQ-1"}
	prior := []models.TestCase{priorCase("TC-REQ1-1", models.StatusPass)}
	cands := []Candidate{{
		Title:          prior[0].Title,
		Steps:          prior[0].Steps,
		ExpectedResult: prior[0].ExpectedResult,
		Priority:       "High",
	}}

	out := Reconcile(req, prior, cands, 2, "run-2", time.Now())
	if len(out) != 1 {
		t.Fatalf("expected 1 case, got %d", len(out))
	}
	if out[0].ID != "TC-REQ1-1" || out[0].Status != models.StatusPass {
		t.Errorf("identity not preserved: %s %s", out[0].ID, out[0].Status)
	}
	if out[0].OriginRunID != "run-1" {
		t.Errorf("origin run should stay on the producing run: %s", out[0].OriginRunID)
	}
}

func TestReconcile_NewContentGetsFreshOrdinal(t *testing.T) {
	req := models.Requirement{ID: "REQ-1"}
	prior := []models.TestCase{priorCase("TC-REQ1-1", models.StatusFail)}
	cands := []Candidate{{
		Title:          "Verify session expiry with remember-me enabled",
		Steps:          []string{"Log in with remember-me", "Wait sixteen minutes"},
		ExpectedResult: "The session still expires",
		Priority:       "Medium",
	}}

	out := Reconcile(req, prior, cands, 2, "run-2", time.Now())
	if len(out) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(out))
	}
	if out[0].ID != "TC-REQ1-2" || out[0].Status != models.StatusNotTested || out[0].OriginRunID != "run-2" {
		t.Errorf("new case: %s %s %s", out[0].ID, out[0].Status, out[0].OriginRunID)
	}
	if out[1].ID != "TC-REQ1-1" || out[1].Status != models.StatusSuperseded {
		t.Errorf("unmatched prior must be superseded: %s %s", out[1].ID, out[1].Status)
	}
}

func TestReconcile_EachPriorConsumedOnce(t *testing.T) {
	req := models.Requirement{ID: "REQ-1"}
	prior := []models.TestCase{priorCase("TC-REQ1-1", models.StatusPass)}
	c := Candidate{
		Title:          prior[0].Title,
		Steps:          prior[0].Steps,
		ExpectedResult: prior[0].ExpectedResult,
		Priority:       "High",
	}

	// Two identical candidates: only one can claim the prior identity.
	out := Reconcile(req, prior, []Candidate{c, c}, 2, "run-2", time.Now())
	if len(out) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(out))
	}
	if out[0].ID != "TC-REQ1-1" {
		t.Errorf("first candidate keeps the prior id: %s", out[0].ID)
	}
	if out[1].ID != "TC-REQ1-2" || out[1].Status != models.StatusNotTested {
		t.Errorf("second candidate is new: %s %s", out[1].ID, out[1].Status)
	}
}
