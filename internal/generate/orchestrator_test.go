package generate

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensho/internal/config"
	"github.com/hyperjump/kensho/internal/extract"
	"github.com/hyperjump/kensho/internal/models"
)

// fakeGenerator replays canned responses in order; the last one repeats.
type fakeGenerator struct {
	responses []string
	errs      []error
	prompts   []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return f.responses[i], nil
}

func newTestOrchestrator(gen Generator) *Orchestrator {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	gcfg := cfg.Generation
	gcfg.MaxAttempts = 3
	gcfg.InitialBackoffMS = 1
	dict := extract.NewDictionary(cfg.Compliance.Standards)
	return NewOrchestrator(gen, gcfg, dict, zap.NewNop())
}

func validResponse(titles ...string) string {
	var cases []string
	for _, title := range titles {
		cases = append(cases, fmt.Sprintf(
			`{"title": %q, "steps": ["Do the thing", "Check the result"], "expected_result": "It works", "priority": "High", "compliance_refs": ["HIPAA"]}`,
			title))
	}
	return `{"test_cases": [` + strings.Join(cases, ",") + `]}`
}

func testDoc() *models.RequirementsDocument {
	return &models.RequirementsDocument{
		ID:          "doc1",
		Filename:    "requirements.txt",
		ContentHash: "abc123",
	}
}

func TestOrchestrator_Generate(t *testing.T) {
	gen := &fakeGenerator{responses: []string{validResponse("Case one", "Case two")}}
	o := newTestOrchestrator(gen)
	reqs := []models.Requirement{{ID: "REQ-1", DocumentID: "doc1", Description: "Users must authenticate."}}

	run, cases, err := o.Generate(context.Background(), testDoc(), reqs)
	if err != nil {
		t.Fatal(err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].ID != "TC-REQ1-1" || cases[1].ID != "TC-REQ1-2" {
		t.Errorf("ids: %s, %s", cases[0].ID, cases[1].ID)
	}
	for _, tc := range cases {
		if tc.Status != models.StatusNotTested {
			t.Errorf("%s status = %s", tc.ID, tc.Status)
		}
		if tc.OriginRunID != run.ID {
			t.Errorf("%s origin = %s, want %s", tc.ID, tc.OriginRunID, run.ID)
		}
	}
	if run.ParentRunID != "" {
		t.Errorf("root run must have no parent, got %s", run.ParentRunID)
	}
	if len(run.TestCaseIDs) != 2 {
		t.Errorf("run case ids: %v", run.TestCaseIDs)
	}
	if run.PromptFingerprint == "" {
		t.Error("missing prompt fingerprint")
	}
}

func TestOrchestrator_Generate_RetryWithReformulatedPrompt(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		"I am sorry, I cannot produce JSON today.",
		validResponse("Case one"),
	}}
	o := newTestOrchestrator(gen)
	reqs := []models.Requirement{{ID: "REQ-1", Description: "Sessions must expire."}}

	_, cases, err := o.Generate(context.Background(), testDoc(), reqs)
	if err != nil {
		t.Fatal(err)
	}
	if len(cases) != 1 || cases[0].Title != "Case one" {
		t.Fatalf("cases: %+v", cases)
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[1], "did not match the required JSON schema") {
		t.Errorf("second prompt not reformulated: %q", gen.prompts[1][:80])
	}
}

func TestOrchestrator_Generate_FallbackAfterExhaustedRetries(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"garbage"}}
	o := newTestOrchestrator(gen)
	reqs := []models.Requirement{{
		ID:             "REQ-1",
		Description:    "Audit entries are retained for six years.",
		ComplianceRefs: []string{"FDA 21 CFR Part 11"},
	}}

	run, cases, err := o.Generate(context.Background(), testDoc(), reqs)
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.prompts) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(gen.prompts))
	}
	if len(cases) != 1 {
		t.Fatalf("fallback must still yield a case, got %d", len(cases))
	}
	if !strings.HasPrefix(cases[0].Title, "Verify: ") {
		t.Errorf("fallback title = %q", cases[0].Title)
	}
	if cases[0].Priority != models.PriorityHigh {
		t.Errorf("compliance-tagged fallback priority = %s", cases[0].Priority)
	}
	if cases[0].OriginRunID != run.ID {
		t.Errorf("fallback origin = %s", cases[0].OriginRunID)
	}
}

func TestOrchestrator_Regenerate(t *testing.T) {
	now := time.Now().UTC()
	prior := models.TestCase{
		ID:             "TC-REQ1-1",
		RequirementID:  "REQ-1",
		Title:          "Case one",
		Steps:          []string{"Do the thing", "Check the result"},
		ExpectedResult: "It works",
		Priority:       models.PriorityHigh,
		Status:         models.StatusPass,
		OriginRunID:    "run-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	stale := prior
	stale.ID = "TC-REQ1-2"
	stale.Title = "Obsolete case"

	// The model keeps "Case one" verbatim and replaces the other.
	gen := &fakeGenerator{responses: []string{validResponse("Case one", "Refined case")}}
	o := newTestOrchestrator(gen)
	doc := testDoc()
	reqs := []models.Requirement{{ID: "REQ-1", DocumentID: doc.ID, Description: "Users must authenticate."}}
	parent := &models.GenerationRun{ID: "run-1", DocumentID: doc.ID, TestCaseIDs: []string{"TC-REQ1-1", "TC-REQ1-2"}}
	answers := []models.ClarificationAnswer{{QuestionID: "Q1", Values: []string{"password plus OTP"}}}

	run, cases, err := o.Regenerate(context.Background(), doc, reqs, parent, []models.TestCase{prior, stale}, answers)
	if err != nil {
		t.Fatal(err)
	}
	if run.ParentRunID != "run-1" {
		t.Errorf("parent run = %s", run.ParentRunID)
	}

	byID := make(map[string]models.TestCase, len(cases))
	for _, tc := range cases {
		byID[tc.ID] = tc
	}
	if kept := byID["TC-REQ1-1"]; kept.Status != models.StatusPass {
		t.Errorf("matching case must keep id and status: %+v", kept)
	}
	if fresh := byID["TC-REQ1-3"]; fresh.Title != "Refined case" || fresh.Status != models.StatusNotTested {
		t.Errorf("new case: %+v", fresh)
	}
	if old := byID["TC-REQ1-2"]; old.Status != models.StatusSuperseded {
		t.Errorf("unmatched prior must be superseded: %+v", old)
	}
	for _, id := range run.TestCaseIDs {
		if id == "TC-REQ1-2" {
			t.Error("superseded case listed in the new run")
		}
	}
	if !strings.Contains(gen.prompts[0], "password plus OTP") {
		t.Error("clarification answers missing from the regeneration prompt")
	}
}
