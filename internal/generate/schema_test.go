package generate

import (
	"testing"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/models"
)

func knownRefs(name string) bool {
	return name == "HIPAA" || name == "GDPR"
}

func TestParseCandidates_StripsSurroundingProse(t *testing.T) {
	raw := "Here are your test cases:\n```json\n" +
		`{"test_cases": [{"title": "Verify login lockout", "steps": ["Attempt login"], "expected_result": "Account locks", "priority": "High"}]}` +
		"\n```\nLet me know if you need more."

	cands, err := ParseCandidates(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Title != "Verify login lockout" {
		t.Errorf("title = %q", cands[0].Title)
	}
}

func TestParseCandidates_NoJSON(t *testing.T) {
	_, err := ParseCandidates("I cannot generate test cases for this requirement.")
	if !fault.IsKind(err, fault.KindSchemaViolation) {
		t.Errorf("expected schema violation, got %v", err)
	}
}

func TestParseCandidates_EmptyArray(t *testing.T) {
	_, err := ParseCandidates(`{"test_cases": []}`)
	if !fault.IsKind(err, fault.KindSchemaViolation) {
		t.Errorf("expected schema violation, got %v", err)
	}
}

func TestValidateCandidates(t *testing.T) {
	valid := Candidate{
		Title:          "Verify encryption at rest",
		Steps:          []string{"Store a record", "Inspect the database file"},
		ExpectedResult: "Data is unreadable without the key",
		Priority:       "Critical",
		ComplianceRefs: []string{"HIPAA"},
	}
	if err := ValidateCandidates([]Candidate{valid}, knownRefs); err != nil {
		t.Fatalf("valid candidate rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Candidate)
	}{
		{"empty title", func(c *Candidate) { c.Title = "  " }},
		{"no steps", func(c *Candidate) { c.Steps = nil }},
		{"blank step", func(c *Candidate) { c.Steps = []string{"Store a record", ""} }},
		{"empty expected result", func(c *Candidate) { c.ExpectedResult = "" }},
		{"unknown priority", func(c *Candidate) { c.Priority = "Urgent" }},
		{"unknown compliance ref", func(c *Candidate) { c.ComplianceRefs = []string{"SOC 9000"} }},
	}
	for _, tc := range cases {
		c := valid
		c.Steps = append([]string(nil), valid.Steps...)
		c.ComplianceRefs = append([]string(nil), valid.ComplianceRefs...)
		tc.mutate(&c)
		err := ValidateCandidates([]Candidate{c}, knownRefs)
		if !fault.IsKind(err, fault.KindSchemaViolation) {
			t.Errorf("%s: expected schema violation, got %v", tc.name, err)
		}
	}
}

func TestFallbackCandidate(t *testing.T) {
	req := models.Requirement{
		ID:          "REQ-4",
		Description: "Patient identifiers must be validated before admission.",
	}
	c := FallbackCandidate(req)
	if c.Title != "Verify: Patient identifiers must be validated before admission." {
		t.Errorf("title = %q", c.Title)
	}
	if len(c.Steps) != 3 {
		t.Errorf("steps = %v", c.Steps)
	}
	if c.Priority != string(models.PriorityMedium) {
		t.Errorf("priority without compliance refs = %q", c.Priority)
	}

	req.ComplianceRefs = []string{"HIPAA"}
	c = FallbackCandidate(req)
	if c.Priority != string(models.PriorityHigh) {
		t.Errorf("priority with compliance refs = %q", c.Priority)
	}
	if err := ValidateCandidates([]Candidate{c}, knownRefs); err != nil {
		t.Errorf("fallback candidate must satisfy the schema: %v", err)
	}
}
