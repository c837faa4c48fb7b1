package generate

import (
	"encoding/json"
	"strings"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/models"
)

// Candidate is one model-proposed test case before it is assigned an
// identifier and admitted into a run.
type Candidate struct {
	Title          string   `json:"title"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
	Priority       string   `json:"priority"`
	ComplianceRefs []string `json:"compliance_refs,omitempty"`
}

type candidateResponse struct {
	TestCases []Candidate `json:"test_cases"`
}

// ParseCandidates extracts the JSON object from a raw model response and
// decodes its test_cases array. Models sometimes wrap the object in prose or
// markdown fences, so parsing starts at the first brace and ends at the last.
func ParseCandidates(raw string) ([]Candidate, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fault.New(fault.KindSchemaViolation, "response contains no JSON object")
	}
	var resp candidateResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, fault.Wrap(fault.KindSchemaViolation, "response is not valid JSON", err)
	}
	if len(resp.TestCases) == 0 {
		return nil, fault.New(fault.KindSchemaViolation, "response contains no test cases")
	}
	return resp.TestCases, nil
}

// ValidateCandidates enforces the response schema strictly: every candidate
// must carry a title, at least one step, an expected result, a recognized
// priority, and only known compliance references. One bad candidate fails the
// whole response, which triggers a reformulated retry upstream.
func ValidateCandidates(cands []Candidate, knownRef func(string) bool) error {
	for i, c := range cands {
		if strings.TrimSpace(c.Title) == "" {
			return fault.Newf(fault.KindSchemaViolation, "test case %d has an empty title", i+1)
		}
		if len(c.Steps) == 0 {
			return fault.Newf(fault.KindSchemaViolation, "test case %d has no steps", i+1)
		}
		for _, s := range c.Steps {
			if strings.TrimSpace(s) == "" {
				return fault.Newf(fault.KindSchemaViolation, "test case %d has an empty step", i+1)
			}
		}
		if strings.TrimSpace(c.ExpectedResult) == "" {
			return fault.Newf(fault.KindSchemaViolation, "test case %d has an empty expected result", i+1)
		}
		if !models.ValidPriority(models.Priority(c.Priority)) {
			return fault.Newf(fault.KindSchemaViolation, "test case %d has unknown priority %q", i+1, c.Priority)
		}
		for _, ref := range c.ComplianceRefs {
			if !knownRef(ref) {
				return fault.Newf(fault.KindSchemaViolation, "test case %d references unknown standard %q", i+1, ref)
			}
		}
	}
	return nil
}
