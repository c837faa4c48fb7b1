package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/kensho/internal/models"
)

const responseContract = `Respond with a single JSON object in exactly this format:
{
  "test_cases": [
    {
      "title": "Descriptive test case title",
      "steps": ["Step 1: action to perform", "Step 2: next action", "Step 3: verification"],
      "expected_result": "Clear expected outcome",
      "priority": "Critical|High|Medium|Low",
      "compliance_refs": ["only standards listed above"]
    }
  ]
}`

// BuildPrompt constructs the generation prompt for one requirement:
// the requirement text, document-level context, and compliance emphasis,
// followed by the JSON response contract.
func BuildPrompt(req models.Requirement, docContext string, standards []string) string {
	var b strings.Builder
	b.WriteString("As a healthcare software testing expert with deep knowledge of medical device regulations and data-protection compliance, generate test cases for the following requirement.\n\n")
	fmt.Fprintf(&b, "Requirement %s: %s\n", req.ID, req.Description)
	if docContext != "" {
		fmt.Fprintf(&b, "Document context: %s\n", docContext)
	}
	if len(req.ComplianceRefs) > 0 {
		fmt.Fprintf(&b, "This requirement is subject to: %s. Include verification of those obligations.\n", strings.Join(req.ComplianceRefs, ", "))
	}
	fmt.Fprintf(&b, "Known compliance standards: %s.\n\n", strings.Join(standards, ", "))
	b.WriteString("Cover the main scenario, at least one failure or boundary scenario, and data-protection behavior where relevant.\n\n")
	b.WriteString(responseContract)
	return b.String()
}

// ReformulatePrompt prefixes a retry notice so the model corrects an invalid
// earlier response rather than repeating it.
func ReformulatePrompt(prompt string, attempt int) string {
	if attempt <= 1 {
		return prompt
	}
	return fmt.Sprintf("Your previous response did not match the required JSON schema (attempt %d). Return only the JSON object, no prose.\n\n%s", attempt, prompt)
}

// BuildRegenPrompt augments the base prompt with the parent run's output for
// this requirement and the reviewer's clarification answers.
func BuildRegenPrompt(req models.Requirement, docContext string, standards []string, prior []models.TestCase, answers []models.ClarificationAnswer) string {
	var b strings.Builder
	b.WriteString(BuildPrompt(req, docContext, standards))
	b.WriteString("\n\nYou previously generated these test cases for this requirement:\n")
	priorJSON, _ := json.MarshalIndent(prior, "", "  ")
	b.Write(priorJSON)
	b.WriteString("\n\nThe reviewer provided these clarifications:\n")
	for _, a := range answers {
		fmt.Fprintf(&b, "- %s: %s\n", a.QuestionID, strings.Join(a.Values, "; "))
	}
	b.WriteString("\nRegenerate the test cases, keeping any that are still correct exactly as they were (identical title, steps, and expected result) and revising or adding where the clarifications require it.")
	return b.String()
}

// Fingerprint returns a stable SHA-256 hex digest over the prompt inputs,
// recorded on each run for reproducibility checks.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
