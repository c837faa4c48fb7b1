package generate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kensho/internal/models"
)

// CaseID builds a test case identifier from its requirement and ordinal,
// e.g. REQ-3 + 2 -> TC-REQ3-2.
func CaseID(reqID string, n int) string {
	return fmt.Sprintf("TC-%s-%d", strings.ReplaceAll(reqID, "-", ""), n)
}

// NextCaseIndex returns the smallest ordinal not yet used by any test case of
// the requirement, superseded ones included. Ordinals are never reused so a
// regenerated case can never collide with a retired one.
func NextCaseIndex(reqID string, existing []models.TestCase) int {
	prefix := fmt.Sprintf("TC-%s-", strings.ReplaceAll(reqID, "-", ""))
	max := 0
	for _, tc := range existing {
		if !strings.HasPrefix(tc.ID, prefix) {
			continue
		}
		if n, err := strconv.Atoi(tc.ID[len(prefix):]); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

// contentKey is the identity of a test case for diffing purposes: title,
// steps, and expected result, compared exactly.
func contentKey(title string, steps []string, expected string) string {
	return title + "\x1f" + strings.Join(steps, "\x1e") + "\x1f" + expected
}

// Reconcile merges regenerated candidates with the prior active cases of one
// requirement and returns the requirement's full new case set:
//
//   - a candidate whose title, steps, and expected result exactly match a
//     prior case keeps that case's identifier and review status; each prior
//     case is consumed at most once, first match wins
//   - an unmatched candidate becomes a new case with a fresh ordinal and
//     status NotTested
//   - a prior case no candidate matched is marked Superseded
//
// nextIndex is the first free ordinal for the requirement (see NextCaseIndex).
func Reconcile(req models.Requirement, prior []models.TestCase, cands []Candidate, nextIndex int, runID string, now time.Time) []models.TestCase {
	consumed := make([]bool, len(prior))
	out := make([]models.TestCase, 0, len(prior)+len(cands))

	for _, c := range cands {
		key := contentKey(c.Title, c.Steps, c.ExpectedResult)
		matched := false
		for i, p := range prior {
			if consumed[i] {
				continue
			}
			if contentKey(p.Title, p.Steps, p.ExpectedResult) == key {
				consumed[i] = true
				out = append(out, p)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		out = append(out, models.TestCase{
			ID:             CaseID(req.ID, nextIndex),
			RequirementID:  req.ID,
			Title:          c.Title,
			Steps:          append([]string(nil), c.Steps...),
			ExpectedResult: c.ExpectedResult,
			Priority:       models.Priority(c.Priority),
			ComplianceRefs: append([]string(nil), c.ComplianceRefs...),
			Status:         models.StatusNotTested,
			OriginRunID:    runID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		nextIndex++
	}

	for i, p := range prior {
		if consumed[i] {
			continue
		}
		p.Status = models.StatusSuperseded
		p.UpdatedAt = now
		out = append(out, p)
	}
	return out
}
