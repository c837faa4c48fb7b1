package generate

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kensho/internal/config"
	"github.com/hyperjump/kensho/internal/extract"
	"github.com/hyperjump/kensho/internal/models"
)

// Orchestrator turns a document's requirements into a generation run: it
// prompts the generator per requirement, validates responses against the
// schema, retries with a reformulated prompt on violations, and falls back to
// a deterministic case when retries are exhausted. Every requirement in the
// returned set has at least one test case.
type Orchestrator struct {
	gen  Generator
	cfg  config.GenerationConfig
	dict *extract.Dictionary
	log  *zap.Logger
	now  func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(gen Generator, cfg config.GenerationConfig, dict *extract.Dictionary, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		gen:  gen,
		cfg:  cfg,
		dict: dict,
		log:  logger,
		now:  time.Now,
	}
}

// Generate produces a fresh run for the document: one batch of test cases per
// requirement, identifiers assigned in requirement order starting at ordinal 1.
func (o *Orchestrator) Generate(ctx context.Context, doc *models.RequirementsDocument, reqs []models.Requirement) (*models.GenerationRun, []models.TestCase, error) {
	now := o.now().UTC()
	run := &models.GenerationRun{
		ID:                uuid.NewString(),
		DocumentID:        doc.ID,
		PromptFingerprint: o.fingerprint(doc, reqs, nil),
		CreatedAt:         now,
	}

	var cases []models.TestCase
	for _, req := range reqs {
		base := BuildPrompt(req, doc.Filename, o.dict.Names())
		cands := o.candidates(ctx, req, base)
		for i, c := range cands {
			cases = append(cases, models.TestCase{
				ID:             CaseID(req.ID, i+1),
				RequirementID:  req.ID,
				Title:          c.Title,
				Steps:          append([]string(nil), c.Steps...),
				ExpectedResult: c.ExpectedResult,
				Priority:       models.Priority(c.Priority),
				ComplianceRefs: append([]string(nil), c.ComplianceRefs...),
				Status:         models.StatusNotTested,
				OriginRunID:    run.ID,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
		}
	}
	for _, tc := range cases {
		run.TestCaseIDs = append(run.TestCaseIDs, tc.ID)
	}
	return run, cases, nil
}

// Regenerate produces a child run from the parent's output and the reviewer's
// clarification answers. existing must hold every test case ever recorded for
// the document, superseded ones included, so retired ordinals are not reused.
// The returned cases are the document's full new case set.
func (o *Orchestrator) Regenerate(ctx context.Context, doc *models.RequirementsDocument, reqs []models.Requirement, parent *models.GenerationRun, existing []models.TestCase, answers []models.ClarificationAnswer) (*models.GenerationRun, []models.TestCase, error) {
	now := o.now().UTC()
	run := &models.GenerationRun{
		ID:                uuid.NewString(),
		DocumentID:        doc.ID,
		ParentRunID:       parent.ID,
		PromptFingerprint: o.fingerprint(doc, reqs, answers),
		CreatedAt:         now,
	}

	var cases []models.TestCase
	for _, req := range reqs {
		var prior []models.TestCase
		for _, tc := range existing {
			if tc.RequirementID == req.ID && tc.Status != models.StatusSuperseded {
				prior = append(prior, tc)
			}
		}
		base := BuildRegenPrompt(req, doc.Filename, o.dict.Names(), prior, answers)
		cands := o.candidates(ctx, req, base)
		next := NextCaseIndex(req.ID, existing)
		cases = append(cases, Reconcile(req, prior, cands, next, run.ID, now)...)
	}
	for _, tc := range cases {
		if tc.Status != models.StatusSuperseded {
			run.TestCaseIDs = append(run.TestCaseIDs, tc.ID)
		}
	}
	return run, cases, nil
}

// candidates runs the generate-parse-validate loop for one requirement with
// bounded retries. Exhaustion never fails the run: the deterministic fallback
// case is returned instead.
func (o *Orchestrator) candidates(ctx context.Context, req models.Requirement, basePrompt string) []Candidate {
	var result []Candidate
	attempt := 0
	op := func() error {
		attempt++
		prompt := ReformulatePrompt(basePrompt, attempt)

		callCtx := ctx
		if timeout := o.cfg.RequestTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		raw, err := o.gen.Generate(callCtx, prompt)
		if err != nil {
			return err
		}
		cands, err := ParseCandidates(raw)
		if err != nil {
			return err
		}
		if err := ValidateCandidates(cands, o.dict.Known); err != nil {
			return err
		}
		result = cands
		return nil
	}

	maxAttempts := o.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	if ib := o.cfg.InitialBackoff(); ib > 0 {
		bo.InitialInterval = ib
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		o.log.Warn("generation exhausted retries, using fallback test case",
			zap.String("requirement", req.ID),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return []Candidate{FallbackCandidate(req)}
	}
	return result
}

func (o *Orchestrator) fingerprint(doc *models.RequirementsDocument, reqs []models.Requirement, answers []models.ClarificationAnswer) string {
	parts := []string{doc.ContentHash, o.cfg.Model}
	for _, r := range reqs {
		parts = append(parts, r.ID, r.Description)
	}
	for _, a := range answers {
		parts = append(parts, a.QuestionID, strings.Join(a.Values, ";"))
	}
	return Fingerprint(parts...)
}
