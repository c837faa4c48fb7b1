package models

import "time"

// GenerationRun records one execution of the AI synthesis step. Runs form a
// chain per document: the root run has no parent, regenerations point at the
// run whose output they reconciled against.
type GenerationRun struct {
	ID                string    `json:"id"`
	DocumentID        string    `json:"document_id"`
	ParentRunID       string    `json:"parent_run_id,omitempty"`
	PromptFingerprint string    `json:"prompt_fingerprint"`
	TestCaseIDs       []string  `json:"test_case_ids"`
	CreatedAt         time.Time `json:"created_at"`
}

// ClarificationAnswer is a reviewer's answer to a clarification question.
// Answers are input to a regeneration run only and are not persisted
// independently of the run they fed.
type ClarificationAnswer struct {
	QuestionID string   `json:"question_id"`
	Values     []string `json:"values"`
}
