// Package models defines the core entities of the test-case generation
// pipeline: requirements documents, extracted requirements, test cases,
// generation runs, and audit entries.
package models

import "time"

// DocumentStatus is the lifecycle state of an uploaded requirements document.
// Transitions are one-way: Uploaded -> Extracted, or Uploaded -> Failed.
type DocumentStatus string

const (
	DocumentUploaded  DocumentStatus = "Uploaded"
	DocumentExtracted DocumentStatus = "Extracted"
	DocumentFailed    DocumentStatus = "Failed"
)

// RequirementsDocument is an uploaded requirements document and its
// ingestion state. ContentHash is the SHA-256 of the raw payload and keys
// duplicate-upload detection; StorageRef points at the stored blob.
type RequirementsDocument struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MediaType   string         `json:"media_type"`
	SizeBytes   int64          `json:"size_bytes"`
	ContentHash string         `json:"content_hash"`
	StorageRef  string         `json:"storage_ref"`
	Status      DocumentStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Requirement is an atomic, extracted clause of a requirements document.
// Requirements are immutable once extracted; the ID (REQ-n) is assigned
// deterministically by position so identical text yields identical ids.
type Requirement struct {
	ID             string   `json:"id"`
	DocumentID     string   `json:"document_id"`
	Description    string   `json:"description"`
	ComplianceRefs []string `json:"compliance_refs"`
}
