// Package storage defines persistence for the pipeline: a durable blob store
// for uploaded documents and a SQLite store for documents, requirements,
// test cases, generation runs, and the audit trail.
package storage

import (
	"context"

	"github.com/hyperjump/kensho/internal/models"
)

// ObjectStore is the object-storage collaborator holding raw document bytes.
// Put returns an opaque storage reference usable with Get. Failures are
// transient from the caller's perspective and may be retried.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Store defines the durable state operations behind the pipeline. Lookup
// methods return a fault.KindNotFound error when the entity does not exist.
type Store interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.RequirementsDocument) error
	GetDocument(ctx context.Context, id string) (*models.RequirementsDocument, error)
	GetDocumentByHash(ctx context.Context, hash string) (*models.RequirementsDocument, error)
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error
	ListDocuments(ctx context.Context) ([]*models.RequirementsDocument, error)

	// Requirement operations
	SaveRequirements(ctx context.Context, docID string, reqs []models.Requirement) error
	GetRequirements(ctx context.Context, docID string) ([]models.Requirement, error)

	// Test case operations
	SaveTestCases(ctx context.Context, docID string, cases []models.TestCase) error
	UpdateTestCaseStatus(ctx context.Context, id string, status models.TestCaseStatus) error
	GetTestCases(ctx context.Context, docID string) ([]models.TestCase, error)

	// Generation run operations
	CreateRun(ctx context.Context, run *models.GenerationRun) error
	GetRuns(ctx context.Context, docID string) ([]models.GenerationRun, error)
	LatestRun(ctx context.Context, docID string) (*models.GenerationRun, error)

	// Audit operations. AppendAudit assigns the monotonic sequence number.
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	QueryAudit(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)

	Close() error
}
