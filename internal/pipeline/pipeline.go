// Package pipeline composes ingestion, extraction, generation, traceability,
// auditing, and export into the operation surface the HTTP layer calls.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kensho/internal/audit"
	"github.com/hyperjump/kensho/internal/config"
	"github.com/hyperjump/kensho/internal/export"
	"github.com/hyperjump/kensho/internal/extract"
	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/generate"
	"github.com/hyperjump/kensho/internal/models"
	"github.com/hyperjump/kensho/internal/storage"
	"github.com/hyperjump/kensho/internal/trace"
	"github.com/hyperjump/kensho/pkg/utils"
)

// storagePutAttempts bounds the retry budget for the durable blob write.
const storagePutAttempts = 3

// Pipeline is the request-driven core. All state changes flow through it:
// durable writes go to the store, the in-memory index is updated
// synchronously, and every action, applied or rejected, lands in the
// audit trail.
type Pipeline struct {
	cfg       *config.Config
	store     storage.Store
	blobs     storage.ObjectStore
	extractor *extract.Extractor
	orch      *generate.Orchestrator
	locks     *generate.Locks
	index     *trace.Index
	audit     *audit.Logger
	log       *zap.Logger
}

// New assembles a Pipeline. Call Rebuild before serving requests so the
// index reflects durable state.
func New(cfg *config.Config, store storage.Store, blobs storage.ObjectStore, extractor *extract.Extractor, orch *generate.Orchestrator, auditLogger *audit.Logger, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		orch:      orch,
		locks:     generate.NewLocks(cfg.Generation.QueueDepth),
		index:     trace.NewIndex(),
		audit:     auditLogger,
		log:       logger,
	}
}

// Rebuild loads extracted documents and their test cases from durable storage
// into the in-memory index. Run once at startup.
func (p *Pipeline) Rebuild(ctx context.Context) error {
	docs, err := p.store.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.Status != models.DocumentExtracted {
			continue
		}
		reqs, err := p.store.GetRequirements(ctx, doc.ID)
		if err != nil {
			return err
		}
		p.index.RegisterDocument(doc.ID, reqs)
		cases, err := p.store.GetTestCases(ctx, doc.ID)
		if err != nil {
			return err
		}
		if err := p.index.PutCases(doc.ID, cases); err != nil {
			return err
		}
	}
	p.log.Info("traceability index rebuilt", zap.Int("documents", len(docs)))
	return nil
}

// Upload validates and durably stores a document, then extracts its
// requirements inline. Re-uploading identical content returns the existing
// document. Extraction failure leaves the document in Failed state; recovery
// is a corrected re-upload.
func (p *Pipeline) Upload(ctx context.Context, actor, filename, mediaType string, data []byte) (*models.RequirementsDocument, error) {
	if err := p.validateUpload(mediaType, data); err != nil {
		p.recordFailure(ctx, actor, models.ActionUpload, filename, err)
		return nil, err
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if existing, err := p.store.GetDocumentByHash(ctx, hash); err == nil {
		p.audit.Record(ctx, actor, models.ActionUpload, existing.ID, map[string]any{
			"filename":  filename,
			"duplicate": true,
		})
		return existing, nil
	} else if !fault.IsKind(err, fault.KindNotFound) {
		return nil, err
	}

	docID := uuid.NewString()
	ref, err := p.putWithRetry(ctx, docID, data)
	if err != nil {
		p.audit.Record(ctx, actor, models.ActionUpload, docID, map[string]any{
			"filename": filename,
			"outcome":  "storage_failure",
		})
		return nil, fault.Wrap(fault.KindStorage, "durable storage write failed", err)
	}

	now := time.Now().UTC()
	doc := &models.RequirementsDocument{
		ID:          docID,
		Filename:    filename,
		MediaType:   mediaType,
		SizeBytes:   int64(len(data)),
		ContentHash: hash,
		StorageRef:  ref,
		Status:      models.DocumentUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	p.audit.Record(ctx, actor, models.ActionUpload, doc.ID, map[string]any{
		"filename":     filename,
		"media_type":   mediaType,
		"content_hash": hash,
	})

	if err := p.extractDocument(ctx, actor, doc, data); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *Pipeline) validateUpload(mediaType string, data []byte) error {
	if !p.cfg.Upload.Allowed(mediaType) {
		return fault.Newf(fault.KindValidation, "media type %q is not allowed", mediaType)
	}
	if int64(len(data)) > p.cfg.Upload.MaxSizeBytes {
		return fault.Newf(fault.KindValidation, "document exceeds the %d byte limit", p.cfg.Upload.MaxSizeBytes)
	}
	if len(data) == 0 {
		return fault.New(fault.KindValidation, "document is empty")
	}
	return nil
}

// recordFailure puts a rejected or failed operation on the audit trail, so
// the attempt and its outcome are visible even though no state changed. The
// target is the document or test case id, or the filename for an upload that
// never got an id.
func (p *Pipeline) recordFailure(ctx context.Context, actor string, action models.AuditAction, target string, err error) {
	p.audit.Record(ctx, actor, action, target, map[string]any{
		"outcome": "failure",
		"error":   utils.Truncate(err.Error(), 300),
	})
}

func (p *Pipeline) extractDocument(ctx context.Context, actor string, doc *models.RequirementsDocument, data []byte) error {
	reqs, err := p.extractor.Requirements(doc.ID, data, doc.MediaType)
	if err != nil {
		if statusErr := p.store.UpdateDocumentStatus(ctx, doc.ID, models.DocumentFailed); statusErr != nil {
			p.log.Error("failed to mark document failed", zap.String("document", doc.ID), zap.Error(statusErr))
		}
		doc.Status = models.DocumentFailed
		p.audit.Record(ctx, actor, models.ActionExtract, doc.ID, map[string]any{
			"outcome": "failure",
			"error":   utils.Truncate(err.Error(), 300),
		})
		return err
	}

	if err := p.store.SaveRequirements(ctx, doc.ID, reqs); err != nil {
		return err
	}
	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, models.DocumentExtracted); err != nil {
		return err
	}
	doc.Status = models.DocumentExtracted
	p.index.RegisterDocument(doc.ID, reqs)
	p.audit.Record(ctx, actor, models.ActionExtract, doc.ID, map[string]any{
		"requirements": len(reqs),
	})
	return nil
}

func (p *Pipeline) putWithRetry(ctx context.Context, key string, data []byte) (string, error) {
	var ref string
	op := func() error {
		var err error
		ref, err = p.blobs.Put(ctx, key, data)
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), storagePutAttempts-1), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return ref, nil
}

// Generate runs test case generation for an extracted document. Unless force
// is set, a document that already has a completed run returns that run's
// result instead of generating again. The per-document run slot serializes
// concurrent generation and regeneration.
func (p *Pipeline) Generate(ctx context.Context, actor, docID string, force bool) (*models.GenerationRun, []models.TestCase, error) {
	release, err := p.locks.Acquire(ctx, docID)
	if err != nil {
		p.recordFailure(ctx, actor, models.ActionGenerate, docID, err)
		return nil, nil, err
	}
	defer release()

	doc, err := p.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if doc.Status != models.DocumentExtracted {
		err := fault.Newf(fault.KindValidation, "document %s is %s, not Extracted", docID, doc.Status)
		p.recordFailure(ctx, actor, models.ActionGenerate, docID, err)
		return nil, nil, err
	}

	if !force {
		if run, err := p.store.LatestRun(ctx, docID); err == nil {
			cases, err := p.runCases(ctx, docID, run)
			return run, cases, err
		} else if !fault.IsKind(err, fault.KindNotFound) {
			return nil, nil, err
		}
	}

	reqs, err := p.store.GetRequirements(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	run, cases, err := p.orch.Generate(ctx, doc, reqs)
	if err != nil {
		return nil, nil, err
	}
	if err := p.commitRun(ctx, docID, run, cases); err != nil {
		return nil, nil, err
	}
	p.audit.Record(ctx, actor, models.ActionGenerate, docID, map[string]any{
		"run_id":     run.ID,
		"test_cases": len(run.TestCaseIDs),
		"forced":     force,
	})
	return run, cases, nil
}

// Regenerate reruns generation against the newest run using the reviewer's
// clarification answers, reconciling ids so untouched cases keep their
// identity and review status. The parent run is resolved inside the run slot,
// so a queued regeneration always chains to the actual newest run.
func (p *Pipeline) Regenerate(ctx context.Context, actor, docID string, answers []models.ClarificationAnswer) (*models.GenerationRun, []models.TestCase, error) {
	release, err := p.locks.Acquire(ctx, docID)
	if err != nil {
		p.recordFailure(ctx, actor, models.ActionRegenerate, docID, err)
		return nil, nil, err
	}
	defer release()

	doc, err := p.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	parent, err := p.store.LatestRun(ctx, docID)
	if err != nil {
		if fault.IsKind(err, fault.KindNotFound) {
			err := fault.Newf(fault.KindValidation, "document %s has no run to regenerate", docID)
			p.recordFailure(ctx, actor, models.ActionRegenerate, docID, err)
			return nil, nil, err
		}
		return nil, nil, err
	}
	reqs, err := p.store.GetRequirements(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	existing, err := p.store.GetTestCases(ctx, docID)
	if err != nil {
		return nil, nil, err
	}

	run, cases, err := p.orch.Regenerate(ctx, doc, reqs, parent, existing, answers)
	if err != nil {
		return nil, nil, err
	}
	if err := p.commitRun(ctx, docID, run, cases); err != nil {
		return nil, nil, err
	}
	p.audit.Record(ctx, actor, models.ActionRegenerate, docID, map[string]any{
		"run_id":        run.ID,
		"parent_run_id": parent.ID,
		"answers":       len(answers),
	})
	return run, cases, nil
}

func (p *Pipeline) commitRun(ctx context.Context, docID string, run *models.GenerationRun, cases []models.TestCase) error {
	if err := p.store.SaveTestCases(ctx, docID, cases); err != nil {
		return err
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		return err
	}
	return p.index.PutCases(docID, cases)
}

func (p *Pipeline) runCases(ctx context.Context, docID string, run *models.GenerationRun) ([]models.TestCase, error) {
	all, err := p.store.GetTestCases(ctx, docID)
	if err != nil {
		return nil, err
	}
	inRun := make(map[string]bool, len(run.TestCaseIDs))
	for _, id := range run.TestCaseIDs {
		inRun[id] = true
	}
	var cases []models.TestCase
	for _, tc := range all {
		if inRun[tc.ID] {
			cases = append(cases, tc)
		}
	}
	return cases, nil
}

// Traceability returns the document's requirement rows with aggregate status.
func (p *Pipeline) Traceability(ctx context.Context, docID string) ([]models.TraceabilityRow, error) {
	if _, err := p.store.GetDocument(ctx, docID); err != nil {
		return nil, err
	}
	return p.index.Rows(docID)
}

// SetTestCaseStatus applies an optimistic status edit: the caller supplies
// the status it last observed and the edit is rejected with a conflict when
// the stored status has since changed. Status edits are independent of run
// locking.
func (p *Pipeline) SetTestCaseStatus(ctx context.Context, actor, caseID string, newStatus, expected models.TestCaseStatus) (*models.TestCase, error) {
	updated, err := p.index.SetStatus(caseID, newStatus, expected)
	if err != nil {
		p.recordFailure(ctx, actor, models.ActionStatusChange, caseID, err)
		return nil, err
	}
	if err := p.store.UpdateTestCaseStatus(ctx, caseID, newStatus); err != nil {
		// Put the index back so live reads keep matching durable state. The
		// reverse edit runs under the same CAS, with the just-applied status
		// as the expectation.
		if _, rbErr := p.index.SetStatus(caseID, expected, newStatus); rbErr != nil {
			p.log.Error("index rollback failed after storage error",
				zap.String("test_case", caseID), zap.Error(rbErr))
		}
		err = fault.Wrap(fault.KindStorage, "status update not persisted", err)
		p.recordFailure(ctx, actor, models.ActionStatusChange, caseID, err)
		return nil, err
	}
	p.audit.Record(ctx, actor, models.ActionStatusChange, caseID, map[string]any{
		"from": string(expected),
		"to":   string(newStatus),
	})
	return &updated, nil
}

// Export serializes a point-in-time snapshot of the document's traceability
// state. The snapshot is taken by value copy, so concurrent writers are never
// blocked and the output never reflects a half-applied change.
func (p *Pipeline) Export(ctx context.Context, actor, docID, format string) ([]byte, string, error) {
	exporter, err := export.For(format)
	if err != nil {
		p.recordFailure(ctx, actor, models.ActionExport, docID, err)
		return nil, "", err
	}
	if _, err := p.store.GetDocument(ctx, docID); err != nil {
		return nil, "", err
	}
	snap, err := p.index.Snapshot(docID)
	if err != nil {
		return nil, "", err
	}
	data, err := exporter.Export(snap)
	if err != nil {
		return nil, "", err
	}
	p.audit.Record(ctx, actor, models.ActionExport, docID, map[string]any{
		"format": format,
		"bytes":  len(data),
	})
	return data, exporter.ContentType(), nil
}

// AuditLog returns audit entries matching the filter in ascending time order.
func (p *Pipeline) AuditLog(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	return p.audit.Query(ctx, filter)
}

// MaxUploadBytes returns the configured upload size limit, for transports
// that want to cut an oversize body off early.
func (p *Pipeline) MaxUploadBytes() int64 {
	return p.cfg.Upload.MaxSizeBytes
}

// GetDocument returns one document.
func (p *Pipeline) GetDocument(ctx context.Context, docID string) (*models.RequirementsDocument, error) {
	return p.store.GetDocument(ctx, docID)
}

// ListDocuments returns all documents.
func (p *Pipeline) ListDocuments(ctx context.Context) ([]*models.RequirementsDocument, error) {
	return p.store.ListDocuments(ctx)
}
