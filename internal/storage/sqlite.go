package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		media_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		storage_ref TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);

	CREATE TABLE IF NOT EXISTS requirements (
		id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		description TEXT NOT NULL,
		compliance_refs TEXT,
		PRIMARY KEY (document_id, id),
		FOREIGN KEY (document_id) REFERENCES documents(id)
	);

	CREATE TABLE IF NOT EXISTS test_cases (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		requirement_id TEXT NOT NULL,
		title TEXT NOT NULL,
		steps TEXT NOT NULL,
		expected_result TEXT NOT NULL,
		priority TEXT NOT NULL,
		compliance_refs TEXT,
		status TEXT NOT NULL,
		origin_run_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id)
	);

	CREATE INDEX IF NOT EXISTS idx_test_cases_document_id ON test_cases(document_id);

	CREATE TABLE IF NOT EXISTS generation_runs (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		parent_run_id TEXT,
		prompt_fingerprint TEXT NOT NULL,
		test_case_ids TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_document_created ON generation_runs(document_id, created_at);

	CREATE TABLE IF NOT EXISTS audit_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		target_id TEXT,
		detail TEXT,
		ts TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_entries(ts, seq);
	CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_entries(actor);
	CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_entries(action);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document row.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *models.RequirementsDocument) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, media_type, size_bytes, content_hash, storage_ref, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.MediaType, doc.SizeBytes, doc.ContentHash, doc.StorageRef, string(doc.Status), doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) scanDocument(row *sql.Row) (*models.RequirementsDocument, error) {
	var doc models.RequirementsDocument
	var status string
	err := row.Scan(&doc.ID, &doc.Filename, &doc.MediaType, &doc.SizeBytes, &doc.ContentHash, &doc.StorageRef, &status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Status = models.DocumentStatus(status)
	return &doc, nil
}

const documentColumns = `id, filename, media_type, size_bytes, content_hash, storage_ref, status, created_at, updated_at`

// GetDocument returns a document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*models.RequirementsDocument, error) {
	doc, err := s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fault.Newf(fault.KindNotFound, "document not found: %s", id)
	}
	return doc, err
}

// GetDocumentByHash returns the earliest document with the given content hash.
func (s *SQLiteStore) GetDocumentByHash(ctx context.Context, hash string) (*models.RequirementsDocument, error) {
	doc, err := s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE content_hash = ? ORDER BY created_at LIMIT 1`, hash))
	if err == sql.ErrNoRows {
		return nil, fault.Newf(fault.KindNotFound, "no document with hash %s", hash)
	}
	return doc, err
}

// UpdateDocumentStatus updates a document's lifecycle status.
func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fault.Newf(fault.KindNotFound, "document not found: %s", id)
	}
	return nil
}

// ListDocuments returns all documents ordered by creation time.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*models.RequirementsDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.RequirementsDocument
	for rows.Next() {
		var doc models.RequirementsDocument
		var status string
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.MediaType, &doc.SizeBytes, &doc.ContentHash, &doc.StorageRef, &status, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.Status = models.DocumentStatus(status)
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// SaveRequirements replaces the requirement set for a document in one
// transaction. Requirements are immutable once extracted, so a replace only
// happens on the first successful extraction.
func (s *SQLiteStore) SaveRequirements(ctx context.Context, docID string, reqs []models.Requirement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM requirements WHERE document_id = ?`, docID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO requirements (id, document_id, position, description, compliance_refs) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, req := range reqs {
		refs, err := json.Marshal(req.ComplianceRefs)
		if err != nil {
			return fmt.Errorf("marshal compliance refs: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, req.ID, docID, i, req.Description, string(refs)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetRequirements returns a document's requirements in extraction order.
func (s *SQLiteStore) GetRequirements(ctx context.Context, docID string) ([]models.Requirement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, description, compliance_refs FROM requirements WHERE document_id = ? ORDER BY position`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.Requirement
	for rows.Next() {
		var req models.Requirement
		var refs sql.NullString
		if err := rows.Scan(&req.ID, &req.DocumentID, &req.Description, &refs); err != nil {
			return nil, err
		}
		if refs.Valid && refs.String != "" {
			if err := json.Unmarshal([]byte(refs.String), &req.ComplianceRefs); err != nil {
				return nil, fmt.Errorf("unmarshal compliance refs: %w", err)
			}
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// SaveTestCases upserts test cases for a document in one transaction.
func (s *SQLiteStore) SaveTestCases(ctx context.Context, docID string, cases []models.TestCase) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO test_cases (id, document_id, requirement_id, title, steps, expected_result, priority, compliance_refs, status, origin_run_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			steps = excluded.steps,
			expected_result = excluded.expected_result,
			priority = excluded.priority,
			compliance_refs = excluded.compliance_refs,
			status = excluded.status,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, tc := range cases {
		steps, err := json.Marshal(tc.Steps)
		if err != nil {
			return fmt.Errorf("marshal steps: %w", err)
		}
		refs, err := json.Marshal(tc.ComplianceRefs)
		if err != nil {
			return fmt.Errorf("marshal compliance refs: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			tc.ID, docID, tc.RequirementID, tc.Title, string(steps), tc.ExpectedResult,
			string(tc.Priority), string(refs), string(tc.Status), tc.OriginRunID, tc.CreatedAt, tc.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateTestCaseStatus updates a single test case's status.
func (s *SQLiteStore) UpdateTestCaseStatus(ctx context.Context, id string, status models.TestCaseStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE test_cases SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fault.Newf(fault.KindNotFound, "test case not found: %s", id)
	}
	return nil
}

// GetTestCases returns all test cases for a document, superseded included,
// ordered by id so regeneration history reads stably.
func (s *SQLiteStore) GetTestCases(ctx context.Context, docID string) ([]models.TestCase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, requirement_id, title, steps, expected_result, priority, compliance_refs, status, origin_run_id, created_at, updated_at
		 FROM test_cases WHERE document_id = ? ORDER BY id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []models.TestCase
	for rows.Next() {
		var tc models.TestCase
		var steps, refs sql.NullString
		var priority, status string
		if err := rows.Scan(&tc.ID, &tc.RequirementID, &tc.Title, &steps, &tc.ExpectedResult, &priority, &refs, &status, &tc.OriginRunID, &tc.CreatedAt, &tc.UpdatedAt); err != nil {
			return nil, err
		}
		tc.Priority = models.Priority(priority)
		tc.Status = models.TestCaseStatus(status)
		if steps.Valid && steps.String != "" {
			if err := json.Unmarshal([]byte(steps.String), &tc.Steps); err != nil {
				return nil, fmt.Errorf("unmarshal steps: %w", err)
			}
		}
		if refs.Valid && refs.String != "" {
			if err := json.Unmarshal([]byte(refs.String), &tc.ComplianceRefs); err != nil {
				return nil, fmt.Errorf("unmarshal compliance refs: %w", err)
			}
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// CreateRun inserts a generation run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.GenerationRun) error {
	ids, err := json.Marshal(run.TestCaseIDs)
	if err != nil {
		return fmt.Errorf("marshal test case ids: %w", err)
	}
	var parent any
	if run.ParentRunID != "" {
		parent = run.ParentRunID
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO generation_runs (id, document_id, parent_run_id, prompt_fingerprint, test_case_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.DocumentID, parent, run.PromptFingerprint, string(ids), run.CreatedAt,
	)
	return err
}

// GetRuns returns a document's runs oldest first.
func (s *SQLiteStore) GetRuns(ctx context.Context, docID string) ([]models.GenerationRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, parent_run_id, prompt_fingerprint, test_case_ids, created_at
		 FROM generation_runs WHERE document_id = ? ORDER BY created_at, id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.GenerationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LatestRun returns the newest run for a document.
func (s *SQLiteStore) LatestRun(ctx context.Context, docID string) (*models.GenerationRun, error) {
	runs, err := s.GetRuns(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fault.Newf(fault.KindNotFound, "no generation run for document %s", docID)
	}
	return &runs[len(runs)-1], nil
}

func scanRun(rows *sql.Rows) (*models.GenerationRun, error) {
	var run models.GenerationRun
	var parent sql.NullString
	var ids string
	if err := rows.Scan(&run.ID, &run.DocumentID, &parent, &run.PromptFingerprint, &ids, &run.CreatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		run.ParentRunID = parent.String
	}
	if err := json.Unmarshal([]byte(ids), &run.TestCaseIDs); err != nil {
		return nil, fmt.Errorf("unmarshal test case ids: %w", err)
	}
	return &run, nil
}

// AppendAudit inserts an audit entry and fills in its sequence number.
// Entries are insert-only; there is no update or delete path.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, actor, action, target_id, detail, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Actor, string(entry.Action), entry.TargetID, string(detail), entry.Timestamp,
	)
	if err != nil {
		return err
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.Seq = seq
	return nil
}

// QueryAudit returns entries matching the filter, ordered ascending by
// (timestamp, sequence). Zero filter fields match everything.
func (s *SQLiteStore) QueryAudit(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	var conds []string
	var args []any
	if filter.Actor != "" {
		conds = append(conds, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.TargetID != "" {
		conds = append(conds, "target_id = ?")
		args = append(args, filter.TargetID)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, filter.To)
	}

	query := `SELECT id, actor, action, target_id, detail, ts, seq FROM audit_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts, seq"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var action string
		var target, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Actor, &action, &target, &detail, &e.Timestamp, &e.Seq); err != nil {
			return nil, err
		}
		e.Action = models.AuditAction(action)
		if target.Valid {
			e.TargetID = target.String
		}
		if detail.Valid && detail.String != "" && detail.String != "null" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
