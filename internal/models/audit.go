package models

import "time"

// AuditAction names a state-changing action recorded in the audit trail.
type AuditAction string

const (
	ActionUpload       AuditAction = "Upload"
	ActionExtract      AuditAction = "Extract"
	ActionGenerate     AuditAction = "Generate"
	ActionRegenerate   AuditAction = "Regenerate"
	ActionStatusChange AuditAction = "StatusChange"
	ActionExport       AuditAction = "Export"
)

// AuditEntry is one immutable record of a state-changing action. Entries are
// totally ordered by (Timestamp, Seq); Seq is assigned monotonically at
// insert time so same-timestamp entries keep their append order.
type AuditEntry struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    AuditAction    `json:"action"`
	TargetID  string         `json:"target_id"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Seq       int64          `json:"seq"`
}

// AuditFilter selects audit entries. Zero fields match everything; From and
// To bound the time range inclusively, which also makes a query restartable
// from the last entry seen.
type AuditFilter struct {
	Actor    string
	Action   AuditAction
	TargetID string
	From     time.Time
	To       time.Time
	Limit    int
}
