// Package audit records every state-changing action as an immutable entry.
// Writes are synchronous: the triggering operation is not complete until its
// entry is durably recorded.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kensho/internal/models"
)

// Appender is the storage capability the logger writes through. It assigns
// the monotonic sequence number on append.
type Appender interface {
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	QueryAudit(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
}

// Logger appends audit entries through durable storage.
type Logger struct {
	store Appender
	log   *zap.Logger
	now   func() time.Time
}

// NewLogger creates a Logger.
func NewLogger(store Appender, logger *zap.Logger) *Logger {
	return &Logger{store: store, log: logger, now: time.Now}
}

// Append durably records one entry and returns it with its assigned sequence
// number. The caller's operation must fail if Append fails: the primary
// effect is not considered successful without its audit entry.
func (l *Logger) Append(ctx context.Context, actor string, action models.AuditAction, targetID string, detail map[string]any) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		Actor:     actor,
		Action:    action,
		TargetID:  targetID,
		Detail:    detail,
		Timestamp: l.now().UTC(),
	}
	if err := l.store.AppendAudit(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Record audits an action whose primary effect has already succeeded and must
// not be rolled back. The write is retried once; a persistent failure is
// surfaced as a warning, never silently dropped.
func (l *Logger) Record(ctx context.Context, actor string, action models.AuditAction, targetID string, detail map[string]any) {
	if _, err := l.Append(ctx, actor, action, targetID, detail); err != nil {
		if _, retryErr := l.Append(ctx, actor, action, targetID, detail); retryErr != nil {
			l.log.Warn("audit entry lost after committed effect",
				zap.String("actor", actor),
				zap.String("action", string(action)),
				zap.String("target", targetID),
				zap.Error(retryErr))
		}
	}
}

// Query returns entries matching the filter in ascending (timestamp, seq)
// order. Passing the last seen timestamp as From restarts an interrupted read.
func (l *Logger) Query(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	return l.store.QueryAudit(ctx, filter)
}
