package services

import (
	"context"

	"go.uber.org/zap"
)

// recordAudit logs entry and tolerates audit failures.
func recordAudit(ctx context.Context, audit *AuditService, log *zap.Logger, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Log(ctx, entry); err != nil && log != nil {
		log.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}
