package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
)

// AuditRecorder appends financial audit entries. Writes are best-effort:
// a failed append is logged and never blocks or rolls back the financial
// transition it describes, so it is always called outside the transaction
// boundary of that transition.
type AuditRecorder struct {
	repo repository.AuditLogRepository
	log  *zerolog.Logger
}

func NewAuditRecorder(repo repository.AuditLogRepository, logger *zerolog.Logger) *AuditRecorder {
	auditLog := logger.With().Str("component", "audit").Logger()
	return &AuditRecorder{repo: repo, log: &auditLog}
}

func (a *AuditRecorder) Record(ctx context.Context, e *model.AuditEntry) {
	if a == nil || a.repo == nil {
		return
	}
	if err := a.repo.Append(ctx, repository.NoTX, e); err != nil {
		a.log.Error().Err(err).
			Str("action", e.Action).
			Str("payment_id", e.PaymentID).
			Int64("amount", e.Amount).
			Msg("audit append failed")
		return
	}
	a.log.Info().
		Str("action", e.Action).
		Str("payment_id", e.PaymentID).
		Int64("amount", e.Amount).
		Msg("audit")
}
