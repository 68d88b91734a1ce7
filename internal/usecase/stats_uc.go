// File: internal/usecase/stats_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-lesson-market/internal/domain/ports/repository"
)

var _ StatsUseCase = (*statsUC)(nil)

// RevenueReport is completed-purchase revenue over the standard windows,
// in Stars. Windows are calendar-truncated, not rolling.
type RevenueReport struct {
	Week  int64 `json:"week"`
	Month int64 `json:"month"`
	Year  int64 `json:"year"`
}

type StatsUseCase interface {
	Revenue(ctx context.Context) (*RevenueReport, error)
}

type statsUC struct {
	purchases repository.PurchaseRepository
	log       *zerolog.Logger
}

func NewStatsUseCase(purchases repository.PurchaseRepository, logger *zerolog.Logger) *statsUC {
	sLog := logger.With().Str("component", "StatsUseCase").Logger()
	return &statsUC{purchases: purchases, log: &sLog}
}

func (u *statsUC) Revenue(ctx context.Context) (*RevenueReport, error) {
	week, err := u.purchases.SumCompletedByPeriod(ctx, nil, "week")
	if err != nil {
		return nil, err
	}
	month, err := u.purchases.SumCompletedByPeriod(ctx, nil, "month")
	if err != nil {
		return nil, err
	}
	year, err := u.purchases.SumCompletedByPeriod(ctx, nil, "year")
	if err != nil {
		return nil, err
	}
	return &RevenueReport{Week: week, Month: month, Year: year}, nil
}
