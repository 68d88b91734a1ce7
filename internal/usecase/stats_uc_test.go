//go:build !integration

package usecase_test

import (
	"context"
	"testing"

	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/usecase"
)

func TestStatsUseCase_Revenue(t *testing.T) {
	ctx := context.Background()
	purchases := NewMockPurchaseRepo()

	done, _ := model.NewPurchase(1, model.ItemRef{Type: model.ItemTypeLesson, ID: 1}, 700)
	done.Status = model.PurchaseStatusCompleted
	purchases.Save(ctx, nil, done)

	open, _ := model.NewPurchase(1, model.ItemRef{Type: model.ItemTypeLesson, ID: 2}, 300)
	purchases.Save(ctx, nil, open)

	uc := usecase.NewStatsUseCase(purchases, newTestLogger())
	report, err := uc.Revenue(ctx)
	if err != nil {
		t.Fatalf("revenue failed: %v", err)
	}
	// The in-memory repo counts completed rows in every window; the point is
	// that pending amounts never leak into revenue.
	if report.Week != 700 || report.Month != 700 || report.Year != 700 {
		t.Errorf("unexpected report: %+v", report)
	}
}
