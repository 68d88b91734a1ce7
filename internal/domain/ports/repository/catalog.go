package repository

import (
	"context"

	"telegram-lesson-market/internal/domain/model"
)

// CatalogRepository is the read-only view of the CRUD layer's data the
// payment engine needs: buyer lookups and item price/active resolution.
type CatalogRepository interface {
	FindUser(ctx context.Context, tx Tx, id int64) (*model.User, error)
	FindUserByTelegramID(ctx context.Context, tx Tx, telegramID int64) (*model.User, error)
	// EnsureUser registers the telegram account on first contact and returns
	// the existing row afterwards. The username is refreshed on every call.
	EnsureUser(ctx context.Context, tx Tx, telegramID int64, username string) (*model.User, error)
	// ResolveItem returns the item's current price and active flag for
	// exactly one of lesson/course, per the ItemRef tag.
	ResolveItem(ctx context.Context, tx Tx, ref model.ItemRef) (*model.Item, error)
}
