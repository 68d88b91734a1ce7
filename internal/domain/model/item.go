package model

import (
	"time"

	"telegram-lesson-market/internal/domain"
)

// ItemType is the closed set of sellable item kinds.
type ItemType string

const (
	ItemTypeLesson ItemType = "lesson"
	ItemTypeCourse ItemType = "course"
)

// ParseItemType validates a wire-level item type string.
func ParseItemType(s string) (ItemType, error) {
	switch ItemType(s) {
	case ItemTypeLesson, ItemTypeCourse:
		return ItemType(s), nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

// ItemRef identifies exactly one sellable item. It replaces the pair of
// nullable lesson_id/course_id foreign keys at the domain level; the XOR
// invariant lives in the type, the repository maps it back to two columns.
type ItemRef struct {
	Type ItemType
	ID   int64
}

func (r ItemRef) IsZero() bool { return r.ID == 0 || r.Type == "" }

// Item is the read-side projection the payment engine needs from the catalog:
// a price and an active flag, whatever the underlying row is.
type Item struct {
	Ref      ItemRef
	Title    string
	Price    int64 // Stars, after any catalog-level course discount
	IsActive bool
}

// User is the read-side projection of a buyer.
type User struct {
	ID         int64
	TelegramID int64
	Username   string
	IsActive   bool
	CreatedAt  time.Time
}
