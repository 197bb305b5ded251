package model

import "time"

// Cursor records the last successfully fetched day of a category.
type Cursor struct {
	Category  Category
	LastDay   Day
	UpdatedAt time.Time
}
