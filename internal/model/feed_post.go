package model

import (
	"time"
)

type FeedPost struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Description string    `db:"description"`
	Image       *string   `db:"image"` // stored file name under the feed root
	CreatedAt   time.Time `db:"created_at"`

	// Computed fields (not in database)
	ImageURL string `db:"-"`
}

func (p *FeedPost) HasImage() bool {
	return p.Image != nil && *p.Image != ""
}
