package model

import (
	"time"
)

type User struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Photo        *string   `db:"photo"` // stored file name under the photo root, nil when unset
	CreatedAt    time.Time `db:"created_at"`

	// Computed fields (not in database)
	PhotoURL string `db:"-"`
}

func (u *User) HasPhoto() bool {
	return u.Photo != nil && *u.Photo != ""
}
