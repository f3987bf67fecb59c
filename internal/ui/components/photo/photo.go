// Package photo renders the profile photo and feed image fragments that
// upload responses swap in place.
package photo

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const placeholderURL = "/static/avatar-placeholder.svg"

// ProfilePhotoID is the DOM id of the profile photo element. Upload
// responses swap the contents of ProfileSlotID.
const (
	ProfilePhotoID = "profile-photo"
	ProfileSlotID  = "profile-photo-slot"
)

func FeedImageID(postID int64) string {
	return fmt.Sprintf("feed-image-%d", postID)
}

func FeedSlotID(postID int64) string {
	return fmt.Sprintf("feed-image-slot-%d", postID)
}

// SlotTarget is the hx-swap-oob target that replaces a slot's contents.
func SlotTarget(slotID string) string {
	return "innerHTML:#" + slotID
}

// Image renders <img id=... src=...>. An empty url renders the placeholder.
func Image(id, url, alt string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if url == "" {
			url = placeholderURL
		}
		_, err := fmt.Fprintf(w, `<img id="%s" src="%s" alt="%s" loading="lazy">`,
			templ.EscapeString(id), templ.EscapeString(url), templ.EscapeString(alt))
		return err
	})
}
