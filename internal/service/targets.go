package service

import (
	"github.com/vetlink/vetlink/internal/repository"
)

const (
	TargetUserPhoto = "user_photo"
	TargetFeedImage = "feed_image"
)

// userPhotoTarget points the pipeline at users.photo.
type userPhotoTarget struct {
	users repository.UserRepository
	store FileStore
}

func NewUserPhotoTarget(users repository.UserRepository, store FileStore) PhotoTarget {
	return &userPhotoTarget{users: users, store: store}
}

func (t *userPhotoTarget) Name() string     { return TargetUserPhoto }
func (t *userPhotoTarget) Store() FileStore { return t.store }

func (t *userPhotoTarget) CurrentPath(userID int64) (*string, error) {
	return t.users.Photo(userID)
}

func (t *userPhotoTarget) UpdatePath(userID int64, path string) (bool, error) {
	return t.users.UpdatePhoto(userID, path)
}

// feedImageTarget points the pipeline at feed_posts.image; the owner id is
// the post id.
type feedImageTarget struct {
	posts repository.FeedPostRepository
	store FileStore
}

func NewFeedImageTarget(posts repository.FeedPostRepository, store FileStore) PhotoTarget {
	return &feedImageTarget{posts: posts, store: store}
}

func (t *feedImageTarget) Name() string     { return TargetFeedImage }
func (t *feedImageTarget) Store() FileStore { return t.store }

func (t *feedImageTarget) CurrentPath(postID int64) (*string, error) {
	return t.posts.Image(postID)
}

func (t *feedImageTarget) UpdatePath(postID int64, path string) (bool, error) {
	return t.posts.UpdateImage(postID, path)
}
