package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vetlink/vetlink/internal/model"
	"github.com/vetlink/vetlink/internal/repository"
)

var (
	ErrNotPostAuthor       = errors.New("only the author can change this post")
	ErrDescriptionTooLong  = errors.New("description is too long (max 2000 characters)")
	ErrDescriptionRequired = errors.New("description is required")
)

const maxDescriptionLength = 2000

type FeedService struct {
	feedPostRepository repository.FeedPostRepository
	uploadService      *UploadService
	images             PhotoTarget
}

func NewFeedService(
	feedPostRepository repository.FeedPostRepository,
	uploadService *UploadService,
	imageStore FileStore,
) *FeedService {
	return &FeedService{
		feedPostRepository: feedPostRepository,
		uploadService:      uploadService,
		images:             NewFeedImageTarget(feedPostRepository, imageStore),
	}
}

func (s *FeedService) Create(userID int64, description string) (*model.FeedPost, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrDescriptionRequired
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}

	post := &model.FeedPost{
		UserID:      userID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.feedPostRepository.Create(post); err != nil {
		return nil, fmt.Errorf("failed to create feed post: %w", err)
	}
	return post, nil
}

func (s *FeedService) ByID(id int64) (*model.FeedPost, error) {
	post, err := s.feedPostRepository.ByID(id)
	if err != nil {
		return nil, err
	}
	s.populateURL(post)
	return post, nil
}

func (s *FeedService) ByUser(userID int64) ([]*model.FeedPost, error) {
	posts, err := s.feedPostRepository.ByUser(userID)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		s.populateURL(p)
	}
	return posts, nil
}

// ReplaceImage sets the image of a post owned by userID.
func (s *FeedService) ReplaceImage(userID, postID int64, in UploadInput) (*UploadResult, error) {
	post, err := s.feedPostRepository.ByID(postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, ErrNotPostAuthor
	}
	return s.uploadService.Replace(s.images, postID, in)
}

func (s *FeedService) populateURL(post *model.FeedPost) {
	if post.HasImage() {
		post.ImageURL = s.images.Store().URL(*post.Image)
	}
}
