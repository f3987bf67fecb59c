package service

import (
	"github.com/vetlink/vetlink/internal/model"
	"github.com/vetlink/vetlink/internal/repository"
)

type UserService struct {
	userRepository repository.UserRepository
	uploadService  *UploadService
	photos         PhotoTarget
}

func NewUserService(
	userRepository repository.UserRepository,
	uploadService *UploadService,
	photoStore FileStore,
) *UserService {
	return &UserService{
		userRepository: userRepository,
		uploadService:  uploadService,
		photos:         NewUserPhotoTarget(userRepository, photoStore),
	}
}

func (s *UserService) ByID(id int64) (*model.User, error) {
	user, err := s.userRepository.ByID(id)
	if err != nil {
		return nil, err
	}

	// Populate photo URL
	if user.HasPhoto() {
		user.PhotoURL = s.photos.Store().URL(*user.Photo)
	}

	return user, nil
}

// ReplacePhoto runs an uploaded image through the pipeline and makes it the
// user's profile photo. Failures are *UploadError.
func (s *UserService) ReplacePhoto(userID int64, in UploadInput) (*UploadResult, error) {
	return s.uploadService.Replace(s.photos, userID, in)
}
