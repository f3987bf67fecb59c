package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/vetlink/vetlink/internal/model"
)

var (
	ErrFeedPostNotFound = errors.New("feed post not found")
)

type FeedPostRepository interface {
	Create(post *model.FeedPost) error
	ByID(id int64) (*model.FeedPost, error)
	ByUser(userID int64) ([]*model.FeedPost, error)
	Image(id int64) (*string, error)
	UpdateImage(id int64, path string) (bool, error)
	ImagePaths() ([]string, error)
}

type feedPostRepository struct {
	db *sqlx.DB
}

func NewFeedPostRepository(db *sqlx.DB) FeedPostRepository {
	return &feedPostRepository{db: db}
}

func (r *feedPostRepository) Create(post *model.FeedPost) error {
	query := `INSERT INTO feed_posts (user_id, description, image, created_at) VALUES ($1, $2, $3, $4) RETURNING id`

	return r.db.QueryRowx(query, post.UserID, post.Description, post.Image, post.CreatedAt).Scan(&post.ID)
}

func (r *feedPostRepository) ByID(id int64) (*model.FeedPost, error) {
	post := &model.FeedPost{}
	query := `SELECT id, user_id, description, image, created_at FROM feed_posts WHERE id = $1`

	err := r.db.Get(post, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeedPostNotFound
	}
	if err != nil {
		return nil, err
	}

	return post, nil
}

func (r *feedPostRepository) ByUser(userID int64) ([]*model.FeedPost, error) {
	var posts []*model.FeedPost
	query := `SELECT id, user_id, description, image, created_at FROM feed_posts WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	if err := r.db.Select(&posts, query, userID); err != nil {
		return nil, err
	}

	return posts, nil
}

func (r *feedPostRepository) Image(id int64) (*string, error) {
	var image sql.NullString
	query := `SELECT image FROM feed_posts WHERE id = $1`

	err := r.db.Get(&image, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeedPostNotFound
	}
	if err != nil {
		return nil, err
	}

	if !image.Valid || image.String == "" {
		return nil, nil
	}
	return &image.String, nil
}

func (r *feedPostRepository) UpdateImage(id int64, path string) (bool, error) {
	query := `UPDATE feed_posts SET image = $1 WHERE id = $2`

	result, err := r.db.Exec(query, path, id)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (r *feedPostRepository) ImagePaths() ([]string, error) {
	var paths []string
	query := `SELECT image FROM feed_posts WHERE image IS NOT NULL AND image <> ''`

	if err := r.db.Select(&paths, query); err != nil {
		return nil, err
	}

	return paths, nil
}
