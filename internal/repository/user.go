package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vetlink/vetlink/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type UserRepository interface {
	Create(user *model.User) error
	ByID(id int64) (*model.User, error)
	ByEmail(email string) (*model.User, error)

	// Photo returns the stored photo path, nil when the user has none.
	Photo(id int64) (*string, error)
	// UpdatePhoto points the user at path and reports whether a row changed.
	UpdatePhoto(id int64, path string) (bool, error)
	// PhotoPaths lists every live photo path.
	PhotoPaths() ([]string, error)
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	query := `INSERT INTO users (name, email, password_hash, photo, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err := r.db.QueryRowx(query, user.Name, user.Email, user.PasswordHash, user.Photo, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		// Check for unique constraint violation (works for both SQLite and PostgreSQL)
		errStr := err.Error()
		if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(id int64) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, name, email, password_hash, photo, created_at FROM users WHERE id = $1`

	err := r.db.Get(user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ByEmail(email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, name, email, password_hash, photo, created_at FROM users WHERE email = $1`

	err := r.db.Get(user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) Photo(id int64) (*string, error) {
	var photo sql.NullString
	query := `SELECT photo FROM users WHERE id = $1`

	err := r.db.Get(&photo, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if !photo.Valid || photo.String == "" {
		return nil, nil
	}
	return &photo.String, nil
}

func (r *userRepository) UpdatePhoto(id int64, path string) (bool, error) {
	query := `UPDATE users SET photo = $1 WHERE id = $2`

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

func (r *userRepository) PhotoPaths() ([]string, error) {
	var paths []string
	query := `SELECT photo FROM users WHERE photo IS NOT NULL AND photo <> ''`

	if err := r.db.Select(&paths, query); err != nil {
		return nil, err
	}

	return paths, nil
}
