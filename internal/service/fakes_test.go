package service_test

import (
	"sync"

	"github.com/vetlink/vetlink/internal/model"
	"github.com/vetlink/vetlink/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	next  int64
	users map[int64]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[int64]*model.User{}}
}

func (m *memUsers) Create(u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.next++
	u.ID = m.next
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) ByID(id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) ByEmail(email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) Photo(id int64) (*string, error) {
	u, err := m.ByID(id)
	if err != nil {
		return nil, err
	}
	return u.Photo, nil
}

func (m *memUsers) UpdatePhoto(id int64, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.Photo = &path
	return true, nil
}

func (m *memUsers) PhotoPaths() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for _, u := range m.users {
		if u.Photo != nil {
			paths = append(paths, *u.Photo)
		}
	}
	return paths, nil
}

type memPosts struct {
	mu    sync.Mutex
	next  int64
	posts map[int64]*model.FeedPost
}

func newMemPosts() *memPosts {
	return &memPosts{posts: map[int64]*model.FeedPost{}}
}

func (m *memPosts) Create(p *model.FeedPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	p.ID = m.next
	cp := *p
	m.posts[p.ID] = &cp
	return nil
}

func (m *memPosts) ByID(id int64) (*model.FeedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, repository.ErrFeedPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) ByUser(userID int64) ([]*model.FeedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.FeedPost
	for _, p := range m.posts {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPosts) Image(id int64) (*string, error) {
	p, err := m.ByID(id)
	if err != nil {
		return nil, err
	}
	return p.Image, nil
}

func (m *memPosts) UpdateImage(id int64, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return false, nil
	}
	p.Image = &path
	return true, nil
}

func (m *memPosts) ImagePaths() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for _, p := range m.posts {
		if p.Image != nil {
			paths = append(paths, *p.Image)
		}
	}
	return paths, nil
}
