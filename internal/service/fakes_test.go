package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
)

// memUsers: UserStore в памяти.
type memUsers struct {
	mu      sync.Mutex
	nextID  int64
	byName  map[string]*model.User
	byID    map[int64]*model.User
	nameHit int // количество вызовов GetUserName
}

func newMemUsers() *memUsers {
	return &memUsers{byName: map[string]*model.User{}, byID: map[int64]*model.User{}}
}

func (m *memUsers) Add(_ context.Context, userName, pw string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[userName]; ok {
		return 0, fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, userName)
	}
	m.nextID++
	u := &model.User{ID: m.nextID, UserName: userName, PasswordHash: "plain$" + pw}
	m.byName[userName] = u
	m.byID[u.ID] = u
	return u.ID, nil
}

func (m *memUsers) CheckCredentials(_ context.Context, userName, pw string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[userName]
	return ok && u.PasswordHash == "plain$"+pw, nil
}

func (m *memUsers) GetUserID(_ context.Context, userName string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[userName]
	if !ok {
		return 0, model.ErrUserNotFound
	}
	return u.ID, nil
}

func (m *memUsers) GetUserName(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nameHit++
	u, ok := m.byID[id]
	if !ok {
		return "", model.ErrUserNotFound
	}
	return u.UserName, nil
}

func (m *memUsers) List(_ context.Context) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]*model.User, 0, len(m.byID))
	for _, u := range m.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

type fileKey struct {
	userID int64
	name   string
}

// memFiles: FileMetadataStore в памяти.
type memFiles struct {
	mu        sync.Mutex
	rows      map[fileKey]*model.FileRecord
	insertErr error // возвращается из Insert, если задана
	deleteErr error
}

func newMemFiles() *memFiles {
	return &memFiles{rows: map[fileKey]*model.FileRecord{}}
}

func (m *memFiles) Insert(_ context.Context, userID int64, name string, size int64, typ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	k := fileKey{userID, name}
	if _, ok := m.rows[k]; ok {
		return fmt.Errorf("%w: %w", model.ErrPersistence, model.ErrFileAlreadyExists)
	}
	m.rows[k] = &model.FileRecord{
		FileName: name, FileType: typ, FileSize: size, UserID: userID, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *memFiles) Delete(_ context.Context, userID int64, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	k := fileKey{userID, name}
	_, ok := m.rows[k]
	delete(m.rows, k)
	return ok, nil
}

func (m *memFiles) List(_ context.Context, userID int64, _ model.SortField, _ bool) ([]*model.FileRecord, error) {
	return m.filter(userID, func(string) bool { return true }), nil
}

func (m *memFiles) Exists(_ context.Context, userID int64, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[fileKey{userID, name}]
	return ok, nil
}

func (m *memFiles) Search(_ context.Context, userID int64, p string, matchStart, matchEnd bool) ([]*model.FileRecord, error) {
	return m.filter(userID, func(name string) bool {
		switch {
		case matchStart && matchEnd:
			return name == p
		case matchStart:
			return strings.HasPrefix(name, p)
		case matchEnd:
			return strings.HasSuffix(name, p)
		default:
			return strings.Contains(name, p)
		}
	}), nil
}

func (m *memFiles) filter(userID int64, keep func(string) bool) []*model.FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.FileRecord
	for k, r := range m.rows {
		if k.userID == userID && keep(k.name) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}
