package repository

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/cloud-storage/internal/database"
	"github.com/bigkaa/goartstore/cloud-storage/internal/database/dbtest"
	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
)

// plainHasher: детерминированный хэшер для тестов.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "plain$" + pw, nil }
func (plainHasher) Verify(encoded, pw string) bool { return encoded == "plain$"+pw }

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	cfg := dbtest.Config(t)
	logger := dbtest.Logger()

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func fileNames(files []*model.FileRecord) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.FileName)
	}
	return names
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRepositories(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(pool, plainHasher{})
	files := NewFileRepository(pool)

	t.Run("регистрация и дубликат", func(t *testing.T) {
		id, err := users.Add(ctx, "alice", "Secret#1234")
		if err != nil {
			t.Fatalf("Add() вернул ошибку: %v", err)
		}
		if id <= 0 {
			t.Errorf("Add() вернул id=%d, ожидается положительный", id)
		}

		_, err = users.Add(ctx, "alice", "другой пароль")
		if !errors.Is(err, model.ErrUserAlreadyExists) {
			t.Fatalf("повторный Add() = %v, ожидается ErrUserAlreadyExists", err)
		}

		// Пароль не изменился
		ok, err := users.CheckCredentials(ctx, "alice", "Secret#1234")
		if err != nil || !ok {
			t.Errorf("CheckCredentials() после дубликата = %v, %v; ожидается true", ok, err)
		}
	})

	t.Run("проверка учётных данных", func(t *testing.T) {
		tests := []struct {
			user, pw string
			want     bool
		}{
			{"alice", "Secret#1234", true},
			{"alice", "wrong", false},
			{"nobody", "Secret#1234", false},
		}
		for _, tt := range tests {
			got, err := users.CheckCredentials(ctx, tt.user, tt.pw)
			if err != nil {
				t.Fatalf("CheckCredentials(%q) вернул ошибку: %v", tt.user, err)
			}
			if got != tt.want {
				t.Errorf("CheckCredentials(%q, %q) = %v, ожидается %v", tt.user, tt.pw, got, tt.want)
			}
		}
	})

	t.Run("id и имя взаимно обратны", func(t *testing.T) {
		id, err := users.GetUserID(ctx, "alice")
		if err != nil {
			t.Fatalf("GetUserID() вернул ошибку: %v", err)
		}
		name, err := users.GetUserName(ctx, id)
		if err != nil {
			t.Fatalf("GetUserName() вернул ошибку: %v", err)
		}
		back, err := users.GetUserID(ctx, name)
		if err != nil || back != id {
			t.Errorf("GetUserID(GetUserName(%d)) = %d, %v", id, back, err)
		}

		if _, err := users.GetUserID(ctx, "nobody"); !errors.Is(err, model.ErrUserNotFound) {
			t.Errorf("GetUserID(nobody) = %v, ожидается ErrUserNotFound", err)
		}
		if _, err := users.GetUserName(ctx, 999999); !errors.Is(err, model.ErrUserNotFound) {
			t.Errorf("GetUserName(999999) = %v, ожидается ErrUserNotFound", err)
		}
	})

	t.Run("загрузка и список", func(t *testing.T) {
		id, err := users.Add(ctx, "bob", "pw")
		if err != nil {
			t.Fatalf("Add() вернул ошибку: %v", err)
		}

		before := time.Now().UTC().Add(-time.Minute)
		if err := files.Insert(ctx, id, "report.pdf", 1234, "pdf"); err != nil {
			t.Fatalf("Insert() вернул ошибку: %v", err)
		}

		list, err := files.List(ctx, id, model.SortByFileName, true)
		if err != nil {
			t.Fatalf("List() вернул ошибку: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("len(List()) = %d, ожидается 1", len(list))
		}
		f := list[0]
		if f.FileName != "report.pdf" || f.FileType != "pdf" || f.FileSize != 1234 || f.UserID != id {
			t.Errorf("List()[0] = %+v", f)
		}
		if f.Revision != 0 {
			t.Errorf("Revision = %d, ожидается 0", f.Revision)
		}
		if f.UpdatedAt != nil {
			t.Errorf("UpdatedAt = %v, ожидается nil", f.UpdatedAt)
		}
		if f.CreatedAt.Before(before) {
			t.Errorf("CreatedAt = %v, ожидается не раньше %v", f.CreatedAt, before)
		}

		exists, err := files.Exists(ctx, id, "report.pdf")
		if err != nil || !exists {
			t.Errorf("Exists() = %v, %v; ожидается true", exists, err)
		}

		err = files.Insert(ctx, id, "report.pdf", 1, "pdf")
		if !errors.Is(err, model.ErrPersistence) || !errors.Is(err, model.ErrFileAlreadyExists) {
			t.Errorf("повторный Insert() = %v, ожидается ErrPersistence и ErrFileAlreadyExists", err)
		}
	})

	t.Run("удаление идемпотентно", func(t *testing.T) {
		id, err := users.GetUserID(ctx, "bob")
		if err != nil {
			t.Fatalf("GetUserID() вернул ошибку: %v", err)
		}

		deleted, err := files.Delete(ctx, id, "report.pdf")
		if err != nil || !deleted {
			t.Fatalf("первый Delete() = %v, %v; ожидается true", deleted, err)
		}
		deleted, err = files.Delete(ctx, id, "report.pdf")
		if err != nil || deleted {
			t.Errorf("второй Delete() = %v, %v; ожидается false", deleted, err)
		}
		exists, err := files.Exists(ctx, id, "report.pdf")
		if err != nil || exists {
			t.Errorf("Exists() после удаления = %v, %v; ожидается false", exists, err)
		}
	})

	t.Run("сортировка", func(t *testing.T) {
		id, err := users.Add(ctx, "carol", "pw")
		if err != nil {
			t.Fatalf("Add() вернул ошибку: %v", err)
		}
		for _, f := range []struct {
			name, typ string
			size      int64
		}{
			{"b.txt", "txt", 300},
			{"a.png", "png", 100},
			{"c.gif", "gif", 200},
		} {
			if err := files.Insert(ctx, id, f.name, f.size, f.typ); err != nil {
				t.Fatalf("Insert(%s) вернул ошибку: %v", f.name, err)
			}
		}

		tests := []struct {
			field model.SortField
			asc   bool
			want  []string
		}{
			{model.SortByFileName, true, []string{"a.png", "b.txt", "c.gif"}},
			{model.SortByFileName, false, []string{"c.gif", "b.txt", "a.png"}},
			{model.SortBySize, true, []string{"a.png", "c.gif", "b.txt"}},
			{model.SortByType, true, []string{"c.gif", "a.png", "b.txt"}},
			{model.SortField("unknown"), true, []string{"a.png", "b.txt", "c.gif"}},
		}
		for _, tt := range tests {
			list, err := files.List(ctx, id, tt.field, tt.asc)
			if err != nil {
				t.Fatalf("List(%s) вернул ошибку: %v", tt.field, err)
			}
			if got := fileNames(list); !equalNames(got, tt.want) {
				t.Errorf("List(%s, %v) = %v, ожидается %v", tt.field, tt.asc, got, tt.want)
			}
		}
	})

	t.Run("поиск", func(t *testing.T) {
		id, err := users.Add(ctx, "dave", "pw")
		if err != nil {
			t.Fatalf("Add() вернул ошибку: %v", err)
		}
		for _, name := range []string{"foo.bar", "bar.foo", "foo.foo", "bar.bar", "100%.txt"} {
			if err := files.Insert(ctx, id, name, 1, "txt"); err != nil {
				t.Fatalf("Insert(%s) вернул ошибку: %v", name, err)
			}
		}

		tests := []struct {
			pattern    string
			matchStart bool
			matchEnd   bool
			want       []string
		}{
			{"foo", false, false, []string{"bar.foo", "foo.bar", "foo.foo"}},
			{"foo", true, false, []string{"foo.bar", "foo.foo"}},
			{"foo", false, true, []string{"bar.foo", "foo.foo"}},
			{"foo.foo", true, true, []string{"foo.foo"}},
			{"foo", true, true, []string{}},
			{"%", false, false, []string{"100%.txt"}},
			{"bar_", false, false, []string{}},
		}
		for _, tt := range tests {
			list, err := files.Search(ctx, id, tt.pattern, tt.matchStart, tt.matchEnd)
			if err != nil {
				t.Fatalf("Search(%q) вернул ошибку: %v", tt.pattern, err)
			}
			got := fileNames(list)
			if !sort.StringsAreSorted(got) {
				t.Errorf("Search(%q) не упорядочен по имени: %v", tt.pattern, got)
			}
			if !equalNames(got, tt.want) {
				t.Errorf("Search(%q, %v, %v) = %v, ожидается %v",
					tt.pattern, tt.matchStart, tt.matchEnd, got, tt.want)
			}
		}
	})

	t.Run("список пользователей", func(t *testing.T) {
		list, err := users.List(ctx)
		if err != nil {
			t.Fatalf("List() вернул ошибку: %v", err)
		}
		var names []string
		for _, u := range list {
			names = append(names, u.UserName)
		}
		want := []string{"alice", "bob", "carol", "dave"}
		if !equalNames(names, want) {
			t.Errorf("List() = %v, ожидается %v", names, want)
		}
	})
}
