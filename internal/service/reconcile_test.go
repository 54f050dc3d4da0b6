package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_RunOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.svc.RegisterUser(ctx, "alice", "pw")
	require.NoError(t, err)
	_, err = env.svc.UploadFiles(ctx, id, uploads("ok.txt", "resized.txt"))
	require.NoError(t, err)

	// missing_file: запись без файла
	require.NoError(t, env.files.Insert(ctx, id, "lost.pdf", 10, "pdf"))
	// orphaned_file: файл без записи
	require.NoError(t, os.WriteFile(filepath.Join(env.store.Root(), "alice", "stray.png"), []byte("x"), 0o640))
	// size_mismatch: файл изменён в обход сервиса
	require.NoError(t, os.WriteFile(filepath.Join(env.store.Root(), "alice", "resized.txt"), []byte("changed"), 0o640))

	// Пользователь без каталога: missing_file для каждой записи
	bobID, err := env.users.Add(ctx, "bob", "pw")
	require.NoError(t, err)
	require.NoError(t, env.files.Insert(ctx, bobID, "b.txt", 1, "txt"))

	rs := NewReconcileService(env.users, env.files, env.store, time.Hour, testLogger())
	report, skipped := rs.RunOnce(ctx)
	require.False(t, skipped)
	require.NotNil(t, report)

	assert.Equal(t, 2, report.UsersChecked)
	assert.Equal(t, 5, report.FilesChecked)

	got := map[string]IssueType{}
	for _, issue := range report.Issues {
		got[issue.UserName+"/"+issue.FileName] = issue.Type
	}
	assert.Equal(t, map[string]IssueType{
		"alice/lost.pdf":    IssueMissingFile,
		"alice/stray.png":   IssueOrphanedFile,
		"alice/resized.txt": IssueSizeMismatch,
		"bob/b.txt":         IssueMissingFile,
	}, got)

	for _, issue := range report.Issues {
		if issue.Type == IssueSizeMismatch {
			assert.Equal(t, int64(len("changed")), issue.ActualSize)
			assert.Equal(t, int64(len("content of resized.txt")), issue.RecordedSize)
		}
	}
	assert.False(t, rs.IsInProgress())
}

func TestReconcile_Clean(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.svc.RegisterUser(ctx, "alice", "pw")
	require.NoError(t, err)
	_, err = env.svc.UploadFiles(ctx, id, uploads("a.txt", "b.txt"))
	require.NoError(t, err)

	rs := NewReconcileService(env.users, env.files, env.store, time.Hour, testLogger())
	report, skipped := rs.RunOnce(ctx)
	require.False(t, skipped)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 2, report.FilesChecked)
}

func TestReconcile_SkipsConcurrentRun(t *testing.T) {
	env := newTestEnv(t)
	rs := NewReconcileService(env.users, env.files, env.store, time.Hour, testLogger())

	rs.mu.Lock()
	rs.inProcess = true
	rs.mu.Unlock()

	report, skipped := rs.RunOnce(context.Background())
	assert.True(t, skipped)
	assert.Nil(t, report)
}

func TestReconcile_StartStop(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.RegisterUser(context.Background(), "alice", "pw")
	require.NoError(t, err)

	rs := NewReconcileService(env.users, env.files, env.store, 10*time.Millisecond, testLogger())
	rs.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	rs.Stop()

	assert.False(t, rs.IsInProgress())
}
