package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSortField(t *testing.T) {
	tests := map[string]SortField{
		"file_name":          SortByFileName,
		"type":               SortByType,
		"modified":           SortByModified,
		"size":               SortBySize,
		"":                   SortByFileName,
		"SIZE":               SortByFileName,
		"size; DROP TABLE x": SortByFileName,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseSortField(in), "вход %q", in)
	}
}

func TestFileRecord_ModifiedAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &FileRecord{CreatedAt: created}
	assert.Equal(t, created, f.ModifiedAt())

	updated := created.Add(time.Hour)
	f.UpdatedAt = &updated
	assert.Equal(t, updated, f.ModifiedAt())
}

func TestIsSoftUploadError(t *testing.T) {
	assert.True(t, IsSoftUploadError(fmt.Errorf("a.exe: %w", ErrFileNotAllowed)))
	assert.True(t, IsSoftUploadError(fmt.Errorf("a.txt: %w", ErrFileAlreadyExists)))
	assert.True(t, IsSoftUploadError(ErrInvalidFileName))

	assert.False(t, IsSoftUploadError(ErrStorageIO))
	assert.False(t, IsSoftUploadError(ErrPersistence))
	assert.False(t, IsSoftUploadError(errors.New("другая")))
	assert.False(t, IsSoftUploadError(nil))
}
