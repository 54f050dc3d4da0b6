// Пакет model: доменные модели cloud-storage.
package model

import (
	"io"
	"time"
)

// FileRecord: запись метаданных файла пользователя.
// Пара (UserID, FileName) уникальна.
type FileRecord struct {
	FileName string
	// FileType: расширение в нижнем регистре, без точки
	FileType string
	// FileSize: размер в байтах на момент загрузки
	FileSize  int64
	UserID    int64
	CreatedAt time.Time
	// UpdatedAt: nil, пока файл не изменялся (в текущей версии всегда nil)
	UpdatedAt *time.Time
	// Revision: зарезервировано, всегда 0
	Revision int
}

// ModifiedAt возвращает время последнего изменения:
// UpdatedAt, если задано, иначе CreatedAt.
func (f *FileRecord) ModifiedAt() time.Time {
	if f.UpdatedAt != nil {
		return *f.UpdatedAt
	}
	return f.CreatedAt
}

// FileUpload: один файл пакетной загрузки.
type FileUpload struct {
	FileName string
	Content  io.Reader
}

// SortField: поле сортировки списка файлов.
type SortField string

// Допустимые поля сортировки.
const (
	SortByFileName SortField = "file_name"
	SortByType     SortField = "type"
	SortByModified SortField = "modified"
	SortBySize     SortField = "size"
)

// ParseSortField преобразует строку в SortField.
// Неизвестные значения (включая пустую строку) дают SortByFileName.
func ParseSortField(s string) SortField {
	switch SortField(s) {
	case SortByType, SortByModified, SortBySize:
		return SortField(s)
	default:
		return SortByFileName
	}
}
