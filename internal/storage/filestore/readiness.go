package filestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ReadinessChecker: проверка доступности корневого каталога на запись.
type ReadinessChecker struct {
	store *FileStore
}

// NewReadinessChecker создаёт проверку готовности файлового хранилища.
func NewReadinessChecker(store *FileStore) *ReadinessChecker {
	return &ReadinessChecker{store: store}
}

// CheckReady создаёт и удаляет пробный файл в корневом каталоге.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	probe := filepath.Join(c.store.root, tmpPrefix+"probe-"+uuid.NewString())
	f, err := os.OpenFile(probe, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "fail", fmt.Sprintf("каталог хранилища недоступен на запись: %v", err)
	}
	f.Close()
	if err := os.Remove(probe); err != nil {
		return "degraded", fmt.Sprintf("не удалось удалить пробный файл: %v", err)
	}
	return "ok", "каталог доступен на запись"
}
