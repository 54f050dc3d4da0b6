// Пакет filestore: файлы пользователей на диске.
// Раскладка: <root>/<user_name>/<file_name>, по каталогу на пользователя.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
)

// tmpPrefix: префикс временных файлов загрузки; такие файлы
// не считаются файлами пользователя.
const tmpPrefix = ".upload-"

// FileStore: файловое хранилище пользователей.
type FileStore struct {
	root    string
	allowed map[string]struct{}
}

// New создаёт FileStore и корневой каталог, если его нет.
// allowed: разрешённые расширения, регистр не важен.
func New(root string, allowed []string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("%w: не удалось создать корневой каталог %s: %w", model.ErrStorageIO, root, err)
	}

	set := make(map[string]struct{}, len(allowed))
	for _, ext := range allowed {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return &FileStore{root: root, allowed: set}, nil
}

// Root возвращает корневой каталог хранилища.
func (s *FileStore) Root() string {
	return s.root
}

// ValidUserName проверяет, что имя пригодно для каталога пользователя.
// model.ErrInvalidUserName, если нет.
func (s *FileStore) ValidUserName(userName string) error {
	_, err := s.userDir(userName)
	return err
}

// CreateUserArea создаёт каталог пользователя. Идемпотентна.
func (s *FileStore) CreateUserArea(userName string) (bool, error) {
	dir, err := s.userDir(userName)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("%w: создание каталога пользователя %s: %w", model.ErrStorageIO, userName, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return false, fmt.Errorf("%w: %w", model.ErrStorageIO, err)
	}
	return info.IsDir(), nil
}

// UploadFile записывает content в <root>/<user>/<file>.
// Существующий файл не перезаписывается: model.ErrFileAlreadyExists.
//
// Паттерн: temp файл → запись → fsync → hard link на итоговое имя.
// link завершается с EEXIST, если имя уже занято, поэтому из двух
// параллельных загрузок одного имени побеждает ровно одна.
func (s *FileStore) UploadFile(userName, fileName string, content io.Reader) (bool, error) {
	if _, err := s.FileType(fileName); err != nil {
		return false, err
	}
	if strings.HasPrefix(fileName, tmpPrefix) {
		return false, fmt.Errorf("%w: зарезервированный префикс: %s", model.ErrInvalidFileName, fileName)
	}
	if !s.IsAllowed(fileName) {
		return false, fmt.Errorf("%w: %s", model.ErrFileNotAllowed, fileName)
	}

	finalPath, err := s.FilePath(userName, fileName)
	if err != nil {
		return false, err
	}
	if s.FileExists(userName, fileName) {
		return false, fmt.Errorf("%w: %s", model.ErrFileAlreadyExists, fileName)
	}

	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("%w: создание каталога пользователя: %w", model.ErrStorageIO, err)
	}

	tmpPath := filepath.Join(dir, tmpPrefix+uuid.NewString())
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return false, fmt.Errorf("%w: создание временного файла: %w", model.ErrStorageIO, err)
	}
	// temp файл удаляется в любом случае: после link данные доступны по итоговому имени
	defer os.Remove(tmpPath)

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return false, fmt.Errorf("%w: запись данных: %w", model.ErrStorageIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return false, fmt.Errorf("%w: fsync: %w", model.ErrStorageIO, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("%w: закрытие файла: %w", model.ErrStorageIO, err)
	}

	if err := os.Link(tmpPath, finalPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, fmt.Errorf("%w: %s", model.ErrFileAlreadyExists, fileName)
		}
		return false, fmt.Errorf("%w: публикация файла: %w", model.ErrStorageIO, err)
	}
	return true, nil
}

// DeleteFile удаляет файл. false, если файла не было.
func (s *FileStore) DeleteFile(userName, fileName string) (bool, error) {
	path, err := s.FilePath(userName, fileName)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: удаление файла %s: %w", model.ErrStorageIO, fileName, err)
	}
	return true, nil
}

// FileExists проверяет наличие обычного файла.
func (s *FileStore) FileExists(userName, fileName string) bool {
	path, err := s.FilePath(userName, fileName)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// FileSize возвращает размер файла в байтах; 0, если файла нет.
func (s *FileStore) FileSize(userName, fileName string) int64 {
	path, err := s.FilePath(userName, fileName)
	if err != nil {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

// FileType возвращает расширение после последней точки в нижнем регистре.
// Имя без точки: model.ErrInvalidFileName.
func (s *FileStore) FileType(fileName string) (string, error) {
	if err := validateName(fileName); err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrInvalidFileName, fileName)
	}
	i := strings.LastIndexByte(fileName, '.')
	if i < 0 {
		return "", fmt.Errorf("%w: нет расширения: %s", model.ErrInvalidFileName, fileName)
	}
	return strings.ToLower(fileName[i+1:]), nil
}

// IsAllowed проверяет расширение по whitelist без учёта регистра.
func (s *FileStore) IsAllowed(fileName string) bool {
	ext, err := s.FileType(fileName)
	if err != nil {
		return false
	}
	_, ok := s.allowed[ext]
	return ok
}

// FilePath возвращает путь <root>/<user>/<file>. Существование не проверяется.
func (s *FileStore) FilePath(userName, fileName string) (string, error) {
	dir, err := s.userDir(userName)
	if err != nil {
		return "", err
	}
	if err := validateName(fileName); err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrInvalidFileName, fileName)
	}
	return filepath.Join(dir, fileName), nil
}

// Open открывает файл пользователя для чтения.
// Вызывающий код обязан закрыть файл.
func (s *FileStore) Open(userName, fileName string) (*os.File, error) {
	path, err := s.FilePath(userName, fileName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: файл не найден: %s", fs.ErrNotExist, fileName)
		}
		return nil, fmt.Errorf("%w: открытие файла %s: %w", model.ErrStorageIO, fileName, err)
	}
	return f, nil
}

// ListUserFiles возвращает имена и размеры файлов в каталоге пользователя.
// Отсутствующий каталог: пустой результат. Временные файлы загрузки пропускаются.
func (s *FileStore) ListUserFiles(userName string) (map[string]int64, error) {
	dir, err := s.userDir(userName)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]int64{}, nil
		}
		return nil, fmt.Errorf("%w: чтение каталога %s: %w", model.ErrStorageIO, userName, err)
	}

	result := make(map[string]int64, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// файл удалён между ReadDir и Info
			continue
		}
		result[e.Name()] = info.Size()
	}
	return result, nil
}

func (s *FileStore) userDir(userName string) (string, error) {
	if err := validateName(userName); err != nil {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidUserName, userName)
	}
	return filepath.Join(s.root, userName), nil
}

var errBadName = errors.New("недопустимое имя")

// validateName отклоняет пустые имена, "." и "..", а также имена
// с разделителями пути и NUL.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return errBadName
	}
	if strings.ContainsAny(name, `/\`+"\x00") || strings.ContainsRune(name, filepath.Separator) {
		return errBadName
	}
	return nil
}
