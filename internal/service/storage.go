// Пакет service: бизнес-логика cloud-storage.
// StorageService координирует хранилище метаданных и файловое хранилище.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
)

// storageOperationsTotal: операции координатора по результату.
var storageOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cs_storage_operations_total",
	Help: "Общее количество операций с файлами и пользователями",
}, []string{"operation", "result"})

// UserStore: часть хранилища метаданных, относящаяся к пользователям.
type UserStore interface {
	Add(ctx context.Context, userName, plainPassword string) (int64, error)
	CheckCredentials(ctx context.Context, userName, plainPassword string) (bool, error)
	GetUserID(ctx context.Context, userName string) (int64, error)
	GetUserName(ctx context.Context, userID int64) (string, error)
}

// FileMetadataStore: часть хранилища метаданных, относящаяся к файлам.
type FileMetadataStore interface {
	Insert(ctx context.Context, userID int64, fileName string, fileSize int64, fileType string) error
	Delete(ctx context.Context, userID int64, fileName string) (bool, error)
	List(ctx context.Context, userID int64, orderBy model.SortField, ascending bool) ([]*model.FileRecord, error)
	Exists(ctx context.Context, userID int64, fileName string) (bool, error)
	Search(ctx context.Context, userID int64, pattern string, matchStart, matchEnd bool) ([]*model.FileRecord, error)
}

// ByteStore: файловое хранилище.
type ByteStore interface {
	ValidUserName(userName string) error
	CreateUserArea(userName string) (bool, error)
	UploadFile(userName, fileName string, content io.Reader) (bool, error)
	DeleteFile(userName, fileName string) (bool, error)
	FileSize(userName, fileName string) int64
	FileType(fileName string) (string, error)
	FilePath(userName, fileName string) (string, error)
	Open(userName, fileName string) (*os.File, error)
}

// UploadStatus: итог обработки одного файла пакетной загрузки.
type UploadStatus string

const (
	// UploadStored: файл записан на диск и в метаданные.
	UploadStored UploadStatus = "stored"
	// UploadRejected: файл отклонён, обработка пакета продолжилась.
	UploadRejected UploadStatus = "rejected"
	// UploadFailed: фатальная ошибка, обработка пакета остановлена.
	UploadFailed UploadStatus = "failed"
	// UploadSkipped: файл не обработан из-за предыдущей фатальной ошибки.
	UploadSkipped UploadStatus = "skipped"
)

// UploadResult: результат по одному файлу.
type UploadResult struct {
	FileName string
	Status   UploadStatus
	Err      error
}

// UploadReport: результат пакетной загрузки.
type UploadReport struct {
	// OK: true, только если все файлы пакета сохранены.
	OK      bool
	Results []UploadResult
}

// StorageService: координатор операций пользователей и файлов.
type StorageService struct {
	users  UserStore
	files  FileMetadataStore
	bytes  ByteStore
	logger *slog.Logger
}

// NewStorageService создаёт StorageService.
func NewStorageService(users UserStore, files FileMetadataStore, bytes ByteStore, logger *slog.Logger) *StorageService {
	return &StorageService{
		users:  users,
		files:  files,
		bytes:  bytes,
		logger: logger.With(slog.String("component", "storage_service")),
	}
}

// RegisterUser создаёт пользователя и его каталог.
// Имя, непригодное для каталога, отклоняется до записи в БД.
// Если каталог создать не удалось, запись пользователя остаётся:
// повторный CreateUserArea выполняется при первой загрузке.
func (s *StorageService) RegisterUser(ctx context.Context, userName, plainPassword string) (int64, error) {
	if err := s.bytes.ValidUserName(userName); err != nil {
		observe("register", err)
		return 0, err
	}

	id, err := s.users.Add(ctx, userName, plainPassword)
	if err != nil {
		observe("register", err)
		return 0, err
	}

	if _, err := s.bytes.CreateUserArea(userName); err != nil {
		s.logger.Error("Не удалось создать каталог пользователя",
			slog.String("user", userName),
			slog.Int64("user_id", id),
			slog.String("error", err.Error()),
		)
		observe("register", err)
		return id, fmt.Errorf("каталог пользователя %s: %w", userName, err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.String("user", userName),
		slog.Int64("user_id", id),
	)
	observe("register", nil)
	return id, nil
}

// Authenticate проверяет учётные данные и возвращает ID пользователя.
func (s *StorageService) Authenticate(ctx context.Context, userName, plainPassword string) (int64, error) {
	ok, err := s.users.CheckCredentials(ctx, userName, plainPassword)
	if err != nil {
		observe("login", err)
		return 0, err
	}
	if !ok {
		observe("login", model.ErrInvalidCredentials)
		return 0, model.ErrInvalidCredentials
	}

	id, err := s.users.GetUserID(ctx, userName)
	observe("login", err)
	return id, err
}

// UploadFiles сохраняет пакет файлов пользователя по порядку.
//
// Для каждого файла: проверка метаданных → запись на диск → размер →
// запись метаданных. Отклонённые файлы (тип, имя, дубликат) помечаются
// и обработка продолжается. Первая фатальная ошибка останавливает пакет;
// уже сохранённые файлы не откатываются.
//
// Ошибка возвращается, только если пользователь не найден.
func (s *StorageService) UploadFiles(ctx context.Context, userID int64, files []model.FileUpload) (*UploadReport, error) {
	userName, err := s.users.GetUserName(ctx, userID)
	if err != nil {
		observe("upload", err)
		return nil, err
	}

	report := &UploadReport{OK: true, Results: make([]UploadResult, 0, len(files))}
	stopped := false

	for _, f := range files {
		if stopped {
			report.Results = append(report.Results, UploadResult{FileName: f.FileName, Status: UploadSkipped})
			continue
		}

		err := s.uploadOne(ctx, userID, userName, f)
		observe("upload", err)

		switch {
		case err == nil:
			report.Results = append(report.Results, UploadResult{FileName: f.FileName, Status: UploadStored})
		case model.IsSoftUploadError(err):
			report.OK = false
			report.Results = append(report.Results, UploadResult{FileName: f.FileName, Status: UploadRejected, Err: err})
			s.logger.Warn("Файл отклонён",
				slog.String("user", userName),
				slog.String("file", f.FileName),
				slog.String("error", err.Error()),
			)
		default:
			report.OK = false
			stopped = true
			report.Results = append(report.Results, UploadResult{FileName: f.FileName, Status: UploadFailed, Err: err})
			s.logger.Error("Ошибка загрузки файла, пакет остановлен",
				slog.String("user", userName),
				slog.String("file", f.FileName),
				slog.String("error", err.Error()),
			)
		}
	}

	return report, nil
}

// uploadOne сохраняет один файл. Если запись метаданных не удалась,
// только что записанный файл удаляется с диска.
func (s *StorageService) uploadOne(ctx context.Context, userID int64, userName string, f model.FileUpload) error {
	exists, err := s.files.Exists(ctx, userID, f.FileName)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", model.ErrFileAlreadyExists, f.FileName)
	}

	fileType, err := s.bytes.FileType(f.FileName)
	if err != nil {
		return err
	}

	if _, err := s.bytes.UploadFile(userName, f.FileName, f.Content); err != nil {
		return err
	}

	size := s.bytes.FileSize(userName, f.FileName)

	if err := s.files.Insert(ctx, userID, f.FileName, size, fileType); err != nil {
		if _, delErr := s.bytes.DeleteFile(userName, f.FileName); delErr != nil {
			s.logger.Error("Не удалось удалить файл после ошибки записи метаданных",
				slog.String("user", userName),
				slog.String("file", f.FileName),
				slog.String("error", delErr.Error()),
			)
		}
		// Дубликат из-за параллельной загрузки: ошибка хранилища, а не отказ по файлу
		if errors.Is(err, model.ErrFileAlreadyExists) {
			return fmt.Errorf("%w: запись метаданных %s", model.ErrPersistence, f.FileName)
		}
		return err
	}

	s.logger.Info("Файл загружен",
		slog.String("user", userName),
		slog.String("file", f.FileName),
		slog.Int64("size", size),
	)
	return nil
}

// RemoveFile удаляет запись метаданных, затем файл на диске.
// true, только если удалены оба.
func (s *StorageService) RemoveFile(ctx context.Context, userID int64, fileName string) (bool, error) {
	userName, err := s.users.GetUserName(ctx, userID)
	if err != nil {
		observe("remove", err)
		return false, err
	}

	rowDeleted, err := s.files.Delete(ctx, userID, fileName)
	if err != nil {
		observe("remove", err)
		return false, err
	}

	bytesDeleted, err := s.bytes.DeleteFile(userName, fileName)
	if err != nil {
		s.logger.Error("Запись удалена, но файл на диске не удалён",
			slog.String("user", userName),
			slog.String("file", fileName),
			slog.String("error", err.Error()),
		)
		observe("remove", err)
		return false, err
	}

	if rowDeleted != bytesDeleted {
		s.logger.Warn("Расхождение метаданных и диска при удалении",
			slog.String("user", userName),
			slog.String("file", fileName),
			slog.Bool("row_deleted", rowDeleted),
			slog.Bool("file_deleted", bytesDeleted),
		)
	}

	ok := rowDeleted && bytesDeleted
	if ok {
		observe("remove", nil)
	} else {
		storageOperationsTotal.WithLabelValues("remove", "not_found").Inc()
	}
	return ok, nil
}

// GetFilePath возвращает путь к файлу или "", если записи метаданных нет.
func (s *StorageService) GetFilePath(ctx context.Context, userID int64, fileName string) (string, error) {
	userName, err := s.users.GetUserName(ctx, userID)
	if err != nil {
		return "", err
	}
	exists, err := s.files.Exists(ctx, userID, fileName)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", nil
	}
	return s.bytes.FilePath(userName, fileName)
}

// OpenFile открывает файл для скачивания. os.ErrNotExist, если записи
// метаданных или файла на диске нет.
func (s *StorageService) OpenFile(ctx context.Context, userID int64, fileName string) (*os.File, error) {
	userName, err := s.users.GetUserName(ctx, userID)
	if err != nil {
		return nil, err
	}
	exists, err := s.files.Exists(ctx, userID, fileName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", os.ErrNotExist, fileName)
	}
	return s.bytes.Open(userName, fileName)
}

// ListFiles возвращает файлы пользователя в заданном порядке.
func (s *StorageService) ListFiles(ctx context.Context, userID int64, orderBy model.SortField, ascending bool) ([]*model.FileRecord, error) {
	return s.files.List(ctx, userID, orderBy, ascending)
}

// SearchFiles ищет файлы по вхождению подстроки в имя.
func (s *StorageService) SearchFiles(ctx context.Context, userID int64, pattern string) ([]*model.FileRecord, error) {
	return s.SearchFilesMatch(ctx, userID, pattern, false, false)
}

// SearchFilesMatch ищет файлы с привязкой шаблона к началу и/или концу имени.
func (s *StorageService) SearchFilesMatch(ctx context.Context, userID int64, pattern string, matchStart, matchEnd bool) ([]*model.FileRecord, error) {
	return s.files.Search(ctx, userID, pattern, matchStart, matchEnd)
}

// observe обновляет счётчик операций.
func observe(operation string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case model.IsSoftUploadError(err),
		errors.Is(err, model.ErrUserAlreadyExists),
		errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrInvalidCredentials),
		errors.Is(err, model.ErrInvalidUserName):
		result = "rejected"
	default:
		result = "error"
	}
	storageOperationsTotal.WithLabelValues(operation, result).Inc()
}
