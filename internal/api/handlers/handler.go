// handler.go: основной обработчик HTTP API cloud-storage.
// Делегирует запросы в сервисный слой и переводит доменные ошибки в HTTP-ответы.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/bigkaa/goartstore/cloud-storage/internal/api/errors"
	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
	"github.com/bigkaa/goartstore/cloud-storage/internal/service"
)

// StorageAPI: операции координатора хранилища, используемые обработчиками.
type StorageAPI interface {
	RegisterUser(ctx context.Context, userName, plainPassword string) (int64, error)
	Authenticate(ctx context.Context, userName, plainPassword string) (int64, error)
	UploadFiles(ctx context.Context, userID int64, files []model.FileUpload) (*service.UploadReport, error)
	RemoveFile(ctx context.Context, userID int64, fileName string) (bool, error)
	OpenFile(ctx context.Context, userID int64, fileName string) (*os.File, error)
	ListFiles(ctx context.Context, userID int64, orderBy model.SortField, ascending bool) ([]*model.FileRecord, error)
	SearchFilesMatch(ctx context.Context, userID int64, pattern string, matchStart, matchEnd bool) ([]*model.FileRecord, error)
}

// TokenIssuer выпускает токен доступа после успешного входа.
type TokenIssuer interface {
	Issue(userID int64, userName string) (string, time.Time, error)
}

// APIHandler: обработчик API cloud-storage.
type APIHandler struct {
	health    *HealthHandler
	storage   StorageAPI
	tokens    TokenIssuer
	validate  *validator.Validate
	maxUpload int64
	now       func() time.Time
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxUpload: ограничение размера тела запроса загрузки в байтах.
func NewAPIHandler(
	health *HealthHandler,
	storage StorageAPI,
	tokens TokenIssuer,
	maxUpload int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		storage:   storage,
		tokens:    tokens,
		validate:  newValidator(),
		maxUpload: maxUpload,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive: liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady: readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics: Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются, клиенту уходит общее сообщение.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, model.ErrUserAlreadyExists):
		apierrors.Conflict(w, model.ErrUserAlreadyExists.Error())
	case errors.Is(err, model.ErrFileAlreadyExists):
		apierrors.Conflict(w, model.ErrFileAlreadyExists.Error())
	case errors.Is(err, model.ErrUserNotFound):
		apierrors.NotFound(w, model.ErrUserNotFound.Error())
	case errors.Is(err, os.ErrNotExist):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, model.ErrFileNotAllowed):
		apierrors.FileNotAllowed(w, model.ErrFileNotAllowed.Error())
	case errors.Is(err, model.ErrInvalidFileName):
		apierrors.ValidationError(w, model.ErrInvalidFileName.Error())
	case errors.Is(err, model.ErrInvalidUserName):
		apierrors.ValidationError(w, model.ErrInvalidUserName.Error())
	case errors.Is(err, model.ErrInvalidCredentials):
		apierrors.Unauthorized(w, model.ErrInvalidCredentials.Error())
	default:
		h.logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
		apierrors.InternalError(w)
	}
}
