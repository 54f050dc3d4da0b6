// files.go: обработчики /api/v1/files: список, загрузка, поиск,
// скачивание и удаление файлов текущего пользователя.
package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/cloud-storage/internal/api/errors"
	"github.com/bigkaa/goartstore/cloud-storage/internal/api/middleware"
	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
	"github.com/bigkaa/goartstore/cloud-storage/internal/format"
	"github.com/bigkaa/goartstore/cloud-storage/internal/service"
)

// uploadFormField: имя multipart-поля с файлами.
const uploadFormField = "file"

// fileResponse: запись файла в ответах списка и поиска.
type fileResponse struct {
	FileName      string     `json:"file_name"`
	FileType      string     `json:"file_type"`
	FileSize      int64      `json:"file_size"`
	SizeHuman     string     `json:"size_human"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	ModifiedHuman string     `json:"modified_human"`
}

type fileListResponse struct {
	Items []fileResponse `json:"items"`
	Total int            `json:"total"`
}

// uploadResultResponse: результат загрузки одного файла.
type uploadResultResponse struct {
	FileName string `json:"file_name"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

type uploadResponse struct {
	OK      bool                   `json:"ok"`
	Results []uploadResultResponse `json:"results"`
}

// ListFiles: GET /api/v1/files?order_by=&order=.
// order_by: file_name (по умолчанию), type, modified, size.
// order: asc (по умолчанию) или desc.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	ascending, err := parseOrder(q.Get("order"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	orderBy := model.ParseSortField(q.Get("order_by"))

	files, err := h.storage.ListFiles(r.Context(), userID, orderBy, ascending)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка файлов", slog.Int64("user_id", userID))
		return
	}

	writeJSON(w, http.StatusOK, h.mapFileList(files))
}

// SearchFiles: GET /api/v1/files/search?q=&match_start=&match_end=.
func (h *APIHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	pattern := q.Get("q")
	if pattern == "" {
		apierrors.ValidationError(w, "Параметр q обязателен")
		return
	}
	matchStart, err := parseOptionalBool(q.Get("match_start"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректное значение match_start")
		return
	}
	matchEnd, err := parseOptionalBool(q.Get("match_end"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректное значение match_end")
		return
	}

	files, err := h.storage.SearchFilesMatch(r.Context(), userID, pattern, matchStart, matchEnd)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка поиска файлов", slog.Int64("user_id", userID))
		return
	}

	writeJSON(w, http.StatusOK, h.mapFileList(files))
}

// UploadFiles: POST /api/v1/files.
// Multipart form: одно или несколько полей file.
// 201: все файлы сохранены, 207: часть файлов отклонена или не обработана.
func (h *APIHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w, "Превышен допустимый размер загрузки")
			return
		}
		apierrors.ValidationError(w, "Некорректная multipart форма: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadFormField]
	if len(headers) == 0 {
		apierrors.ValidationError(w, "Не передано ни одного файла (поле file)")
		return
	}

	uploads := make([]model.FileUpload, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.logger.Error("Ошибка чтения части multipart формы",
				slog.String("file", fh.Filename),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w)
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, model.FileUpload{
			FileName: sanitizeFileName(fh.Filename),
			Content:  f,
		})
	}

	report, err := h.storage.UploadFiles(r.Context(), userID, uploads)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка загрузки файлов", slog.Int64("user_id", userID))
		return
	}

	resp := uploadResponse{
		OK:      report.OK,
		Results: make([]uploadResultResponse, len(report.Results)),
	}
	for i, res := range report.Results {
		resp.Results[i] = uploadResultResponse{
			FileName: res.FileName,
			Status:   string(res.Status),
			Message:  uploadMessage(res),
		}
	}

	status := http.StatusCreated
	if !report.OK {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// DownloadFile: GET /api/v1/files/{name}.
// Отдаёт файл как вложение; поддерживает Range и If-Modified-Since.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	name, ok := fileNameParam(w, r)
	if !ok {
		return
	}

	f, err := h.storage.OpenFile(r.Context(), userID, name)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка открытия файла",
			slog.Int64("user_id", userID), slog.String("file", name))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.writeServiceError(w, err, "Ошибка чтения атрибутов файла",
			slog.Int64("user_id", userID), slog.String("file", name))
		return
	}

	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// DeleteFile: DELETE /api/v1/files/{name}.
// 204: файл удалён, 404: файла нет.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	name, ok := fileNameParam(w, r)
	if !ok {
		return
	}

	removed, err := h.storage.RemoveFile(r.Context(), userID, name)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка удаления файла",
			slog.Int64("user_id", userID), slog.String("file", name))
		return
	}
	if !removed {
		apierrors.NotFound(w, "Файл не найден")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Вспомогательные функции ---

// userID извлекает ID пользователя, установленный JWT middleware.
func (h *APIHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return 0, false
	}
	return id, true
}

// fileNameParam извлекает имя файла из пути запроса.
// chi сопоставляет маршрут по RawPath, если он задан, иначе по уже
// декодированному Path: раскодировать нужно только в первом случае.
func fileNameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			name = ""
		}
	}
	if name == "" {
		apierrors.ValidationError(w, model.ErrInvalidFileName.Error())
		return "", false
	}
	return name, true
}

// sanitizeFileName оставляет только базовое имя файла от клиента.
// Браузеры Windows присылают путь с обратными слешами.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// parseOrder разбирает направление сортировки: "", asc, desc.
func parseOrder(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "asc":
		return true, nil
	case "desc":
		return false, nil
	default:
		return false, errors.New("параметр order: допустимы asc и desc")
	}
}

// parseOptionalBool: пустая строка: false.
func parseOptionalBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// uploadMessage: пояснение к результату загрузки файла.
// Для фатальных ошибок детали в ответ не попадают.
func uploadMessage(res service.UploadResult) string {
	switch res.Status {
	case service.UploadRejected:
		switch {
		case errors.Is(res.Err, model.ErrFileNotAllowed):
			return model.ErrFileNotAllowed.Error()
		case errors.Is(res.Err, model.ErrFileAlreadyExists):
			return model.ErrFileAlreadyExists.Error()
		case errors.Is(res.Err, model.ErrInvalidFileName):
			return model.ErrInvalidFileName.Error()
		}
		return "Файл отклонён"
	case service.UploadFailed:
		return "Внутренняя ошибка сервера"
	case service.UploadSkipped:
		return "Не обработан из-за предыдущей ошибки"
	default:
		return ""
	}
}

// mapFileList конвертирует записи метаданных в ответ API.
func (h *APIHandler) mapFileList(files []*model.FileRecord) fileListResponse {
	now := h.now()
	items := make([]fileResponse, len(files))
	for i, f := range files {
		items[i] = fileResponse{
			FileName:      f.FileName,
			FileType:      f.FileType,
			FileSize:      f.FileSize,
			SizeHuman:     format.FileSize(f.FileSize),
			CreatedAt:     f.CreatedAt,
			UpdatedAt:     f.UpdatedAt,
			ModifiedHuman: format.RelativeTime(f.ModifiedAt(), now),
		}
	}
	return fileListResponse{Items: items, Total: len(items)}
}
