// auth.go: обработчики /api/v1/auth: регистрация и вход.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/goartstore/cloud-storage/internal/api/errors"
	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
)

// signupRequest: тело POST /api/v1/auth/signup.
type signupRequest struct {
	UserName     string `json:"username" validate:"required,username"`
	Password     string `json:"password" validate:"required,password"`
	Confirmation string `json:"confirmation" validate:"required,eqfield=Password"`
}

type signupResponse struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"username"`
}

// loginRequest: тело POST /api/v1/auth/login.
type loginRequest struct {
	UserName string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signup: POST /api/v1/auth/signup.
// Создаёт пользователя и его каталог.
func (h *APIHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		apierrors.ValidationError(w, validationMessage(err))
		return
	}

	id, err := h.storage.RegisterUser(r.Context(), req.UserName, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка регистрации пользователя",
			slog.String("user", req.UserName))
		return
	}

	writeJSON(w, http.StatusCreated, signupResponse{UserID: id, UserName: req.UserName})
}

// Login: POST /api/v1/auth/login.
// Проверяет учётные данные и выдаёт JWT.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		apierrors.ValidationError(w, validationMessage(err))
		return
	}

	id, err := h.storage.Authenticate(r.Context(), req.UserName, req.Password)
	if err != nil {
		// Неизвестный пользователь неотличим от неверного пароля
		if errors.Is(err, model.ErrUserNotFound) {
			err = model.ErrInvalidCredentials
		}
		h.writeServiceError(w, err, "Ошибка входа", slog.String("user", req.UserName))
		return
	}

	token, expiresAt, err := h.tokens.Issue(id, req.UserName)
	if err != nil {
		h.logger.Error("Ошибка выпуска токена",
			slog.Int64("user_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w)
		return
	}

	h.logger.Info("Пользователь вошёл", slog.String("user", req.UserName))
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}
