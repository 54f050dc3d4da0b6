// auth.go: выпуск и проверка JWT (HS256).
// Токен выдаётся при входе; sub: ID пользователя, name: имя пользователя.
// Публичные endpoints (health, metrics, auth): без аутентификации.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/cloud-storage/internal/api/errors"
)

type contextKey string

const (
	// ContextKeyUserID: ключ ID пользователя из JWT в контексте запроса.
	ContextKeyUserID contextKey = "jwt_user_id"
	// ContextKeyUserName: ключ имени пользователя из JWT в контексте запроса.
	ContextKeyUserName contextKey = "jwt_user_name"
)

const issuer = "cloud-storage"

// Claims: JWT claims cloud-storage.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// JWTAuth выпускает и проверяет токены с общим секретом.
type JWTAuth struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewJWTAuth создаёт JWTAuth. secret: ключ HMAC, ttl: время жизни токена.
func NewJWTAuth(secret string, ttl time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		secret: []byte(secret),
		ttl:    ttl,
		leeway: 30 * time.Second,
		now:    time.Now,
		logger: logger.With(slog.String("component", "jwt_auth")),
	}
}

// Issue выпускает токен для пользователя. Возвращает токен и время истечения.
func (j *JWTAuth) Issue(userID int64, userName string) (string, time.Time, error) {
	now := j.now().UTC()
	expiresAt := now.Add(j.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Name: userName,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись токена: %w", err)
	}
	return token, expiresAt, nil
}

// Middleware проверяет Bearer token и помещает ID и имя пользователя в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims,
				func(*jwt.Token) (any, error) { return j.secret, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithIssuer(issuer),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.leeway),
				jwt.WithTimeFunc(j.now),
			)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || userID <= 0 {
				apierrors.Unauthorized(w, "Некорректный sub в токене")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			ctx = context.WithValue(ctx, ContextKeyUserName, claims.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext возвращает ID пользователя из контекста запроса.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(int64)
	return id, ok
}

// UserNameFromContext возвращает имя пользователя из контекста запроса.
func UserNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(ContextKeyUserName).(string)
	return name
}

// WithUserID помещает ID пользователя в контекст. Используется в тестах handlers.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}
