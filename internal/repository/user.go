package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
	"github.com/bigkaa/goartstore/cloud-storage/internal/password"
)

// UserRepository: операции с таблицей users.
type UserRepository interface {
	// Add создаёт пользователя и возвращает его ID.
	// model.ErrUserAlreadyExists, если имя занято; состояние при этом не меняется.
	Add(ctx context.Context, userName, plainPassword string) (int64, error)
	// CheckCredentials: true только если пользователь есть и пароль верен.
	CheckCredentials(ctx context.Context, userName, plainPassword string) (bool, error)
	// GetUserID возвращает ID по имени или model.ErrUserNotFound.
	GetUserID(ctx context.Context, userName string) (int64, error)
	// GetUserName возвращает имя по ID или model.ErrUserNotFound.
	GetUserName(ctx context.Context, userID int64) (string, error)
	// List возвращает всех пользователей, упорядоченных по ID.
	List(ctx context.Context) ([]*model.User, error)
}

type userRepository struct {
	db     DBTX
	hasher password.Hasher
}

// NewUserRepository создаёт UserRepository.
func NewUserRepository(db DBTX, hasher password.Hasher) UserRepository {
	return &userRepository{db: db, hasher: hasher}
}

// Add полагается на ограничение users_user_name_key: проверка и вставка
// атомарны, параллельная регистрация одного имени даёт ровно одну строку.
func (r *userRepository) Add(ctx context.Context, userName, plainPassword string) (int64, error) {
	hash, err := r.hasher.Hash(plainPassword)
	if err != nil {
		return 0, fmt.Errorf("%w: хэширование пароля: %w", model.ErrPersistence, err)
	}

	var id int64
	err = r.db.QueryRow(ctx,
		`INSERT INTO users (user_name, password) VALUES ($1, $2) RETURNING id`,
		userName, hash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, userName)
		}
		return 0, fmt.Errorf("%w: создание пользователя: %w", model.ErrPersistence, err)
	}
	return id, nil
}

func (r *userRepository) CheckCredentials(ctx context.Context, userName, plainPassword string) (bool, error) {
	var hash string
	err := r.db.QueryRow(ctx,
		`SELECT password FROM users WHERE user_name = $1`, userName,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: проверка учётных данных: %w", model.ErrPersistence, err)
	}
	return r.hasher.Verify(hash, plainPassword), nil
}

func (r *userRepository) GetUserID(ctx context.Context, userName string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT id FROM users WHERE user_name = $1`, userName,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", model.ErrUserNotFound, userName)
		}
		return 0, fmt.Errorf("%w: получение ID пользователя: %w", model.ErrPersistence, err)
	}
	return id, nil
}

func (r *userRepository) GetUserName(ctx context.Context, userID int64) (string, error) {
	var name string
	err := r.db.QueryRow(ctx,
		`SELECT user_name FROM users WHERE id = $1`, userID,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: id=%d", model.ErrUserNotFound, userID)
		}
		return "", fmt.Errorf("%w: получение имени пользователя: %w", model.ErrPersistence, err)
	}
	return name, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_name, password FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: список пользователей: %w", model.ErrPersistence, err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(&u.ID, &u.UserName, &u.PasswordHash); err != nil {
			return nil, fmt.Errorf("%w: сканирование пользователя: %w", model.ErrPersistence, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: итерация пользователей: %w", model.ErrPersistence, err)
	}
	return users, nil
}
