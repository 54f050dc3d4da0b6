package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
)

// FileRepository: операции с таблицей files.
type FileRepository interface {
	// Insert создаёт запись: revision 0, created_at = now, updated_at = NULL.
	// Ошибки оборачивают model.ErrPersistence; дубликат имени дополнительно
	// оборачивает model.ErrFileAlreadyExists.
	Insert(ctx context.Context, userID int64, fileName string, fileSize int64, fileType string) error
	// Delete: true, если строка удалена; повторный вызов даёт false.
	Delete(ctx context.Context, userID int64, fileName string) (bool, error)
	// List возвращает файлы пользователя в заданном порядке.
	List(ctx context.Context, userID int64, orderBy model.SortField, ascending bool) ([]*model.FileRecord, error)
	// Exists проверяет наличие записи.
	Exists(ctx context.Context, userID int64, fileName string) (bool, error)
	// Search ищет по имени через LIKE; результат упорядочен по file_name ASC.
	Search(ctx context.Context, userID int64, pattern string, matchStart, matchEnd bool) ([]*model.FileRecord, error)
}

const fileColumns = `file_name, file_type, file_size, user_id, created_at, updated_at, revision`

// listQueries: заранее собранные запросы списка для каждой пары
// (поле, направление). Текст от вызывающего кода в SQL не попадает.
var listQueries = buildListQueries()

type listKey struct {
	field     model.SortField
	ascending bool
}

func buildListQueries() map[listKey]string {
	fields := []model.SortField{
		model.SortByFileName, model.SortByType, model.SortByModified, model.SortBySize,
	}
	queries := make(map[listKey]string, len(fields)*2)
	for _, f := range fields {
		for _, asc := range []bool{true, false} {
			queries[listKey{f, asc}] = `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1 ` + buildOrderBy(f, asc)
		}
	}
	return queries
}

// buildOrderBy формирует ORDER BY по whitelist колонок.
// file_name добавляется вторым ключом для стабильного порядка.
func buildOrderBy(field model.SortField, ascending bool) string {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}

	switch field {
	case model.SortByType:
		return fmt.Sprintf("ORDER BY file_type %s, file_name %s", direction, direction)
	case model.SortByModified:
		return fmt.Sprintf("ORDER BY COALESCE(updated_at, created_at) %s, file_name %s", direction, direction)
	case model.SortBySize:
		return fmt.Sprintf("ORDER BY file_size %s, file_name %s", direction, direction)
	default:
		return fmt.Sprintf("ORDER BY file_name %s", direction)
	}
}

// listQuery возвращает запрос для поля сортировки; неизвестное поле → file_name.
func listQuery(field model.SortField, ascending bool) string {
	if q, ok := listQueries[listKey{field, ascending}]; ok {
		return q
	}
	return listQueries[listKey{model.SortByFileName, ascending}]
}

// likeEscaper экранирует метасимволы LIKE, чтобы шаблон поиска
// сопоставлялся буквально.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildSearchPattern строит шаблон LIKE:
//
//	matchStart=false, matchEnd=false → %p%
//	matchStart=false, matchEnd=true  → %p
//	matchStart=true,  matchEnd=false → p%
//	matchStart=true,  matchEnd=true  → p
func buildSearchPattern(pattern string, matchStart, matchEnd bool) string {
	p := likeEscaper.Replace(pattern)
	if !matchStart {
		p = "%" + p
	}
	if !matchEnd {
		p += "%"
	}
	return p
}

type fileRepository struct {
	db  DBTX
	now func() time.Time
}

// NewFileRepository создаёт FileRepository.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *fileRepository) Insert(ctx context.Context, userID int64, fileName string, fileSize int64, fileType string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO files (file_name, file_type, file_size, user_id, created_at, updated_at, revision)
		 VALUES ($1, $2, $3, $4, $5, NULL, 0)`,
		fileName, fileType, fileSize, userID, r.now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %w: %s", model.ErrPersistence, model.ErrFileAlreadyExists, fileName)
		}
		return fmt.Errorf("%w: создание записи файла: %w", model.ErrPersistence, err)
	}
	return nil
}

func (r *fileRepository) Delete(ctx context.Context, userID int64, fileName string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM files WHERE user_id = $1 AND file_name = $2`, userID, fileName,
	)
	if err != nil {
		return false, fmt.Errorf("%w: удаление записи файла: %w", model.ErrPersistence, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *fileRepository) List(ctx context.Context, userID int64, orderBy model.SortField, ascending bool) ([]*model.FileRecord, error) {
	return r.query(ctx, listQuery(orderBy, ascending), userID)
}

func (r *fileRepository) Exists(ctx context.Context, userID int64, fileName string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM files WHERE user_id = $1 AND file_name = $2)`,
		userID, fileName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: проверка наличия файла: %w", model.ErrPersistence, err)
	}
	return exists, nil
}

func (r *fileRepository) Search(ctx context.Context, userID int64, pattern string, matchStart, matchEnd bool) ([]*model.FileRecord, error) {
	return r.query(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE user_id = $1 AND file_name LIKE $2 ESCAPE '\'
		 ORDER BY file_name ASC`,
		userID, buildSearchPattern(pattern, matchStart, matchEnd),
	)
}

func (r *fileRepository) query(ctx context.Context, sql string, args ...any) ([]*model.FileRecord, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: запрос файлов: %w", model.ErrPersistence, err)
	}
	defer rows.Close()

	files, err := pgx.CollectRows(rows, scanFileRecord)
	if err != nil {
		return nil, fmt.Errorf("%w: сканирование файлов: %w", model.ErrPersistence, err)
	}
	return files, nil
}

func scanFileRecord(row pgx.CollectableRow) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(&f.FileName, &f.FileType, &f.FileSize, &f.UserID, &f.CreatedAt, &f.UpdatedAt, &f.Revision)
	return f, err
}
