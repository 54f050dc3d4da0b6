package model

import "errors"

// Ошибки предметной области. Проверяются через errors.Is на любом уровне:
// слои ниже оборачивают их через fmt.Errorf("%w").
var (
	// ErrUserAlreadyExists: пользователь с таким именем уже зарегистрирован.
	ErrUserAlreadyExists = errors.New("пользователь уже существует")
	// ErrUserNotFound: пользователь не найден.
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrFileAlreadyExists: файл с таким именем у пользователя уже есть.
	ErrFileAlreadyExists = errors.New("файл уже существует")
	// ErrFileNotAllowed: расширение файла не входит в whitelist.
	ErrFileNotAllowed = errors.New("тип файла не разрешён")
	// ErrInvalidFileName: имя файла без расширения или с разделителем пути.
	ErrInvalidFileName = errors.New("некорректное имя файла")
	// ErrInvalidUserName: имя пользователя непригодно для каталога.
	ErrInvalidUserName = errors.New("некорректное имя пользователя")
	// ErrInvalidCredentials: неверное имя пользователя или пароль.
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	// ErrPersistence: ошибка хранилища метаданных.
	ErrPersistence = errors.New("ошибка хранилища метаданных")
	// ErrStorageIO: ошибка файловой системы.
	ErrStorageIO = errors.New("ошибка файлового хранилища")
)

// IsSoftUploadError возвращает true для ошибок, относящихся к одному файлу
// пакетной загрузки. Такие ошибки не прерывают обработку остальных файлов.
func IsSoftUploadError(err error) bool {
	return errors.Is(err, ErrFileNotAllowed) ||
		errors.Is(err, ErrFileAlreadyExists) ||
		errors.Is(err, ErrInvalidFileName)
}
