package model

// User: зарегистрированный пользователь.
// Пользователи неизменяемы: после создания не переименовываются и не удаляются.
type User struct {
	ID       int64
	UserName string
	// PasswordHash: закодированный хэш пароля (см. пакет password).
	PasswordHash string
}
