package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidSessionID = errors.New("session id must be 4-32 lowercase letters or digits")
	ErrInvalidBoard     = errors.New("board data is invalid")
	ErrInvalidEmail     = errors.New("email address is invalid")
	ErrEmptyUpdate      = errors.New("update must change data or name")

	// Конфликты
	ErrSessionIDConflict = errors.New("a session with this id already exists")
	ErrShareConflict     = errors.New("session is already shared with this user")
	ErrUserEmailConflict = errors.New("email address belongs to another user")

	// Отказ получателя шаринга отличается от сетевых ошибок
	ErrShareRecipientUnknown = errors.New("no registered user with this email")

	// Аутентификация и авторизация
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	ErrSessionNotFound = errors.New("session not found")
)
