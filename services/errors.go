package services

import (
	"errors"
	"fmt"
	"strings"

	"fabrikaProject/database"
)

// Ошибки "не найдено" оборачивают database.ErrNotFound,
// поэтому проверяются через errors.Is(err, database.ErrNotFound) или IsNotFound
var (
	ErrProjectNotFound  = fmt.Errorf("проект не найден: %w", database.ErrNotFound)
	ErrContractNotFound = fmt.Errorf("договор не найден: %w", database.ErrNotFound)
	ErrPaymentNotFound  = fmt.Errorf("платеж не найден: %w", database.ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user not found: %w", database.ErrNotFound)
)

// ErrAccessDenied возвращается, когда у пользователя нет прав на операцию
var ErrAccessDenied = errors.New("Access denied")

// ValidationError описывает некорректные входные данные
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func newValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// IsNotFound сообщает, что ошибка означает отсутствие записи
func IsNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// IsValidation сообщает, что ошибка вызвана некорректными данными
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// notFound переводит database.ErrNotFound в ошибку конкретной сущности
func notFound(err error, target error) error {
	if errors.Is(err, database.ErrNotFound) {
		return target
	}
	return err
}
