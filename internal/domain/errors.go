package domain

import (
	"errors"
	"fmt"
)

// Общие ошибки сервиса. Проверяются через errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNothingToPublish = errors.New("nothing to publish")
	ErrBusy             = errors.New("operation already in progress")
	ErrInheritedField   = errors.New("field is inherited from master")
)

// NotFoundError - документ не найден.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.Resource, e.ID)
}

// Is позволяет errors.Is(err, ErrNotFound).
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFoundError создает NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError - ошибка валидации документа или входных данных.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is позволяет errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// NewValidationError создает ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// DuplicateError - нарушение уникальности (один site post на пару мастер/сайт, уникальный slug).
type DuplicateError struct {
	Resource string
	Key      string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.Key)
}

// Is позволяет errors.Is(err, ErrAlreadyExists).
func (e *DuplicateError) Is(target error) bool { return target == ErrAlreadyExists }

// NewDuplicateError создает DuplicateError.
func NewDuplicateError(resource, key string) *DuplicateError {
	return &DuplicateError{Resource: resource, Key: key}
}
