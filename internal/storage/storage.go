// Package storage содержит общие ошибки слоя хранения.
// Реализации: repository (PostgreSQL) и memory (в памяти процесса).
package storage

import "errors"

var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists нарушено ограничение уникальности.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrConflict запись изменилась между чтением и обновлением.
	ErrConflict = errors.New("record was modified concurrently")
)

// Page ограничивает выборку списков.
type Page struct {
	Limit  int
	Offset int
}

// DefaultLimit применяется, когда лимит не задан.
const DefaultLimit = 50

// MaxLimit верхняя граница лимита.
const MaxLimit = 200

// Normalize подставляет лимит по умолчанию и обрезает слишком большие значения.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
