// Package apperr описывает типизированные ошибки бизнес-логики.
//
// Каждая ошибка несёт вид (Kind), по которому HTTP-слой выбирает код ответа,
// и публичное сообщение. Детали причины доступны через errors.Unwrap и пишутся только в лог.
package apperr

import (
	"errors"
	"fmt"
)

// Kind — вид ошибки.
type Kind int

// Виды ошибок.
const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation failed"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "internal error"
	default:
		return "unknown error"
	}
}

// Error — ошибка с видом и публичным сообщением.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Sentinel-значения для сравнения через errors.Is по виду ошибки.
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrUpstream     = &Error{Kind: KindUpstream}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибку с sentinel-значением того же вида.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// Public возвращает сообщение, которое можно показать клиенту.
// Для KindUpstream это всегда общее сообщение.
func (e *Error) Public() string {
	if e.Kind == KindUpstream || e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

// Unauthorized создаёт ошибку вида KindUnauthorized.
func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

// Forbidden создаёт ошибку вида KindForbidden.
func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

// NotFound создаёт ошибку вида KindNotFound.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Validation создаёт ошибку вида KindValidation.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Conflict создаёт ошибку вида KindConflict.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// Upstream оборачивает сбой хранилища или внешнего сервиса.
func Upstream(err error) error {
	return &Error{Kind: KindUpstream, Err: err}
}

// KindOf возвращает вид первой apperr-ошибки в цепочке или KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PublicMessage возвращает публичное сообщение ошибки.
// Для ошибок вне пакета возвращается общее сообщение.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Public()
	}
	return KindUpstream.String()
}
