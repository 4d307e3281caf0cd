// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков: успешных ответов, ошибок
// и сообщений валидации в едином формате.
package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/services/billing"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// Сообщения об ошибках конфигурации биллинга.
const (
	msgBillingNotConfigured = "billing is not configured"
	msgProviderAuth         = "billing provider authentication failed"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует ответ по первому нарушению валидации.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	if len(errs) == 0 {
		return Error("validation failed")
	}
	err := errs[0]
	var msg string
	switch err.ActualTag() {
	case "required":
		msg = fmt.Sprintf("field %s is a required field", err.Field())
	case "email":
		msg = fmt.Sprintf("field %s must be a valid email", err.Field())
	case "min":
		msg = fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param())
	case "max":
		msg = fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param())
	case "oneof":
		msg = fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param())
	case "uuid", "uuid4":
		msg = fmt.Sprintf("field %s can contain only uuid", err.Field())
	case "url":
		msg = fmt.Sprintf("field %s must be a valid url", err.Field())
	default:
		msg = fmt.Sprintf("field %s is not valid", err.Field())
	}
	return Error(msg)
}

// StatusFromError возвращает HTTP-код и публичное сообщение для ошибки сервиса.
func StatusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, billing.ErrProviderAuth):
		return http.StatusBadGateway, msgProviderAuth
	case errors.Is(err, billing.ErrNotConfigured):
		return http.StatusInternalServerError, msgBillingNotConfigured
	}
	switch apperr.KindOf(err) {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized, apperr.PublicMessage(err)
	case apperr.KindForbidden:
		return http.StatusForbidden, apperr.PublicMessage(err)
	case apperr.KindNotFound:
		return http.StatusNotFound, apperr.PublicMessage(err)
	case apperr.KindValidation:
		return http.StatusBadRequest, apperr.PublicMessage(err)
	case apperr.KindConflict:
		return http.StatusConflict, apperr.PublicMessage(err)
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// Fail пишет ответ с ошибкой сервиса.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := StatusFromError(err)
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}

// Invalid пишет 400 с сообщением о некорректном запросе.
func Invalid(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusBadRequest)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		render.JSON(w, r, ValidationError(verrs))
		return
	}
	render.JSON(w, r, Error("invalid request body"))
}
