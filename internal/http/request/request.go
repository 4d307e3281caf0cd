// Package request содержит разбор входящих HTTP-запросов: JSON-тела и параметров пагинации.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator"
)

// maxBodyBytes ограничивает размер JSON-тела запроса.
const maxBodyBytes = 1 << 20

// ErrEmptyBody возвращается для запроса без тела.
var ErrEmptyBody = errors.New("request body is empty")

// DecodeJSON читает JSON-тело в v и проверяет его валидатором.
// Ошибки валидации возвращаются как validator.ValidationErrors.
func DecodeJSON(r *http.Request, v any, validate *validator.Validate) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("decode body: %w", err)
	}
	if validate == nil {
		return nil
	}
	return validate.Struct(v)
}

// Page читает limit и offset из query. Некорректные значения заменяются нулём,
// границы применяет хранилище.
func Page(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}
