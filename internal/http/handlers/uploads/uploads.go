// Package uploads принимает колбэк провайдера загрузок и сохраняет запись о файле.
package uploads

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/designhub/internal/http/response"
	"github.com/magabrotheeeer/designhub/internal/lib/apperr"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
)

// SignatureHeader — заголовок с HMAC-SHA256 тела запроса в hex.
const SignatureHeader = "X-Upload-Signature"

const maxBodySize = 1 << 20

// Payload — тело колбэка провайдера загрузок.
type Payload struct {
	UserID          string `json:"userId" validate:"required"`
	FileName        string `json:"fileName" validate:"required"`
	FileSize        int64  `json:"fileSize" validate:"min=0"`
	FileURL         string `json:"fileUrl" validate:"required,url"`
	Key             string `json:"key" validate:"required"`
	DesignRequestID string `json:"designRequestId,omitempty"`
}

// Recorder сохраняет загруженный файл.
type Recorder interface {
	RecordUpload(ctx context.Context, f models.File) (*models.File, error)
}

// Handler обработчик колбэка.
type Handler struct {
	log      *slog.Logger
	recorder Recorder
	secret   string
	validate *validator.Validate
}

// New создает новый экземпляр Handler. Пустой secret отклоняет все колбэки.
func New(log *slog.Logger, recorder Recorder, secret string) *Handler {
	return &Handler{log: log, recorder: recorder, secret: secret, validate: validator.New()}
}

// Sign вычисляет подпись тела секретом.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if h.secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")
	return hmac.Equal([]byte(Sign(h.secret, body)), []byte(strings.ToLower(signature)))
}

// ServeHTTP godoc
// @Summary Колбэк провайдера загрузок
// @Description Сохраняет файл, загруженный пользователем. Тело подписывается HMAC-SHA256 в заголовке X-Upload-Signature.
// @Tags Files
// @Accept  json
// @Produce  json
// @Param X-Upload-Signature header string true "HMAC-SHA256 тела в hex"
// @Param request body Payload true "Файл"
// @Success 200 {object} response.Response "Файл сохранён"
// @Failure 400 {object} response.ErrorResponse "Некорректный колбэк"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Router /uploads/callback [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.uploads.callback"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read callback body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Warn("invalid or missing upload signature")
		response.Fail(w, r, apperr.Unauthorized("invalid signature"))
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Info("failed to unmarshal callback payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		response.Invalid(w, r, err)
		return
	}

	saved, err := h.recorder.RecordUpload(r.Context(), models.File{
		UserID:          payload.UserID,
		DesignRequestID: payload.DesignRequestID,
		FileName:        payload.FileName,
		FileSize:        payload.FileSize,
		FileURL:         payload.FileURL,
		Key:             payload.Key,
	})
	if err != nil {
		log.Info("upload rejected", slog.String("key", payload.Key), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("upload recorded", slog.String("file_id", saved.ID), slog.String("user_id", saved.UserID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"file": saved}))
}
