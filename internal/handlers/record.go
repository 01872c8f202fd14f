package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"Taskly/internal/middleware"
	"Taskly/internal/record"
	"Taskly/internal/service"
)

// maxRecordBody ограничивает размер одной записи в запросе.
const maxRecordBody = 1 << 20

// RecordHandler — CRUD записей авторизованного пользователя.
type RecordHandler struct {
	RecordService *service.RecordService
	Logger        *zap.SugaredLogger
}

func NewRecordHandler(recordService *service.RecordService, logger *zap.SugaredLogger) *RecordHandler {
	return &RecordHandler{RecordService: recordService, Logger: logger}
}

// List все записи пользователя, новые первыми
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	records, err := h.RecordService.List(r.Context(), userID)
	if err != nil {
		h.Logger.Errorw("List: service error", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Upsert создание или обновление записи.
// 409 — на сервере более новая версия (она же в теле ответа).
func (h *RecordHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordBody))
	if err != nil {
		h.Logger.Warnw("Upsert: cannot read body", "user_id", userID, "error", err)
		writeError(w, http.StatusRequestEntityTooLarge, "record too large")
		return
	}

	saved, err := h.RecordService.Upsert(r.Context(), userID, body)
	var conflict *service.ConflictError
	var invalid *record.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, saved)
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, conflict.Current)
	case errors.As(err, &invalid) && invalid.Field == "record":
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, service.ErrInvalidRecord):
		h.Logger.Warnw("Upsert: record rejected", "user_id", userID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.Logger.Errorw("Upsert: service error", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Delete удаление записи по id
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	err := h.RecordService.Delete(r.Context(), userID, id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	default:
		h.Logger.Errorw("Delete: service error", "user_id", userID, "record_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
