package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"Taskly/internal/config"
	"Taskly/internal/middleware"
	"Taskly/internal/service"
)

// TranscribeHandler принимает голосовую заметку и возвращает распознанный текст.
type TranscribeHandler struct {
	Transcriber service.Transcriber
	Logger      *zap.SugaredLogger
	Config      *config.Config
}

func NewTranscribeHandler(t service.Transcriber, logger *zap.SugaredLogger, cfg *config.Config) *TranscribeHandler {
	return &TranscribeHandler{Transcriber: t, Logger: logger, Config: cfg}
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe multipart-поле audio -> {"text": "..."}
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Лимит общего тела запроса: файл + запас на заголовки multipart
	maxAudio := int64(h.Config.AudioMaxSizeMB) * 1024 * 1024
	if r.ContentLength > maxAudio+1*1024*1024 {
		writeError(w, http.StatusRequestEntityTooLarge, "audio file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudio+1*1024*1024)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio file too large")
			return
		}
		h.Logger.Warnw("Transcribe: invalid multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "no audio file provided")
		return
	}

	file, hdr, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no audio file provided")
		return
	}
	defer file.Close()
	if hdr.Size > maxAudio {
		writeError(w, http.StatusRequestEntityTooLarge, "audio file too large")
		return
	}

	if h.Transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, service.ErrTranscribeDisabled.Error())
		return
	}
	text, err := h.Transcriber.Transcribe(r.Context(), hdr.Filename, file)
	switch {
	case errors.Is(err, service.ErrTranscribeDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.Logger.Errorw("Transcribe: backend error", "user_id", userID, "file", hdr.Filename, "error", err)
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	h.Logger.Infow("audio transcribed", "user_id", userID, "file", hdr.Filename, "size", hdr.Size)
	writeJSON(w, http.StatusOK, transcribeResponse{Text: text})
}
