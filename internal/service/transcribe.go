package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// ErrTranscribeDisabled — сервис распознавания не настроен (пустой TRANSCRIBE_URL).
var ErrTranscribeDisabled = errors.New("transcription backend is not configured")

// Transcriber превращает аудио в текст.
type Transcriber interface {
	Transcribe(ctx context.Context, fileName string, audio io.Reader) (string, error)
}

// TranscribeService пересылает аудио во внешний сервис с API, совместимым
// с /v1/audio/transcriptions: multipart-поле file, ответ {"text": "..."}.
type TranscribeService struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

var _ Transcriber = (*TranscribeService)(nil)

func NewTranscribeService(url, apiKey string, timeout time.Duration) *TranscribeService {
	return &TranscribeService{
		url:    strings.TrimSpace(url),
		apiKey: apiKey,
		model:  "whisper-1",
		client: &http.Client{Timeout: timeout},
	}
}

// Enabled сообщает, задан ли адрес сервиса.
func (s *TranscribeService) Enabled() bool {
	return s != nil && s.url != ""
}

func (s *TranscribeService) Transcribe(ctx context.Context, fileName string, audio io.Reader) (string, error) {
	if !s.Enabled() {
		return "", ErrTranscribeDisabled
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("model", s.model); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription backend returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
