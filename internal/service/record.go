package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"Taskly/internal/model"
	"Taskly/internal/record"
	"Taskly/internal/repo"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRecord = errors.New("invalid record")
)

// ConflictError — на сервере уже лежит более новая версия записи.
type ConflictError struct {
	Current record.Record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record %s has a newer version (updated %s)", e.Current.ID, e.Current.UpdatedAt.Format(time.RFC3339))
}

// RecordService — серверная логика записей: валидация и last-writer-wins.
type RecordService struct {
	repo   repo.RecordRepository
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewRecordService(r repo.RecordRepository, logger *zap.SugaredLogger) *RecordService {
	return &RecordService{repo: r, logger: logger, now: time.Now}
}

// List возвращает записи пользователя, новые первыми.
func (s *RecordService) List(ctx context.Context, userID int64) ([]record.Record, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToRecord())
	}
	return out, nil
}

// Upsert валидирует сырой JSON и сохраняет запись. Устаревшая запись
// не применяется: возвращается *ConflictError с серверной копией.
func (s *RecordService) Upsert(ctx context.Context, userID int64, raw []byte) (record.Record, error) {
	rec, err := record.Validate(raw)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	row := model.FromRecord(userID, rec)
	stored, applied, err := s.repo.Upsert(ctx, &row)
	if err != nil {
		return record.Record{}, fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	if !applied {
		s.logger.Infow("stale record write rejected",
			"user_id", userID,
			"record_id", rec.ID,
			"incoming", rec.UpdatedAt,
			"stored", stored.UpdatedAt,
		)
		return record.Record{}, &ConflictError{Current: stored.ToRecord()}
	}
	return stored.ToRecord(), nil
}

// Delete удаляет запись пользователя.
func (s *RecordService) Delete(ctx context.Context, userID int64, id string) error {
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Get возвращает одну запись.
func (s *RecordService) Get(ctx context.Context, userID int64, id string) (record.Record, error) {
	row, err := s.repo.GetByID(ctx, userID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record.Record{}, ErrNotFound
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return row.ToRecord(), nil
}
