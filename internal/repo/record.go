package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"Taskly/internal/model"
)

// RecordRepository — доступ к записям пользователя.
type RecordRepository interface {
	// ListByUser возвращает записи пользователя, новые первыми.
	ListByUser(ctx context.Context, userID int64) ([]model.Record, error)

	// GetByID возвращает gorm.ErrRecordNotFound, если записи нет.
	GetByID(ctx context.Context, userID int64, id string) (*model.Record, error)

	// Upsert сохраняет запись, если она новее сохранённой (last-writer-wins по UpdatedAt).
	// При отказе applied=false, а stored содержит текущую серверную копию.
	Upsert(ctx context.Context, rec *model.Record) (stored *model.Record, applied bool, err error)

	// Delete удаляет запись; deleted=false, если её не было.
	Delete(ctx context.Context, userID int64, id string) (deleted bool, err error)
}

type recordRepo struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepo{db: db}
}

func (r *recordRepo) ListByUser(ctx context.Context, userID int64) ([]model.Record, error) {
	var out []model.Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recordRepo) GetByID(ctx context.Context, userID int64, id string) (*model.Record, error) {
	var rec model.Record
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepo) Upsert(ctx context.Context, rec *model.Record) (*model.Record, bool, error) {
	var (
		stored  *model.Record
		applied bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Record
		err := tx.Where("user_id = ? AND id = ?", rec.UserID, rec.ID).First(&cur).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
			stored, applied = rec, true
			return nil
		case err != nil:
			return err
		}

		if cur.UpdatedAt.After(rec.UpdatedAt) {
			stored = &cur
			return nil
		}
		// Save пишет все поля, включая нулевые (completed=false, startDate=null)
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		stored, applied = rec, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, applied, nil
}

func (r *recordRepo) Delete(ctx context.Context, userID int64, id string) (bool, error) {
	tx := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.Record{})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
