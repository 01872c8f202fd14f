package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Taskly/internal/model"
	"Taskly/internal/record"
	"Taskly/internal/repo"
)

type mockRecordRepo struct{ mock.Mock }

func (m *mockRecordRepo) ListByUser(ctx context.Context, userID int64) ([]model.Record, error) {
	args := m.Called(ctx, userID)
	if v, ok := args.Get(0).([]model.Record); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRecordRepo) GetByID(ctx context.Context, userID int64, id string) (*model.Record, error) {
	args := m.Called(ctx, userID, id)
	if v, ok := args.Get(0).(*model.Record); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRecordRepo) Upsert(ctx context.Context, rec *model.Record) (*model.Record, bool, error) {
	args := m.Called(ctx, rec)
	if v, ok := args.Get(0).(*model.Record); ok {
		return v, args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *mockRecordRepo) Delete(ctx context.Context, userID int64, id string) (bool, error) {
	args := m.Called(ctx, userID, id)
	return args.Bool(0), args.Error(1)
}

var _ repo.RecordRepository = (*mockRecordRepo)(nil)

func newRecordService(m *mockRecordRepo) *RecordService {
	return NewRecordService(m, zap.NewNop().Sugar())
}

func TestRecordService_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("applies valid record for the caller", func(t *testing.T) {
		m := new(mockRecordRepo)
		svc := newRecordService(m)
		var saved *model.Record
		m.On("Upsert", mock.Anything, mock.MatchedBy(func(r *model.Record) bool {
			return r.UserID == 5 && r.ID == "r1" && r.Title == "Buy milk" && r.Kind == "task"
		})).Run(func(args mock.Arguments) {
			saved = args.Get(1).(*model.Record)
		}).Return(&model.Record{ID: "r1", UserID: 5, Kind: "task", Title: "Buy milk", CreatedAt: time.Now()}, true, nil).Once()

		got, err := svc.Upsert(ctx, 5, []byte(`{"id":"r1","title":"Buy milk","updatedAt":"2024-03-01T10:00:00Z"}`))
		require.NoError(t, err)
		assert.Equal(t, "5", got.OwnerID)
		assert.Equal(t, record.KindTask, got.Kind)
		require.NotNil(t, saved)
		assert.False(t, saved.CreatedAt.IsZero(), "createdAt filled by server")
		assert.True(t, saved.UpdatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
		m.AssertExpectations(t)
	})

	t.Run("stale write becomes conflict with stored copy", func(t *testing.T) {
		m := new(mockRecordRepo)
		svc := newRecordService(m)
		newer := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
		stored := &model.Record{ID: "r1", UserID: 5, Kind: "task", Title: "server", UpdatedAt: newer, CreatedAt: newer}
		m.On("Upsert", mock.Anything, mock.Anything).Return(stored, false, nil).Once()

		_, err := svc.Upsert(ctx, 5, []byte(`{"id":"r1","title":"local","updatedAt":"2024-03-01T10:00:00Z"}`))
		var ce *ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "server", ce.Current.Title)
		assert.True(t, ce.Current.UpdatedAt.Equal(newer))
	})

	t.Run("invalid record never reaches repository", func(t *testing.T) {
		m := new(mockRecordRepo)
		svc := newRecordService(m)

		_, err := svc.Upsert(ctx, 5, []byte(`{"id":"r1","title":""}`))
		assert.ErrorIs(t, err, ErrInvalidRecord)
		var ve *record.ValidationError
		assert.ErrorAs(t, err, &ve)

		_, err = svc.Upsert(ctx, 5, []byte(`not json`))
		assert.ErrorIs(t, err, ErrInvalidRecord)
		m.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestRecordService_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	m := new(mockRecordRepo)
	svc := newRecordService(m)

	now := time.Now().UTC()
	m.On("ListByUser", mock.Anything, int64(3)).Return([]model.Record{
		{ID: "a", UserID: 3, Kind: "note", Title: "n", CreatedAt: now, UpdatedAt: now},
	}, nil).Once()
	list, err := svc.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, record.KindNote, list[0].Kind)
	assert.NotNil(t, list[0].Attachments)
	assert.NotNil(t, list[0].Subtasks)

	m.On("Delete", mock.Anything, int64(3), "a").Return(true, nil).Once()
	assert.NoError(t, svc.Delete(ctx, 3, "a"))

	m.On("Delete", mock.Anything, int64(3), "zzz").Return(false, nil).Once()
	assert.ErrorIs(t, svc.Delete(ctx, 3, "zzz"), ErrNotFound)

	m.On("GetByID", mock.Anything, int64(3), "zzz").Return(nil, gorm.ErrRecordNotFound).Once()
	_, err = svc.Get(ctx, 3, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("db down")
	m.On("ListByUser", mock.Anything, int64(4)).Return(nil, boom).Once()
	_, err = svc.List(ctx, 4)
	assert.ErrorIs(t, err, boom)

	m.AssertExpectations(t)
}
