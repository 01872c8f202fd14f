package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Taskly/internal/config"
	"Taskly/internal/handlers"
	"Taskly/internal/middleware"
	"Taskly/internal/model"
	"Taskly/internal/repo"
	"Taskly/internal/service"
)

// Minimal mocks
type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	args := m.Called(ctx, user)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	args := m.Called(ctx, login)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

var _ repo.UserRepository = (*mockUserRepo)(nil)

type fakeTranscriber struct {
	text     string
	err      error
	gotName  string
	gotAudio string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, fileName string, audio io.Reader) (string, error) {
	b, _ := io.ReadAll(audio)
	f.gotName, f.gotAudio = fileName, string(b)
	return f.text, f.err
}

func testConfig() *config.Config {
	return &config.Config{AuthSecret: "test-secret", AudioMaxSizeMB: 1}
}

// --- Helpers ---
func newTestRouter(t *testing.T, ur repo.UserRepository) http.Handler {
	t.Helper()
	logger := zap.NewNop().Sugar()

	userSvc := service.NewUserService(ur)
	// для user‑тестов записи не используются, хватит пустой БД
	recordSvc := service.NewRecordService(repo.NewRecordRepository(newTestDB(t)), logger)

	h := handlers.NewHandler(userSvc, recordSvc, &fakeTranscriber{}, logger, testConfig())
	return h.Router
}

// newRecordsRouter поднимает роутер поверх настоящей SQLite БД.
func newRecordsRouter(t *testing.T, tr service.Transcriber) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	logger := zap.NewNop().Sugar()
	db := newTestDB(t)

	userSvc := service.NewUserService(repo.NewUserRepository(db))
	recordSvc := service.NewRecordService(repo.NewRecordRepository(db), logger)
	h := handlers.NewHandler(userSvc, recordSvc, tr, logger, cfg)
	return h.Router, cfg
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.InitDB(t.TempDir() + "/server.db")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func addAuthCookie(t *testing.T, req *http.Request, userID int64, secret string) {
	t.Helper()
	rr := httptest.NewRecorder()
	_ = middleware.SetLoginCookie(rr, userID, secret)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
}
