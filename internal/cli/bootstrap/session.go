// Package bootstrap собирает клиентскую сессию: хранилище, офлайн-кэш,
// HTTP-клиент и синхронизацию для вошедшего пользователя.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"Taskly/internal/cli/api"
	fsrepo "Taskly/internal/cli/repo/fs"
	reposqlite "Taskly/internal/cli/repo/sqlite"
	"Taskly/internal/cli/store"
	"Taskly/internal/cli/syncer"
	"Taskly/internal/config"
)

// ErrNoSession — нет сохранённого логина, нужно выполнить login/register.
var ErrNoSession = errors.New("нет активного пользователя: выполните login/register")

// Session — состояние клиента на время работы команды.
// Sync, Remote и кэш существуют только между Init и Teardown.
type Session struct {
	Store  *store.Store
	Client *api.Client
	Auth   fsrepo.AuthFSStore
	Sync   *syncer.Reconciler
	// Remote ходит на сервер с токеном, прочитанным в Init.
	Remote *api.Client

	cfg       *config.Config
	log       *zap.SugaredLogger
	cache     *reposqlite.RecordCacheSQLite
	unpersist func()
}

// Open создаёт сессию без пользователя.
func Open(cfg *config.Config, log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	auth := fsrepo.AuthFSStore{Dir: cfg.ClientDir}
	return &Session{
		Store:  store.New(store.WithLogger(log)),
		Client: api.New(cfg.ServerURL, cfg.RemoteTimeout, auth),
		Auth:   auth,
		cfg:    cfg,
		log:    log,
	}
}

// Init поднимает сессию пользователя: восстанавливает коллекцию из кэша,
// подключает сохранение изменений и синхронизацию, затем делает pull.
// Ошибка сети при pull не считается ошибкой Init.
func (s *Session) Init(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoSession
	}
	if err := s.Teardown(); err != nil {
		s.log.Warnw("teardown previous session", "error", err)
	}

	cache, _, err := reposqlite.OpenForUser(s.cfg.ClientDBPath, userID)
	if err != nil {
		return fmt.Errorf("open user db: %w", err)
	}
	if err := cache.Migrate(); err != nil {
		_ = cache.Close()
		return fmt.Errorf("migrate user db: %w", err)
	}

	records, err := cache.ListRecords()
	if err != nil {
		// кэш повреждён: начинаем с пустой коллекции, сервер вернёт данные при pull
		s.log.Warnw("read cached records", "user", userID, "error", err)
		records = nil
	}
	ops, err := cache.Pending()
	if err != nil {
		_ = cache.Close()
		return fmt.Errorf("read outbox: %w", err)
	}
	var dirty, tombstones []string
	for _, op := range ops {
		switch op.Kind {
		case syncer.OpUpsert:
			dirty = append(dirty, op.RecordID)
		case syncer.OpDelete:
			tombstones = append(tombstones, op.RecordID)
		}
	}
	if err := s.Store.Restore(userID, records, dirty, tombstones); err != nil {
		_ = cache.Close()
		return err
	}

	token, err := s.Auth.Load()
	if err != nil {
		s.log.Warnw("no saved token, sync will be rejected until login", "user", userID, "error", err)
	}
	s.Remote = api.New(s.cfg.ServerURL, s.cfg.RemoteTimeout, api.SessionToken(token))

	s.cache = cache
	s.unpersist = s.Store.Subscribe(s.persist)
	s.Sync = syncer.New(s.Store, s.Remote, cache, syncer.Config{
		Interval: s.cfg.SyncInterval,
		Timeout:  s.cfg.RemoteTimeout,
	}, s.log)
	s.Sync.Track()

	if err := s.Sync.Pull(ctx); err != nil {
		s.log.Warnw("initial pull failed, working offline", "user", userID, "error", err)
		return nil
	}
	if err := s.Auth.SaveLastPullAt(userID, time.Now()); err != nil {
		s.log.Warnw("save last pull time", "user", userID, "error", err)
	}
	return nil
}

// Resume поднимает сессию для последнего вошедшего пользователя.
func (s *Session) Resume(ctx context.Context) error {
	login, err := s.Auth.LoadLogin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return s.Init(ctx, login)
}

// User возвращает логин пользователя сессии.
func (s *Session) User() string {
	return s.Store.User()
}

// Teardown останавливает фоновые задачи, отключает кэш и очищает коллекцию.
// Повторный вызов безопасен.
func (s *Session) Teardown() error {
	if s.Sync != nil {
		s.Sync.Stop()
		s.Sync = nil
	}
	s.Remote = nil
	if s.unpersist != nil {
		s.unpersist()
		s.unpersist = nil
	}
	s.Store.SetUser("")
	if s.cache == nil {
		return nil
	}
	err := s.cache.Close()
	s.cache = nil
	return err
}

// persist отражает изменения коллекции в офлайн-кэше.
func (s *Session) persist(ev store.Event) {
	if ev.Origin == store.OriginCache || ev.Origin == store.OriginSession {
		return
	}
	if s.cache == nil || ev.UserID == "" {
		return
	}
	var err error
	switch ev.Op {
	case store.OpReset:
		err = s.cache.ReplaceAll(ev.Records)
	case store.OpRemoved:
		err = s.cache.DeleteRecord(ev.Record.ID)
	default:
		err = s.cache.UpsertRecord(ev.Record)
	}
	if err != nil {
		s.log.Errorw("persist record change", "op", ev.Op, "id", ev.Record.ID, "error", err)
	}
}
