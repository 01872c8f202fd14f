// Package syncer согласует локальную коллекцию с сервером: pull при старте сессии,
// отправка очереди локальных изменений и фоновая пересинхронизация.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"Taskly/internal/cli/store"
	"Taskly/internal/record"
)

// DefaultInterval — период фоновой синхронизации, если не задан.
const DefaultInterval = 5 * time.Minute

// Remote — источник истины на сервере.
type Remote interface {
	// FetchRecords возвращает все записи пользователя, новые первыми (createdAt DESC).
	FetchRecords(ctx context.Context, userID string) ([]json.RawMessage, error)
	// UpsertRecord сохраняет запись. При конфликте возвращает *ConflictError,
	// при отказе валидации — ErrRejected.
	UpsertRecord(ctx context.Context, raw json.RawMessage) (json.RawMessage, error)
	DeleteRecord(ctx context.Context, id string) error
}

// Collection — часть API локального хранилища, которой пользуется синхронизация.
type Collection interface {
	User() string
	Subscribe(fn func(store.Event)) (unsubscribe func())
	Merge(userID string, remote []record.Record, keep []string) (store.MergeResult, error)
	Replace(userID string, records []record.Record) error
	ApplyRemote(userID string, r record.Record) error
	Settle(userID, id string, version time.Time) error
}

// Config — параметры синхронизации.
type Config struct {
	// Interval — период фонового цикла.
	Interval time.Duration
	// Timeout — ограничение на один сетевой вызов, 0 — без ограничения.
	Timeout time.Duration
}

// Status — несмертельный индикатор состояния синхронизации для UI.
type Status struct {
	LastPull  time.Time
	LastPush  time.Time
	LastError error
	Pending   int
	Running   bool
}

// Reconciler связывает Collection, Remote и Queue.
type Reconciler struct {
	coll   Collection
	remote Remote
	queue  Queue
	cfg    Config
	log    *zap.SugaredLogger

	// runMu сериализует циклы pull/push
	runMu sync.Mutex

	mu         sync.Mutex
	status     Status
	foreground bool
	untrack    func()
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New создаёт Reconciler. Фоновый цикл не запускается до Start.
func New(coll Collection, remote Remote, queue Queue, cfg Config, log *zap.SugaredLogger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Reconciler{coll: coll, remote: remote, queue: queue, cfg: cfg, log: log}
}

// Track подписывается на локальные изменения коллекции и ставит их в очередь отправки.
// Изменения, пришедшие с сервера или из кэша, не отправляются.
func (r *Reconciler) Track() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.untrack != nil {
		return
	}
	r.untrack = r.coll.Subscribe(r.onEvent)
}

func (r *Reconciler) onEvent(ev store.Event) {
	if ev.Origin != store.OriginLocal {
		return
	}
	var op Op
	switch ev.Op {
	case store.OpAdded, store.OpUpdated:
		payload, err := json.Marshal(ev.Record)
		if err != nil {
			r.log.Errorw("marshal record for push", "id", ev.Record.ID, "error", err)
			return
		}
		op = Op{Kind: OpUpsert, RecordID: ev.Record.ID, Payload: payload, Version: ev.Record.UpdatedAt}
	case store.OpRemoved:
		op = Op{Kind: OpDelete, RecordID: ev.Record.ID, Version: ev.At}
	default:
		return
	}
	if _, err := r.queue.Enqueue(op); err != nil {
		r.log.Errorw("enqueue push op", "id", op.RecordID, "kind", op.Kind, "error", err)
	}
}

func (r *Reconciler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, r.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// Pull загружает полный набор записей текущего пользователя и сливает его с локальным.
// При недоступности сервера возвращает *RemoteUnavailableError, коллекция не меняется.
func (r *Reconciler) Pull(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.pull(ctx)
}

func (r *Reconciler) fetch(ctx context.Context, userID string) ([]record.Record, []string, error) {
	cctx, cancel := r.withTimeout(ctx)
	defer cancel()
	raws, err := r.remote.FetchRecords(cctx, userID)
	if err != nil {
		return nil, nil, &RemoteUnavailableError{Op: "pull", Err: err}
	}
	records := make([]record.Record, 0, len(raws))
	var skipped []string
	for i, raw := range raws {
		rec, err := record.Validate(raw)
		if err != nil {
			id := peekID(raw)
			r.log.Warnw("skip invalid remote record", "index", i, "id", id, "error", err)
			if id != "" {
				skipped = append(skipped, id)
			}
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func (r *Reconciler) pull(ctx context.Context) error {
	userID := r.coll.User()
	if userID == "" {
		return store.ErrNoUser
	}
	records, skipped, err := r.fetch(ctx, userID)
	if err != nil {
		r.log.Warnw("pull failed, keeping local state", "user", userID, "error", err)
		r.setError(err)
		return err
	}
	res, err := r.coll.Merge(userID, records, skipped)
	if err != nil {
		// пользователь сменился, пока шёл запрос
		r.log.Infow("pull result discarded", "user", userID, "error", err)
		return err
	}
	r.log.Infow("pull done", "user", userID, "remote", len(records), "skipped", len(skipped),
		"added", res.Added, "updated", res.Updated, "removed", res.Removed, "kept", res.Kept)
	r.mu.Lock()
	r.status.LastPull = time.Now()
	r.status.LastError = nil
	r.mu.Unlock()
	return nil
}

// Push отправляет очередь по порядку. Первая ошибка недоступности прерывает отправку,
// оставшиеся операции остаются в очереди; локальные изменения не откатываются.
func (r *Reconciler) Push(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.push(ctx)
}

func (r *Reconciler) push(ctx context.Context) error {
	userID := r.coll.User()
	if userID == "" {
		return store.ErrNoUser
	}
	ops, err := r.queue.Pending()
	if err != nil {
		return err
	}
	sent := 0
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.pushOne(ctx, userID, op); err != nil {
			r.log.Warnw("push stopped", "user", userID, "id", op.RecordID, "sent", sent, "left", len(ops)-sent, "error", err)
			var unavailable *RemoteUnavailableError
			if errors.As(err, &unavailable) {
				r.setError(err)
			}
			return err
		}
		sent++
	}
	if sent > 0 {
		r.log.Infow("push done", "user", userID, "sent", sent)
	}
	r.mu.Lock()
	r.status.LastPush = time.Now()
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) pushOne(ctx context.Context, userID string, op Op) error {
	cctx, cancel := r.withTimeout(ctx)
	defer cancel()

	switch op.Kind {
	case OpUpsert:
		_, err := r.remote.UpsertRecord(cctx, op.Payload)
		var conflict *ConflictError
		switch {
		case err == nil:
			if err := r.coll.Settle(userID, op.RecordID, op.Version); err != nil {
				return err
			}
		case errors.As(err, &conflict):
			rec, verr := record.Validate(conflict.Remote)
			if verr != nil {
				r.log.Warnw("conflict copy is invalid, keeping local record", "id", op.RecordID, "error", verr)
				break
			}
			if err := r.coll.ApplyRemote(userID, rec); err != nil {
				return err
			}
			r.log.Infow("remote copy is newer, adopted", "id", op.RecordID)
		case errors.Is(err, ErrRejected):
			// повтор бессмыслен: запись снимается с учёта, на следующем pull побеждает копия сервера
			r.log.Warnw("remote rejected record, dropping op", "id", op.RecordID, "error", err)
			if err := r.coll.Settle(userID, op.RecordID, op.Version); err != nil {
				return err
			}
		default:
			return &RemoteUnavailableError{Op: "push", Err: err}
		}
	case OpDelete:
		err := r.remote.DeleteRecord(cctx, op.RecordID)
		if err != nil && !errors.Is(err, ErrRemoteNotFound) {
			return &RemoteUnavailableError{Op: "push", Err: err}
		}
		if err := r.coll.Settle(userID, op.RecordID, op.Version); err != nil {
			return err
		}
	default:
		r.log.Warnw("unknown op kind, dropping", "id", op.RecordID, "kind", op.Kind)
	}
	return r.queue.Ack(op.RecordID, op.Seq)
}

// Sync выполняет push, затем pull. Pull выполняется, даже если push не удался.
func (r *Reconciler) Sync(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	pushErr := r.push(ctx)
	pullErr := r.pull(ctx)
	return errors.Join(pushErr, pullErr)
}

// Reset отбрасывает неотправленные изменения и заменяет коллекцию серверным набором.
func (r *Reconciler) Reset(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	userID := r.coll.User()
	if userID == "" {
		return store.ErrNoUser
	}
	records, _, err := r.fetch(ctx, userID)
	if err != nil {
		r.setError(err)
		return err
	}
	if err := r.queue.Clear(); err != nil {
		return err
	}
	if err := r.coll.Replace(userID, records); err != nil {
		return err
	}
	r.log.Infow("collection reset from remote", "user", userID, "records", len(records))
	r.mu.Lock()
	r.status.LastPull = time.Now()
	r.status.LastError = nil
	r.mu.Unlock()
	return nil
}

// Start запускает фоновый цикл: каждые Interval выполняется Sync, если
// приложение не на переднем плане. Повторный вызов ничего не делает.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.status.Running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	r.log.Infow("background sync started", "interval", r.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Infow("background sync stopped")
			return
		case <-ticker.C:
			if r.Foreground() {
				continue
			}
			if err := r.Sync(ctx); err != nil && ctx.Err() == nil {
				r.log.Warnw("background sync failed", "error", err)
			}
		}
	}
}

// Stop останавливает фоновый цикл, дожидается текущего цикла и снимает подписку Track.
// После возврата Reconciler больше не меняет коллекцию.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	untrack := r.untrack
	r.cancel = nil
	r.untrack = nil
	r.status.Running = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	if untrack != nil {
		untrack()
	}
}

// SetForeground сообщает, что приложение на переднем плане (фоновый цикл пропускает тики).
func (r *Reconciler) SetForeground(fg bool) {
	r.mu.Lock()
	r.foreground = fg
	r.mu.Unlock()
}

func (r *Reconciler) Foreground() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.foreground
}

// Status возвращает снимок состояния синхронизации.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	st := r.status
	r.mu.Unlock()
	if ops, err := r.queue.Pending(); err == nil {
		st.Pending = len(ops)
	}
	return st
}

func (r *Reconciler) setError(err error) {
	r.mu.Lock()
	r.status.LastError = err
	r.mu.Unlock()
}

func peekID(raw json.RawMessage) string {
	var v struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	id, _ := v.ID.(string)
	return id
}
