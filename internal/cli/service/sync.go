package service

import (
	"context"
	"time"

	"Taskly/internal/cli/syncer"
)

// Syncer — синхронизация коллекции с сервером (реализуется *syncer.Reconciler).
type Syncer interface {
	Sync(ctx context.Context) error
	Reset(ctx context.Context) error
	Status() syncer.Status
}

// Counter — размер локальной коллекции.
type Counter interface {
	Len() int
}

// SyncOptions — параметры ручной синхронизации.
type SyncOptions struct {
	// Reset отбрасывает неотправленные изменения и заново загружает коллекцию.
	Reset bool
}

// SyncResult — итог синхронизации для вывода пользователю.
type SyncResult struct {
	Reset         bool
	PendingBefore int
	PendingAfter  int
	Records       int
	LastPull      time.Time
	Err           error
}

// Pushed — сколько изменений ушло на сервер. При сбросе очередь отбрасывается, а не отправляется.
func (r SyncResult) Pushed() int {
	if r.Reset || r.PendingBefore < r.PendingAfter {
		return 0
	}
	return r.PendingBefore - r.PendingAfter
}

// RunSync выполняет отправку очереди и загрузку с сервера (или полный сброс).
func RunSync(ctx context.Context, s Syncer, coll Counter, opts SyncOptions) SyncResult {
	res := SyncResult{Reset: opts.Reset, PendingBefore: s.Status().Pending}
	if opts.Reset {
		res.Err = s.Reset(ctx)
	} else {
		res.Err = s.Sync(ctx)
	}
	st := s.Status()
	res.PendingAfter = st.Pending
	res.LastPull = st.LastPull
	res.Records = coll.Len()
	return res
}
