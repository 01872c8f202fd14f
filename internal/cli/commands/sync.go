package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"Taskly/internal/cli/service"
	"Taskly/internal/config"
)

type syncCmd struct{}

func (syncCmd) Name() string { return "sync" }
func (syncCmd) Description() string {
	return "Отправить локальные изменения и загрузить записи с сервера"
}
func (syncCmd) Usage() string {
	return "sync [--reset]"
}

func (syncCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	reset := fs.Bool("reset", false, "отбросить неотправленные изменения и загрузить всё заново")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Teardown()

	if *reset {
		fmt.Fprintln(Out, "→ Полная перезагрузка коллекции с сервера…")
	} else {
		fmt.Fprintln(Out, "→ Запуск синхронизации…")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Канал для результата
	resCh := make(chan service.SyncResult, 1)
	go func() {
		defer close(resCh)
		resCh <- service.RunSync(ctx, sess.Sync, sess.Store, service.SyncOptions{Reset: *reset})
	}()

	res := <-resCh
	if res.Err != nil {
		fmt.Fprintf(Out, "× Ошибка синхронизации: %v\n", res.Err)
		if res.PendingAfter > 0 {
			fmt.Fprintf(Out, "• Ожидают отправки: %d\n", res.PendingAfter)
		}
		return nil
	}
	if err := sess.Auth.SaveLastPullAt(sess.User(), time.Now()); err != nil {
		Logger.Warnw("save last pull time", "error", err)
	}
	printSyncSummary(res)
	return nil
}

func printSyncSummary(res service.SyncResult) {
	if res.Reset && res.PendingBefore > 0 {
		fmt.Fprintf(Out, "• Отброшено неотправленных изменений: %d\n", res.PendingBefore)
	}
	if n := res.Pushed(); n > 0 {
		fmt.Fprintf(Out, "✓ Отправлено изменений: %d\n", n)
	}
	if res.PendingAfter > 0 {
		fmt.Fprintf(Out, "• Ожидают отправки: %d\n", res.PendingAfter)
	}
	fmt.Fprintf(Out, "• Записей после синхронизации: %d\n", res.Records)
}

func init() { RegisterCmd(syncCmd{}) }
