package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"Taskly/internal/cli/store"
	"Taskly/internal/config"
)

type watchCmd struct{}

func (watchCmd) Name() string { return "watch" }
func (watchCmd) Description() string {
	return "Фоновая синхронизация до Ctrl+C"
}
func (watchCmd) Usage() string { return "watch [--interval=5m]" }

func (watchCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	interval := fs.Duration("interval", cfg.SyncInterval, "период синхронизации")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 || *interval <= 0 {
		return ErrUsage
	}
	local := *cfg
	local.SyncInterval = *interval

	sess, err := openSession(ctx, &local)
	if err != nil {
		return err
	}
	defer sess.Teardown()

	// уведомления печатаем из подписки: она вызывается после фиксации изменений
	unsubscribe := sess.Store.Subscribe(func(ev store.Event) {
		if ev.Origin == store.OriginRemote {
			fmt.Fprintf(Out, "• %s обновлено с сервера (%s)\n", ev.At.Local().Format(time.TimeOnly), ev.Op)
		}
	})
	defer unsubscribe()

	sess.Sync.SetForeground(false)
	sess.Sync.Start(ctx)
	fmt.Fprintf(Out, "→ Фоновая синхронизация каждые %s. Ctrl+C для выхода\n", local.SyncInterval)

	<-ctx.Done()
	sess.Sync.Stop()
	if st := sess.Sync.Status(); st.Pending > 0 {
		fmt.Fprintf(Out, "• Ожидают отправки: %d\n", st.Pending)
	}
	fmt.Fprintln(Out, "• Остановлено")
	return nil
}

func init() { RegisterCmd(watchCmd{}) }
