package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Taskly/internal/cli/bootstrap"
	"Taskly/internal/cli/service"
	"Taskly/internal/config"
)

type statusCmd struct{}

func (statusCmd) Name() string        { return "status" }
func (statusCmd) Description() string { return "Показать пользователя, очередь отправки и доступность сервера" }
func (statusCmd) Usage() string       { return "status" }

func (statusCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	sess := bootstrap.Open(cfg, Logger)
	login, err := service.NewAuthService(sess.Client, sess.Auth, sess.Auth).CurrentUser()
	if errors.Is(err, service.ErrNotLoggedIn) {
		fmt.Fprintln(Out, "Пользователь: не выполнен вход")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "Пользователь: %s\n", login)

	if err := sess.Init(ctx, login); err != nil {
		return err
	}
	defer sess.Teardown()

	st := sess.Sync.Status()
	fmt.Fprintf(Out, "Записей: %d\n", sess.Store.Len())
	fmt.Fprintf(Out, "Ожидают отправки: %d\n", st.Pending)
	if at, err := sess.Auth.LoadLastPullAt(login); err == nil {
		fmt.Fprintf(Out, "Последняя загрузка: %s\n", at.Local().Format(time.DateTime))
	}

	res, err := sess.Client.CheckAuth(ctx)
	if err != nil {
		fmt.Fprintf(Out, "Сервер: недоступен (%v)\n", err)
		return nil
	}
	fmt.Fprintf(Out, "Сервер: %s\n", res)
	return nil
}

func init() { RegisterCmd(statusCmd{}) }
