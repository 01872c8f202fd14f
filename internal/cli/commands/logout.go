package commands

import (
	"context"
	"fmt"

	"Taskly/internal/cli/bootstrap"
	"Taskly/internal/cli/service"
	"Taskly/internal/config"
)

type logoutCmd struct{}

func (logoutCmd) Name() string        { return "logout" }
func (logoutCmd) Description() string { return "Забыть токен и текущего пользователя" }
func (logoutCmd) Usage() string       { return "logout" }

func (logoutCmd) Run(_ context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	sess := bootstrap.Open(cfg, Logger)
	svc := service.NewAuthService(sess.Client, sess.Auth, sess.Auth)
	if err := svc.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(Out, "Logged out")
	return nil
}

func init() { RegisterCmd(logoutCmd{}) }
