package commands

import (
	"context"
	"fmt"

	"Taskly/internal/cli/bootstrap"
	"Taskly/internal/cli/service"
	"Taskly/internal/config"
)

type loginCmd struct{}

func (loginCmd) Name() string        { return "login" }
func (loginCmd) Description() string { return "Login and store auth cookie" }
func (loginCmd) Usage() string       { return "login <login> <password>" }

func (loginCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	sess := bootstrap.Open(cfg, Logger)
	svc := service.NewAuthService(sess.Client, sess.Auth, sess.Auth)
	if err := svc.Login(ctx, args[0], args[1]); err != nil {
		return err
	}
	if err := startUserSession(ctx, sess, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(Out, "Logged in successfully")
	return nil
}

// startUserSession готовит локальный кэш пользователя и загружает его записи.
func startUserSession(ctx context.Context, sess *bootstrap.Session, login string) error {
	if err := sess.Init(ctx, login); err != nil {
		return fmt.Errorf("open local storage: %w", err)
	}
	defer sess.Teardown()
	fmt.Fprintf(Out, "Записей: %d\n", sess.Store.Len())
	return nil
}

func init() { RegisterCmd(loginCmd{}) }
