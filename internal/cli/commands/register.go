package commands

import (
	"context"
	"fmt"

	"Taskly/internal/cli/bootstrap"
	"Taskly/internal/cli/service"
	"Taskly/internal/config"
)

type registerCmd struct{}

func (registerCmd) Name() string        { return "register" }
func (registerCmd) Description() string { return "Register a new user and log in" }
func (registerCmd) Usage() string       { return "register <login> <password>" }

func (registerCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	sess := bootstrap.Open(cfg, Logger)
	svc := service.NewAuthService(sess.Client, sess.Auth, sess.Auth)
	if err := svc.Register(ctx, args[0], args[1]); err != nil {
		return err
	}
	if err := startUserSession(ctx, sess, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(Out, "Registered successfully")
	return nil
}

func init() { RegisterCmd(registerCmd{}) }
