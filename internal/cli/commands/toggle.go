package commands

import (
	"context"
	"fmt"

	"Taskly/internal/cli/service"
	"Taskly/internal/config"
)

type toggleCmd struct{}

func (toggleCmd) Name() string        { return "toggle" }
func (toggleCmd) Description() string { return "Отметить задачу выполненной / закрепить заметку (и обратно)" }
func (toggleCmd) Usage() string       { return "toggle <id>" }

func (toggleCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Teardown()

	rec, err := service.NewRecordService(sess.Store).Toggle(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "%s %s\n", checkbox(rec.Completed), rec.Title)
	pushNow(ctx, sess)
	return nil
}

func init() { RegisterCmd(toggleCmd{}) }
