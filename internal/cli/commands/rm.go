package commands

import (
	"context"
	"fmt"

	"Taskly/internal/cli/service"
	"Taskly/internal/config"
)

type rmCmd struct{}

func (rmCmd) Name() string        { return "rm" }
func (rmCmd) Description() string { return "Удалить запись" }
func (rmCmd) Usage() string       { return "rm <id>" }

func (rmCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Teardown()

	if err := service.NewRecordService(sess.Store).Remove(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(Out, "Removed: %s\n", args[0])
	pushNow(ctx, sess)
	return nil
}

func init() { RegisterCmd(rmCmd{}) }
