package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Taskly/internal/cli/service"
	"Taskly/internal/config"
	"Taskly/internal/record"
)

type editCmd struct{}

func (editCmd) Name() string { return "edit" }
func (editCmd) Description() string {
	return "Изменить поле записи: title|desc|date|time|kind|subtask|attach|done (отметить подзадачу)"
}
func (editCmd) Usage() string {
	return "edit <id> <field> <value...>"
}

func (editCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 3 {
		return ErrUsage
	}
	id := args[0]
	field := strings.ToLower(args[1])
	values := args[2:]

	// Валидация кол-ва аргументов по полю
	switch field {
	case service.FieldTitle, service.FieldDesc, service.FieldSubtask:
	case service.FieldTime, service.FieldKind, service.FieldAttach, "done":
		if len(values) != 1 {
			return ErrUsage
		}
	case service.FieldDate:
		text := strings.Join(values, " ")
		if !strings.EqualFold(text, service.Clear) {
			d, err := ParseHumanDate(text, time.Now())
			if err != nil {
				return err
			}
			text = d
		}
		values = []string{text}
	default:
		return ErrUsage
	}

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Teardown()

	svc := service.NewRecordService(sess.Store)
	var rec record.Record
	if field == "done" {
		rec, err = svc.CompleteSubtask(id, values[0])
	} else {
		rec, err = svc.Edit(id, field, values)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(Out, "Updated:")
	printRecordDetails(rec)
	pushNow(ctx, sess)
	return nil
}

func init() { RegisterCmd(editCmd{}) }
