package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"Taskly/internal/cli/service"
	"Taskly/internal/config"
	"Taskly/internal/record"
)

// stringList — повторяемый флаг.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

type addCmd struct{}

func (addCmd) Name() string { return "add" }
func (addCmd) Description() string {
	return "Добавить задачу или заметку"
}
func (addCmd) Usage() string {
	return "add [--note] [--date=D] [--time=HH:MM] [--desc=T] [--attach=URI] <title>"
}

func (addCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	note := fs.Bool("note", false, "создать заметку вместо задачи")
	date := fs.String("date", "", "дата: YYYY-MM-DD, today, tomorrow, next friday...")
	clock := fs.String("time", "", "время HH:MM")
	desc := fs.String("desc", "", "описание (для заметки — текст)")
	var attach stringList
	fs.Var(&attach, "attach", "URI вложения (можно несколько)")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	title := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if title == "" {
		return ErrUsage
	}
	startDate, err := dateArg(*date, time.Now())
	if err != nil {
		return err
	}
	startTime, err := clockArg(*clock)
	if err != nil {
		return err
	}
	kind := record.KindTask
	if *note {
		kind = record.KindNote
	}

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Teardown()

	svc := service.NewRecordService(sess.Store)
	rec, err := svc.Add(service.NewRecord{
		Kind:        kind,
		Title:       title,
		Description: *desc,
		StartDate:   startDate,
		StartTime:   startTime,
		Attachments: attach,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(Out, "Created:")
	printRecordDetails(rec)
	pushNow(ctx, sess)
	return nil
}

func printRecordDetails(r record.Record) {
	fmt.Fprintf(Out, "  id:    %s\n", r.ID)
	fmt.Fprintf(Out, "  kind:  %s\n", r.Kind)
	fmt.Fprintf(Out, "  title: %s\n", r.Title)
	if r.StartDate != nil {
		fmt.Fprintf(Out, "  date:  %s\n", *r.StartDate)
	}
	if r.StartTime != nil {
		fmt.Fprintf(Out, "  time:  %s\n", *r.StartTime)
	}
	if len(r.Subtasks) > 0 {
		fmt.Fprintf(Out, "  subtasks: %d\n", len(r.Subtasks))
	}
	if len(r.Attachments) > 0 {
		fmt.Fprintf(Out, "  attachments: %d\n", len(r.Attachments))
	}
}

func init() { RegisterCmd(addCmd{}) }
