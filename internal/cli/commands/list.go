package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"time"

	"Taskly/internal/cli/service"
	"Taskly/internal/cli/store"
	"Taskly/internal/config"
	"Taskly/internal/record"
)

type listCmd struct{}

func (listCmd) Name() string { return "list" }
func (listCmd) Description() string {
	return "Показать записи: all (порядок добавления), sorted, date (по датам и времени), days"
}
func (listCmd) Usage() string {
	return "list [--view=all|sorted|date|days] [--on=D] [--kind=task|note] [--done|--open]"
}

func (listCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	view := fs.String("view", "all", "представление")
	on := fs.String("on", "", "только записи на дату")
	kind := fs.String("kind", "", "task|note")
	done := fs.Bool("done", false, "только выполненные")
	open := fs.Bool("open", false, "только невыполненные")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}
	if *done && *open {
		return ErrUsage
	}

	var f store.Filter
	switch *kind {
	case "":
	case string(record.KindTask), string(record.KindNote):
		f.Kind = record.Kind(*kind)
	default:
		return ErrUsage
	}
	if *done || *open {
		v := *done
		f.Completed = &v
	}
	var day time.Time
	if *on != "" {
		d, err := ParseHumanDate(*on, time.Now())
		if err != nil {
			return err
		}
		f.Date = d
		day, _ = time.ParseInLocation(record.DateLayout, d, time.Local)
	}

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Teardown()
	svc := service.NewRecordService(sess.Store)

	if *on != "" && !record.HasTasksOnDate(svc.List(store.Filter{}), day) {
		fmt.Fprintf(Out, "Нет записей на %s\n", f.Date)
		return nil
	}

	switch *view {
	case "all":
		printRecords(svc.List(f))
	case "sorted":
		printRecords(svc.Sorted(f))
	case "date":
		printBuckets(sess.Store.ByDate(f))
	case "days":
		days := svc.Days(f)
		if len(days) == 0 {
			fmt.Fprintln(Out, "Нет записей")
			return nil
		}
		for _, d := range days {
			fmt.Fprintf(Out, "%s (%d)\n", d.Date, len(d.Records))
			for _, r := range d.Records {
				fmt.Fprintf(Out, "  %s\n", formatRecord(r))
			}
		}
	default:
		return ErrUsage
	}
	return nil
}

func printRecords(list []record.Record) {
	if len(list) == 0 {
		fmt.Fprintln(Out, "Нет записей")
		return
	}
	for _, r := range list {
		fmt.Fprintf(Out, "- %s\n", formatRecord(r))
	}
	fmt.Fprintf(Out, "Всего: %d\n", len(list))
}

// printBuckets выводит группы по датам в хронологическом порядке, "No Date" — последней.
func printBuckets(groups map[string][]record.Record) {
	if len(groups) == 0 {
		fmt.Fprintln(Out, "Нет записей")
		return
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		if k != record.NoDateBucket {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := groups[record.NoDateBucket]; ok {
		keys = append(keys, record.NoDateBucket)
	}
	for _, k := range keys {
		fmt.Fprintf(Out, "%s:\n", k)
		for _, r := range groups[k] {
			at := "     "
			if r.StartTime != nil {
				at = *r.StartTime
			}
			fmt.Fprintf(Out, "  %s %s %s\n", at, checkbox(r.Completed), r.Title)
		}
	}
}

func formatRecord(r record.Record) string {
	s := fmt.Sprintf("%s %s  %s", checkbox(r.Completed), r.ID, r.Title)
	if r.Kind == record.KindNote {
		s += "  (note)"
	}
	if r.StartDate != nil {
		s += "  @" + *r.StartDate
		if r.StartTime != nil {
			s += " " + *r.StartTime
		}
	}
	if n := len(r.Subtasks); n > 0 {
		doneCnt := 0
		for _, st := range r.Subtasks {
			if st.Completed {
				doneCnt++
			}
		}
		s += fmt.Sprintf("  [%d/%d]", doneCnt, n)
	}
	return s
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func init() { RegisterCmd(listCmd{}) }
