package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"Taskly/internal/cli/bootstrap"
	"Taskly/internal/cli/service"
	"Taskly/internal/config"
	"Taskly/internal/record"
)

const titleLimit = 60

type transcribeCmd struct{}

func (transcribeCmd) Name() string { return "transcribe" }
func (transcribeCmd) Description() string {
	return "Распознать аудиофайл; с --note сохранить текст заметкой"
}
func (transcribeCmd) Usage() string { return "transcribe [--note] <file>" }

func (transcribeCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	asNote := fs.Bool("note", false, "сохранить результат как заметку")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return ErrUsage
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if cfg.AudioMaxSizeMB > 0 {
		if fi, err := f.Stat(); err == nil && fi.Size() > int64(cfg.AudioMaxSizeMB)<<20 {
			return fmt.Errorf("file is larger than %d MB", cfg.AudioMaxSizeMB)
		}
	}

	fmt.Fprintln(Out, "→ Распознавание…")
	text, err := bootstrap.Open(cfg, Logger).Client.Transcribe(ctx, path, f)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty transcription")
	}
	fmt.Fprintln(Out, text)
	if !*asNote {
		return nil
	}

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Teardown()
	rec, err := service.NewRecordService(sess.Store).Add(service.NewRecord{
		Kind:        record.KindNote,
		Title:       noteTitle(text),
		Description: text,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(Out, "Created:")
	printRecordDetails(rec)
	pushNow(ctx, sess)
	return nil
}

// noteTitle — первая строка текста, обрезанная по границе руны.
func noteTitle(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	r := []rune(strings.TrimSpace(line))
	if len(r) > titleLimit {
		return string(r[:titleLimit]) + "…"
	}
	return string(r)
}

func init() { RegisterCmd(transcribeCmd{}) }
