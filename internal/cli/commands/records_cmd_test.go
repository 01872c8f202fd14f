package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Taskly/internal/cli/bootstrap"
	"Taskly/internal/config"
)

func run(t *testing.T, cmd Command, cfg *config.Config, args ...string) string {
	t.Helper()
	var err error
	out := withStdoutCapture(t, func() { err = cmd.Run(context.Background(), cfg, args) })
	require.NoError(t, err, out)
	return out
}

func loggedIn(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	cfg := testConfig(t, serverURL)
	run(t, loginCmd{}, cfg, "alice", "secret")
	return cfg
}

func TestRecordCommands_Flow(t *testing.T) {
	fs, ts := newFakeServer(t)
	cfg := loggedIn(t, ts.URL)

	out := run(t, addCmd{}, cfg, "--date=2024-03-01", "--time=9:30", "buy", "milk")
	assert.Contains(t, out, "Created:")
	assert.Contains(t, out, "date:  2024-03-01")
	assert.Contains(t, out, "time:  09:30")
	assert.Contains(t, out, "✓ Синхронизировано")
	milk := createdID(t, out)

	out = run(t, addCmd{}, cfg, "--note", "--desc=remember the code", "door")
	door := createdID(t, out)
	assert.Equal(t, []string{milk, door}, fs.postedIDs())

	out = run(t, listCmd{}, cfg)
	assert.Contains(t, out, "Всего: 2")
	assert.Contains(t, out, "(note)")

	out = run(t, listCmd{}, cfg, "--view=days")
	assert.True(t, strings.Index(out, "2024-03-01") < strings.Index(out, "No Date"), out)

	out = run(t, listCmd{}, cfg, "--view=date")
	assert.Contains(t, out, "09:30 [ ] buy milk")

	out = run(t, listCmd{}, cfg, "--on=2024-03-02")
	assert.Contains(t, out, "Нет записей на 2024-03-02")

	out = run(t, toggleCmd{}, cfg, milk)
	assert.Contains(t, out, "[x] buy milk")
	out = run(t, listCmd{}, cfg, "--done")
	assert.Contains(t, out, "Всего: 1")

	out = run(t, editCmd{}, cfg, milk, "title", "buy", "oat", "milk")
	assert.Contains(t, out, "title: buy oat milk")
	out = run(t, editCmd{}, cfg, milk, "subtask", "check", "price")
	assert.Contains(t, out, "subtasks: 1")
	out = run(t, editCmd{}, cfg, milk, "date", "none")
	assert.NotContains(t, out, "date:")

	out = run(t, rmCmd{}, cfg, door)
	assert.Contains(t, out, "Removed: "+door)
	assert.Equal(t, []string{door}, fs.deleted)

	out = run(t, listCmd{}, cfg, "--kind=note")
	assert.Contains(t, out, "Нет записей")
}

func TestRecordCommands_Usage(t *testing.T) {
	_, ts := newFakeServer(t)
	cfg := loggedIn(t, ts.URL)
	ctx := context.Background()

	assert.ErrorIs(t, (addCmd{}).Run(ctx, cfg, nil), ErrUsage)
	assert.ErrorIs(t, (addCmd{}).Run(ctx, cfg, []string{"--bogus", "x"}), ErrUsage)
	assert.Error(t, (addCmd{}).Run(ctx, cfg, []string{"--date=blah blah", "x"}))
	assert.Error(t, (addCmd{}).Run(ctx, cfg, []string{"--time=25:99", "x"}))
	assert.ErrorIs(t, (editCmd{}).Run(ctx, cfg, []string{"id", "title"}), ErrUsage)
	assert.ErrorIs(t, (editCmd{}).Run(ctx, cfg, []string{"id", "color", "red"}), ErrUsage)
	assert.ErrorIs(t, (editCmd{}).Run(ctx, cfg, []string{"id", "time", "10:00", "11:00"}), ErrUsage)
	assert.ErrorIs(t, (toggleCmd{}).Run(ctx, cfg, nil), ErrUsage)
	assert.ErrorIs(t, (rmCmd{}).Run(ctx, cfg, []string{"a", "b"}), ErrUsage)
	assert.ErrorIs(t, (listCmd{}).Run(ctx, cfg, []string{"--view=tree"}), ErrUsage)
	assert.ErrorIs(t, (listCmd{}).Run(ctx, cfg, []string{"--done", "--open"}), ErrUsage)
	assert.ErrorIs(t, (listCmd{}).Run(ctx, cfg, []string{"--kind=event"}), ErrUsage)

	// несуществующая запись
	var err error
	withStdoutCapture(t, func() { err = (toggleCmd{}).Run(ctx, cfg, []string{"missing"}) })
	assert.Error(t, err)
}

func TestRecordCommands_OfflineThenSync(t *testing.T) {
	fs, ts := newFakeServer(t)
	cfg := loggedIn(t, ts.URL)

	offline := *cfg
	offline.ServerURL = offlineURL(t)
	out := run(t, addCmd{}, &offline, "offline", "task")
	assert.Contains(t, out, "× Ошибка отправки")
	id := createdID(t, out)
	assert.Empty(t, fs.postedIDs())

	out = run(t, syncCmd{}, cfg)
	assert.Contains(t, out, "✓ Отправлено изменений: 1")
	assert.Contains(t, out, "Записей после синхронизации: 1")
	assert.Equal(t, []string{id}, fs.postedIDs())

	// --reset отбрасывает локальные неотправленные изменения
	out = run(t, addCmd{}, &offline, "lost", "change")
	lost := createdID(t, out)
	run(t, syncCmd{}, &offline) // ошибка сети не ошибка команды
	out = run(t, syncCmd{}, cfg, "--reset")
	assert.Contains(t, out, "Записей после синхронизации: 1")

	sess := bootstrap.Open(&offline, nil)
	require.NoError(t, sess.Resume(context.Background()))
	defer sess.Teardown()
	_, ok := sess.Store.Get(lost)
	assert.False(t, ok)
	assert.ErrorIs(t, (syncCmd{}).Run(context.Background(), cfg, []string{"extra"}), ErrUsage)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	_, ts := newFakeServer(t)
	cfg := loggedIn(t, ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var err error
	out := withStdoutCapture(t, func() {
		err = (watchCmd{}).Run(ctx, cfg, []string{"--interval=50ms"})
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Фоновая синхронизация каждые 50ms")
	assert.Contains(t, out, "Остановлено")
	assert.ErrorIs(t, (watchCmd{}).Run(context.Background(), cfg, []string{"--interval=0s"}), ErrUsage)
}

func TestTranscribe(t *testing.T) {
	fs, ts := newFakeServer(t)
	cfg := loggedIn(t, ts.URL)
	audio := filepath.Join(t.TempDir(), "memo.m4a")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF...."), 0o600))

	out := run(t, transcribeCmd{}, cfg, audio)
	assert.Contains(t, out, "call the plumber")
	assert.Empty(t, fs.postedIDs())

	out = run(t, transcribeCmd{}, cfg, "--note", audio)
	assert.Contains(t, out, "title: call the plumber")
	assert.Contains(t, out, "kind:  note")
	assert.Len(t, fs.postedIDs(), 1)

	big := filepath.Join(t.TempDir(), "big.wav")
	require.NoError(t, os.WriteFile(big, make([]byte, 2<<20), 0o600))
	var err error
	withStdoutCapture(t, func() { err = (transcribeCmd{}).Run(context.Background(), cfg, []string{big}) })
	assert.Error(t, err)
	assert.ErrorIs(t, (transcribeCmd{}).Run(context.Background(), cfg, nil), ErrUsage)
}

func TestParseHumanDate(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) // пятница

	d, err := ParseHumanDate("2024-05-02", base)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", d)

	d, err = ParseHumanDate("tomorrow", base)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", d)

	_, err = ParseHumanDate("whenever", base)
	assert.Error(t, err)
	_, err = ParseHumanDate("  ", base)
	assert.Error(t, err)
}

func TestNoteTitle(t *testing.T) {
	assert.Equal(t, "first", noteTitle("first\nsecond"))
	long := strings.Repeat("я", titleLimit+5)
	assert.Equal(t, strings.Repeat("я", titleLimit)+"…", noteTitle(long))
}
