package commands

import (
	"context"
	"fmt"

	"Taskly/internal/cli/bootstrap"
)

// pushNow отправляет очередь изменений сразу после команды.
// Ошибка сети не считается ошибкой команды: изменение остаётся в очереди.
func pushNow(ctx context.Context, sess *bootstrap.Session) {
	fmt.Fprintln(Out, "→ Синхронизация с сервером...")
	if err := sess.Sync.Push(ctx); err != nil {
		fmt.Fprintf(Out, "× Ошибка отправки: %v\n", err)
		fmt.Fprintln(Out, "• Изменение сохранено локально и будет отправлено позже")
		return
	}
	fmt.Fprintln(Out, "✓ Синхронизировано")
}
