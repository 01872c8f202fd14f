package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrRejected — сервер отверг запись как некорректную (4xx). Повтор бессмыслен.
	ErrRejected = errors.New("record rejected by remote")
	// ErrRemoteNotFound — записи нет на сервере (для удаления считается успехом).
	ErrRemoteNotFound = errors.New("record not found on remote")
)

// RemoteUnavailableError — сеть, таймаут или 5xx при обращении к серверу.
// Восстановимая ошибка: локальное состояние не трогается, операция будет повторена.
type RemoteUnavailableError struct {
	Op  string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote unavailable during %s: %v", e.Op, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// ConflictError — сервер хранит более новую версию записи и вернул её.
type ConflictError struct {
	RecordID string
	Remote   json.RawMessage
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on record %s: remote copy is newer", e.RecordID)
}
