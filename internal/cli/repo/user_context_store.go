package repo

import "time"

// UserContextStore абстракция для хранения контекста пользователя (последний логин, время pull).
type UserContextStore interface {
	SaveLogin(login string) error
	LoadLogin() (string, error)
	ClearLogin() error
	SaveLastPullAt(login string, at time.Time) error
	LoadLastPullAt(login string) (time.Time, error)
}
