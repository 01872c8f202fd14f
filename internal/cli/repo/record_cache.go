package repo

import "Taskly/internal/record"

// RecordCache определяет порт офлайн-кэша коллекции записей пользователя.
type RecordCache interface {
	// ListRecords возвращает записи в сохранённом порядке.
	ListRecords() ([]record.Record, error)

	// ReplaceAll заменяет кэш снимком коллекции.
	ReplaceAll(records []record.Record) error

	UpsertRecord(rec record.Record) error
	DeleteRecord(id string) error
	Close() error
}
