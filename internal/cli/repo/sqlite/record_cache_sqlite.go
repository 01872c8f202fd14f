package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"Taskly/internal/cli/repo"
	"Taskly/internal/cli/syncer"
	"Taskly/internal/record"
)

// RecordCacheSQLite — офлайн-кэш коллекции и очередь отправки в локальной БД SQLite.
// Один файл БД на пользователя.
type RecordCacheSQLite struct {
	db    *sql.DB
	login string
}

var (
	_ repo.RecordCache = (*RecordCacheSQLite)(nil)
	_ syncer.Queue     = (*RecordCacheSQLite)(nil)
)

// OpenForUser открывает (и создаёт при необходимости) файл БД для указанного логина
// в каталоге base и возвращает репозиторий. Вторым значением возвращается путь к БД.
func OpenForUser(base, login string) (*RecordCacheSQLite, string, error) {
	if login == "" {
		return nil, "", errors.New("empty login for user cache")
	}
	if base == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return nil, "", err
		}
		base = filepath.Join(cfgDir, "Taskly", "users")
	}
	dir := filepath.Join(base, filepath.Base(login))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, "", err
	}
	dbPath := filepath.Join(dir, "cache.sqlite")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, "", err
	}
	// modernc sqlite: одна запись за раз
	db.SetMaxOpenConns(1)
	return &RecordCacheSQLite{db: db, login: login}, dbPath, nil
}

// NewWithDB оборачивает уже открытое соединение.
func NewWithDB(db *sql.DB, login string) *RecordCacheSQLite {
	return &RecordCacheSQLite{db: db, login: login}
}

// Close закрывает соединение с БД.
func (r *RecordCacheSQLite) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Migrate гарантирует наличие необходимых таблиц/индексов.
func (r *RecordCacheSQLite) Migrate() error {
	_, err := r.db.Exec(initDDL)
	return err
}

// ListRecords возвращает закэшированные записи в сохранённом порядке.
func (r *RecordCacheSQLite) ListRecords() ([]record.Record, error) {
	rows, err := r.db.Query(`SELECT id, data FROM records ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []record.Record
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		rec, err := record.Validate([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("cached record %s: %w", id, err)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ReplaceAll целиком заменяет кэш снимком коллекции.
func (r *RecordCacheSQLite) ReplaceAll(records []record.Record) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return err
	}
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO records(id, position, data, updated_at) VALUES(?, ?, ?, ?)`,
			rec.ID, i, string(data), formatTime(rec.UpdatedAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertRecord сохраняет запись; новая запись добавляется в конец.
func (r *RecordCacheSQLite) UpsertRecord(rec record.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`INSERT INTO records(id, position, data, updated_at)
        VALUES(?, (SELECT COALESCE(MAX(position), -1) + 1 FROM records), ?, ?)
        ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		rec.ID, string(data), formatTime(rec.UpdatedAt))
	return err
}

// DeleteRecord удаляет запись из кэша (отсутствие записи не ошибка).
func (r *RecordCacheSQLite) DeleteRecord(id string) error {
	if id == "" {
		return errors.New("empty id")
	}
	_, err := r.db.Exec(`DELETE FROM records WHERE id = ?`, id)
	return err
}

// Enqueue ставит операцию в очередь, заменяя прежнюю операцию по той же записи.
func (r *RecordCacheSQLite) Enqueue(op syncer.Op) (syncer.Op, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return syncer.Op{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.Exec(`DELETE FROM outbox WHERE record_id = ?`, op.RecordID); err != nil {
		return syncer.Op{}, err
	}
	var payload any
	if len(op.Payload) > 0 {
		payload = string(op.Payload)
	}
	res, err := tx.Exec(`INSERT INTO outbox(record_id, kind, payload, version) VALUES(?, ?, ?, ?)`,
		op.RecordID, string(op.Kind), payload, formatTime(op.Version))
	if err != nil {
		return syncer.Op{}, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return syncer.Op{}, err
	}
	if err := tx.Commit(); err != nil {
		return syncer.Op{}, err
	}
	op.Seq = seq
	return op, nil
}

// Pending возвращает операции очереди в порядке постановки.
func (r *RecordCacheSQLite) Pending() ([]syncer.Op, error) {
	rows, err := r.db.Query(`SELECT seq, record_id, kind, IFNULL(payload, ''), version FROM outbox ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []syncer.Op
	for rows.Next() {
		var op syncer.Op
		var kind, payload, version string
		if err := rows.Scan(&op.Seq, &op.RecordID, &kind, &payload, &version); err != nil {
			return nil, err
		}
		op.Kind = syncer.OpKind(kind)
		if payload != "" {
			op.Payload = json.RawMessage(payload)
		}
		if op.Version, err = time.Parse(time.RFC3339Nano, version); err != nil {
			return nil, fmt.Errorf("outbox %s: bad version %q: %w", op.RecordID, version, err)
		}
		res = append(res, op)
	}
	return res, rows.Err()
}

// Ack удаляет операцию, если её не заменили более новой.
func (r *RecordCacheSQLite) Ack(recordID string, seq int64) error {
	_, err := r.db.Exec(`DELETE FROM outbox WHERE record_id = ? AND seq = ?`, recordID, seq)
	return err
}

// Clear очищает очередь.
func (r *RecordCacheSQLite) Clear() error {
	_, err := r.db.Exec(`DELETE FROM outbox`)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
