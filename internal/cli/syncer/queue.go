package syncer

import (
	"cmp"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// OpKind — вид отложенной операции.
type OpKind string

const (
	OpUpsert OpKind = "upsert"
	OpDelete OpKind = "delete"
)

// Op — локальное изменение, ожидающее отправки на сервер.
type Op struct {
	Seq      int64
	Kind     OpKind
	RecordID string
	// Payload — JSON записи для upsert, пусто для delete.
	Payload json.RawMessage
	// Version — updatedAt отправляемой версии.
	Version time.Time
}

// Queue — очередь отправки (outbox). На одну запись хранится не более одной
// операции: новая операция заменяет прежнюю и получает больший Seq.
type Queue interface {
	Enqueue(op Op) (Op, error)
	// Pending возвращает операции в порядке Seq.
	Pending() ([]Op, error)
	// Ack удаляет операцию, если она не была заменена более новой.
	Ack(recordID string, seq int64) error
	Clear() error
}

// MemoryQueue — очередь в памяти (тесты и работа без офлайн-кэша).
type MemoryQueue struct {
	mu  sync.Mutex
	seq int64
	ops map[string]Op
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{ops: make(map[string]Op)}
}

func (q *MemoryQueue) Enqueue(op Op) (Op, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	op.Seq = q.seq
	q.ops[op.RecordID] = op
	return op, nil
}

func (q *MemoryQueue) Pending() ([]Op, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Op, 0, len(q.ops))
	for _, op := range q.ops {
		out = append(out, op)
	}
	slices.SortFunc(out, func(a, b Op) int { return cmp.Compare(a.Seq, b.Seq) })
	return out, nil
}

func (q *MemoryQueue) Ack(recordID string, seq int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if op, ok := q.ops[recordID]; ok && op.Seq == seq {
		delete(q.ops, recordID)
	}
	return nil
}

func (q *MemoryQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = make(map[string]Op)
	return nil
}
