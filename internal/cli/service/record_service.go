package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"Taskly/internal/cli/store"
	"Taskly/internal/record"
)

// RecordStore — операции коллекции, которыми пользуется RecordService (реализуется *store.Store).
type RecordStore interface {
	Add(r record.Record) (record.Record, error)
	Update(id string, p record.Partial) (record.Record, error)
	ToggleCompleted(id string) (record.Record, error)
	Remove(id string) error
	Get(id string) (record.Record, bool)
	List(f store.Filter) []record.Record
	Sorted(f store.Filter) []record.Record
	Days(f store.Filter) []record.Day
}

// NewRecord — данные для создания записи из CLI.
type NewRecord struct {
	Kind        record.Kind
	Title       string
	Description string
	StartDate   *string
	StartTime   *string
	Attachments []string // URI вложений
}

// Поля, которые можно менять через Edit.
const (
	FieldTitle   = "title"
	FieldDesc    = "desc"
	FieldDate    = "date"
	FieldTime    = "time"
	FieldKind    = "kind"
	FieldSubtask = "subtask"
	FieldAttach  = "attach"
)

// Clear — значение, сбрасывающее дату или время.
const Clear = "none"

// RecordService — юзкейсы работы с записями текущего пользователя.
type RecordService struct {
	store RecordStore
	newID func() string
}

// NewRecordService создаёт сервис поверх коллекции.
func NewRecordService(s RecordStore) *RecordService {
	return &RecordService{store: s, newID: uuid.NewString}
}

// Add создаёт запись с новым id.
func (s *RecordService) Add(in NewRecord) (record.Record, error) {
	r := record.Record{
		ID:          s.newID(),
		Kind:        in.Kind,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		StartDate:   in.StartDate,
		StartTime:   in.StartTime,
	}
	for _, uri := range in.Attachments {
		r.Attachments = append(r.Attachments, s.attachment(uri))
	}
	return s.store.Add(r)
}

// Edit меняет одно поле записи. values — аргументы поля:
// title/desc — текст (несколько слов склеиваются), date/time — значение или "none",
// kind — task|note, subtask — заголовок новой подзадачи, attach — URI вложения.
func (s *RecordService) Edit(id, field string, values []string) (record.Record, error) {
	cur, ok := s.store.Get(id)
	if !ok {
		return record.Record{}, store.ErrNotFound
	}
	if len(values) == 0 {
		return record.Record{}, fmt.Errorf("%s: value is required", field)
	}
	text := strings.Join(values, " ")

	var p record.Partial
	var err error
	switch strings.ToLower(field) {
	case FieldTitle:
		p, err = record.ValidatePartialMap(map[string]any{"title": text})
	case FieldDesc, "description", "content":
		p, err = record.ValidatePartialMap(map[string]any{"description": text})
	case FieldDate:
		p, err = record.ValidatePartialMap(map[string]any{"startDate": nullable(text)})
	case FieldTime:
		p, err = record.ValidatePartialMap(map[string]any{"startTime": nullable(text)})
	case FieldKind:
		p, err = record.ValidatePartialMap(map[string]any{"kind": text})
	case FieldSubtask:
		subs := append(cur.Clone().Subtasks, record.Subtask{ID: s.newID(), Title: text})
		p.Subtasks = &subs
	case FieldAttach:
		if len(values) != 1 {
			return record.Record{}, errors.New("attach: exactly one URI expected")
		}
		atts := append(cur.Clone().Attachments, s.attachment(values[0]))
		p.Attachments = &atts
	default:
		return record.Record{}, fmt.Errorf("unknown field %q", field)
	}
	if err != nil {
		return record.Record{}, err
	}
	return s.store.Update(id, p)
}

// CompleteSubtask переключает отметку подзадачи.
func (s *RecordService) CompleteSubtask(id, subtaskID string) (record.Record, error) {
	cur, ok := s.store.Get(id)
	if !ok {
		return record.Record{}, store.ErrNotFound
	}
	subs := cur.Clone().Subtasks
	found := false
	for i := range subs {
		if subs[i].ID == subtaskID {
			subs[i].Completed = !subs[i].Completed
			found = true
		}
	}
	if !found {
		return record.Record{}, fmt.Errorf("subtask %s: %w", subtaskID, store.ErrNotFound)
	}
	return s.store.Update(id, record.Partial{Subtasks: &subs})
}

// Toggle переключает completed (для заметок — isPinned).
func (s *RecordService) Toggle(id string) (record.Record, error) {
	return s.store.ToggleCompleted(id)
}

// Remove удаляет запись.
func (s *RecordService) Remove(id string) error {
	return s.store.Remove(id)
}

// Get возвращает запись по id.
func (s *RecordService) Get(id string) (record.Record, error) {
	r, ok := s.store.Get(id)
	if !ok {
		return record.Record{}, store.ErrNotFound
	}
	return r, nil
}

// List возвращает записи в порядке вставки.
func (s *RecordService) List(f store.Filter) []record.Record {
	return s.store.List(f)
}

// Sorted возвращает записи, отсортированные по дате (без даты — в конце).
func (s *RecordService) Sorted(f store.Filter) []record.Record {
	return s.store.Sorted(f)
}

// Days возвращает записи, разложенные по дням.
func (s *RecordService) Days(f store.Filter) []record.Day {
	return s.store.Days(f)
}

func (s *RecordService) attachment(uri string) record.Attachment {
	name := uri
	if i := strings.LastIndexAny(uri, "/\\"); i >= 0 && i < len(uri)-1 {
		name = uri[i+1:]
	}
	return record.Attachment{ID: s.newID(), URI: uri, Name: name}
}

func nullable(v string) any {
	if strings.EqualFold(v, Clear) {
		return nil
	}
	return v
}
