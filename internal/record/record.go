// Package record описывает доменную запись (задача или заметка), её валидацию
// и чистые функции группировки/сортировки для отображения.
package record

import (
	"slices"
	"time"
)

// Kind — тип записи.
type Kind string

const (
	KindTask Kind = "task"
	KindNote Kind = "note"
)

const (
	// DateLayout — формат календарной даты startDate.
	DateLayout = "2006-01-02"
	// TimeLayout — формат времени суток startTime (всегда с ведущим нулём).
	TimeLayout = "15:04"
)

// Attachment — вложение записи.
type Attachment struct {
	ID   string `json:"id"`
	URI  string `json:"uri"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Subtask — подзадача.
type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Record — задача или заметка. Для заметок Description хранит content,
// а Completed — признак isPinned.
type Record struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"kind"`
	OwnerID     string       `json:"ownerId,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Completed   bool         `json:"completed"`
	StartDate   *string      `json:"startDate"`
	StartTime   *string      `json:"startTime"`
	Attachments []Attachment `json:"attachments"`
	Subtasks    []Subtask    `json:"subtasks"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Clone возвращает глубокую копию записи: срезы и указатели не разделяются с оригиналом.
func (r Record) Clone() Record {
	out := r
	if r.StartDate != nil {
		d := *r.StartDate
		out.StartDate = &d
	}
	if r.StartTime != nil {
		t := *r.StartTime
		out.StartTime = &t
	}
	out.Attachments = slices.Clone(r.Attachments)
	out.Subtasks = slices.Clone(r.Subtasks)
	return out
}

// Optional — поле частичного обновления, которое можно как задать, так и сбросить в null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Partial — частичное обновление записи: nil-поля не трогаются.
type Partial struct {
	Kind        *Kind
	Title       *string
	Description *string
	Completed   *bool
	StartDate   Optional[string]
	StartTime   Optional[string]
	Attachments *[]Attachment
	Subtasks    *[]Subtask
}

// IsEmpty сообщает, что обновление не затрагивает ни одного поля.
func (p Partial) IsEmpty() bool {
	return p.Kind == nil && p.Title == nil && p.Description == nil && p.Completed == nil &&
		!p.StartDate.Set && !p.StartTime.Set && p.Attachments == nil && p.Subtasks == nil
}

// Apply возвращает копию r с применёнными полями. UpdatedAt не меняется —
// это ответственность хранилища.
func (p Partial) Apply(r Record) Record {
	out := r.Clone()
	if p.Kind != nil {
		out.Kind = *p.Kind
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.StartDate.Set {
		out.StartDate = cloneString(p.StartDate.Value)
	}
	if p.StartTime.Set {
		out.StartTime = cloneString(p.StartTime.Value)
	}
	if p.Attachments != nil {
		out.Attachments = normalizeSlice(slices.Clone(*p.Attachments))
	}
	if p.Subtasks != nil {
		out.Subtasks = normalizeSlice(slices.Clone(*p.Subtasks))
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// normalizeSlice приводит пустой срез к nil, чтобы повторная валидация давала тот же результат.
func normalizeSlice[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
