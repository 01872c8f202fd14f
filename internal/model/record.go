package model

import (
	"strconv"
	"time"

	"Taskly/internal/record"
)

// Record — серверная копия записи пользователя. ID выдаёт клиент,
// поэтому ключ составной: одинаковые ID у разных пользователей не пересекаются.
type Record struct {
	ID     string `gorm:"primaryKey"`
	UserID int64  `gorm:"primaryKey;autoIncrement:false;index"` // ссылка на users.id

	// Связи
	User *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Kind        string `gorm:"not null;default:task"`
	Title       string `gorm:"not null"`
	Description string
	Completed   bool `gorm:"not null;default:false"`
	StartDate   *string
	StartTime   *string

	Attachments []record.Attachment `gorm:"serializer:json"`
	Subtasks    []record.Subtask    `gorm:"serializer:json"`

	// Метки времени приходят от клиента и участвуют в разрешении конфликтов.
	CreatedAt time.Time `gorm:"autoCreateTime:false;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

// FromRecord строит серверную модель из доменной записи.
func FromRecord(userID int64, r record.Record) Record {
	r = r.Clone()
	return Record{
		ID:          r.ID,
		UserID:      userID,
		Kind:        string(r.Kind),
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		StartDate:   r.StartDate,
		StartTime:   r.StartTime,
		Attachments: r.Attachments,
		Subtasks:    r.Subtasks,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// ToRecord возвращает доменную запись; OwnerID — строковый id пользователя.
func (m Record) ToRecord() record.Record {
	out := record.Record{
		ID:          m.ID,
		Kind:        record.Kind(m.Kind),
		OwnerID:     strconv.FormatInt(m.UserID, 10),
		Title:       m.Title,
		Description: m.Description,
		Completed:   m.Completed,
		StartDate:   m.StartDate,
		StartTime:   m.StartTime,
		Attachments: m.Attachments,
		Subtasks:    m.Subtasks,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
	out = out.Clone()
	if out.Attachments == nil {
		out.Attachments = []record.Attachment{}
	}
	if out.Subtasks == nil {
		out.Subtasks = []record.Subtask{}
	}
	return out
}
