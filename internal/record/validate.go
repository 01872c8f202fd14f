package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

// Validate разбирает недоверенный JSON (ответ сервера или ввод пользователя) в Record.
// Возвращает *ValidationError, если обязательные поля отсутствуют, тип поля не совпадает,
// дата/время не разбираются или URI вложения некорректен.
func Validate(raw []byte) (Record, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return Record{}, err
	}
	return ValidateMap(m)
}

// ValidatePartial применяет те же правила только к присутствующим полям.
// Отсутствующие поля не требуются.
func ValidatePartial(raw []byte) (Partial, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return Partial{}, err
	}
	return ValidatePartialMap(m)
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalid("record", "malformed JSON: "+err.Error())
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalid("record", "must be a JSON object")
	}
	return m, nil
}

// ValidateMap — вариант Validate для уже декодированного объекта.
func ValidateMap(m map[string]any) (Record, error) {
	var r Record
	var err error

	if r.ID, err = requiredString(m, "id"); err != nil {
		return Record{}, err
	}
	if r.Title, err = requiredString(m, "title"); err != nil {
		return Record{}, err
	}
	kind, _, err := optionalString(m, "kind")
	if err != nil {
		return Record{}, err
	}
	if r.Kind, err = parseKind(kind); err != nil {
		return Record{}, err
	}
	if r.OwnerID, _, err = optionalString(m, "ownerId"); err != nil {
		return Record{}, err
	}
	desc, ok, err := aliasedString(m, "description", "content")
	if err != nil {
		return Record{}, err
	}
	if ok {
		r.Description = desc
	}
	done, ok, err := aliasedBool(m, "completed", "isPinned")
	if err != nil {
		return Record{}, err
	}
	if ok {
		r.Completed = done
	}
	if r.StartDate, err = nullableDate(m, "startDate"); err != nil {
		return Record{}, err
	}
	if r.StartTime, err = nullableClock(m, "startTime"); err != nil {
		return Record{}, err
	}
	if r.Attachments, err = attachments(m["attachments"]); err != nil {
		return Record{}, err
	}
	if r.Subtasks, err = subtasks(m["subtasks"]); err != nil {
		return Record{}, err
	}
	if r.CreatedAt, err = timestamp(m, "createdAt"); err != nil {
		return Record{}, err
	}
	if r.UpdatedAt, err = timestamp(m, "updatedAt"); err != nil {
		return Record{}, err
	}
	return r, nil
}

// ValidatePartialMap — вариант ValidatePartial для уже декодированного объекта.
func ValidatePartialMap(m map[string]any) (Partial, error) {
	var p Partial
	for _, ro := range []string{"id", "ownerId", "createdAt", "updatedAt"} {
		if _, ok := m[ro]; ok {
			return Partial{}, invalid(ro, "is read-only")
		}
	}
	if _, ok := m["title"]; ok {
		title, err := requiredString(m, "title")
		if err != nil {
			return Partial{}, err
		}
		p.Title = &title
	}
	if kind, ok, err := optionalString(m, "kind"); err != nil {
		return Partial{}, err
	} else if ok {
		k, err := parseKind(kind)
		if err != nil {
			return Partial{}, err
		}
		p.Kind = &k
	}
	if desc, ok, err := aliasedString(m, "description", "content"); err != nil {
		return Partial{}, err
	} else if ok {
		p.Description = &desc
	}
	if done, ok, err := aliasedBool(m, "completed", "isPinned"); err != nil {
		return Partial{}, err
	} else if ok {
		p.Completed = &done
	}
	if _, ok := m["startDate"]; ok {
		d, err := nullableDate(m, "startDate")
		if err != nil {
			return Partial{}, err
		}
		p.StartDate = Optional[string]{Set: true, Value: d}
	}
	if _, ok := m["startTime"]; ok {
		t, err := nullableClock(m, "startTime")
		if err != nil {
			return Partial{}, err
		}
		p.StartTime = Optional[string]{Set: true, Value: t}
	}
	if v, ok := m["attachments"]; ok {
		atts, err := attachments(v)
		if err != nil {
			return Partial{}, err
		}
		p.Attachments = &atts
	}
	if v, ok := m["subtasks"]; ok {
		subs, err := subtasks(v)
		if err != nil {
			return Partial{}, err
		}
		p.Subtasks = &subs
	}
	return p, nil
}

// Validate перепроверяет уже типизированную запись (например, собранную в коде).
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return invalid("id", "is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return invalid("title", "is required")
	}
	if _, err := parseKind(string(r.Kind)); err != nil {
		return err
	}
	if r.StartDate != nil {
		if _, err := time.Parse(DateLayout, *r.StartDate); err != nil {
			return invalid("startDate", fmt.Sprintf("%q is not a calendar date (YYYY-MM-DD)", *r.StartDate))
		}
	}
	if r.StartTime != nil {
		if t, err := time.Parse(TimeLayout, *r.StartTime); err != nil || t.Format(TimeLayout) != *r.StartTime {
			return invalid("startTime", fmt.Sprintf("%q is not a zero-padded HH:MM time", *r.StartTime))
		}
	}
	for i, a := range r.Attachments {
		field := fmt.Sprintf("attachments[%d]", i)
		if a.ID == "" {
			return invalid(field+".id", "is required")
		}
		if err := checkURI(field+".uri", a.URI); err != nil {
			return err
		}
		if a.Size < 0 {
			return invalid(field+".size", "must not be negative")
		}
	}
	for i, s := range r.Subtasks {
		field := fmt.Sprintf("subtasks[%d]", i)
		if s.ID == "" {
			return invalid(field+".id", "is required")
		}
		if strings.TrimSpace(s.Title) == "" {
			return invalid(field+".title", "is required")
		}
	}
	return nil
}

func parseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindTask:
		return KindTask, nil
	case KindNote:
		return KindNote, nil
	default:
		return "", invalid("kind", fmt.Sprintf("unknown kind %q (expected task|note)", s))
	}
}

func requiredString(m map[string]any, field string) (string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return "", invalid(field, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(field, fmt.Sprintf("must be a string, got %s", typeName(v)))
	}
	if strings.TrimSpace(s) == "" {
		return "", invalid(field, "must not be empty")
	}
	return s, nil
}

func optionalString(m map[string]any, field string) (string, bool, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, invalid(field, fmt.Sprintf("must be a string, got %s", typeName(v)))
	}
	return s, true, nil
}

func optionalBool(m map[string]any, field string) (bool, bool, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, invalid(field, fmt.Sprintf("must be a boolean, got %s", typeName(v)))
	}
	return b, true, nil
}

// aliasedString читает поле записи задачи и его синоним у заметок (description/content).
func aliasedString(m map[string]any, field, alias string) (string, bool, error) {
	v, ok, err := optionalString(m, field)
	if err != nil {
		return "", false, err
	}
	a, aok, err := optionalString(m, alias)
	if err != nil {
		return "", false, err
	}
	if ok && aok && v != a {
		return "", false, invalid(alias, "conflicts with "+field)
	}
	if ok {
		return v, true, nil
	}
	return a, aok, nil
}

func aliasedBool(m map[string]any, field, alias string) (bool, bool, error) {
	v, ok, err := optionalBool(m, field)
	if err != nil {
		return false, false, err
	}
	a, aok, err := optionalBool(m, alias)
	if err != nil {
		return false, false, err
	}
	if ok && aok && v != a {
		return false, false, invalid(alias, "conflicts with "+field)
	}
	if ok {
		return v, true, nil
	}
	return a, aok, nil
}

// nullableDate принимает YYYY-MM-DD либо полный RFC3339 и сохраняет календарную дату.
func nullableDate(m map[string]any, field string) (*string, error) {
	s, ok, err := optionalString(m, field)
	if err != nil || !ok {
		return nil, err
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil, invalid(field, err.Error())
	}
	return &d, nil
}

func nullableClock(m map[string]any, field string) (*string, error) {
	s, ok, err := optionalString(m, field)
	if err != nil || !ok {
		return nil, err
	}
	c, err := ParseClock(s)
	if err != nil {
		return nil, invalid(field, err.Error())
	}
	return &c, nil
}

// ParseDate нормализует дату к виду YYYY-MM-DD.
func ParseDate(s string) (string, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Format(DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(DateLayout), nil
	}
	return "", fmt.Errorf("%q is not a calendar date", s)
}

// ParseClock нормализует время суток к виду HH:MM (секунды отбрасываются).
func ParseClock(s string) (string, error) {
	for _, layout := range []string{"15:04:05", TimeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", fmt.Errorf("%q is not a time of day", s)
}

func timestamp(m map[string]any, field string) (time.Time, error) {
	s, ok, err := optionalString(m, field)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, invalid(field, fmt.Sprintf("%q is not an RFC3339 timestamp", s))
	}
	return t.UTC(), nil
}

func attachments(v any) ([]Attachment, error) {
	items, err := objectList("attachments", v)
	if err != nil {
		return nil, err
	}
	var out []Attachment
	for i, obj := range items {
		field := fmt.Sprintf("attachments[%d]", i)
		var a Attachment
		if a.ID, err = requiredString(obj, "id"); err != nil {
			return nil, prefixed(field, err)
		}
		uri, err := requiredString(obj, "uri")
		if err != nil {
			return nil, prefixed(field, err)
		}
		if err := checkURI(field+".uri", uri); err != nil {
			return nil, err
		}
		a.URI = uri
		if a.Type, _, err = optionalString(obj, "type"); err != nil {
			return nil, prefixed(field, err)
		}
		if a.Name, _, err = optionalString(obj, "name"); err != nil {
			return nil, prefixed(field, err)
		}
		if a.Size, err = size(obj); err != nil {
			return nil, prefixed(field, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func subtasks(v any) ([]Subtask, error) {
	items, err := objectList("subtasks", v)
	if err != nil {
		return nil, err
	}
	var out []Subtask
	for i, obj := range items {
		field := fmt.Sprintf("subtasks[%d]", i)
		var s Subtask
		if s.ID, err = requiredString(obj, "id"); err != nil {
			return nil, prefixed(field, err)
		}
		if s.Title, err = requiredString(obj, "title"); err != nil {
			return nil, prefixed(field, err)
		}
		if s.Completed, _, err = optionalBool(obj, "completed"); err != nil {
			return nil, prefixed(field, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func objectList(field string, v any) ([]map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, invalid(field, fmt.Sprintf("must be an array, got %s", typeName(v)))
	}
	out := make([]map[string]any, 0, len(list))
	for i, it := range list {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, invalid(fmt.Sprintf("%s[%d]", field, i), "must be an object")
		}
		out = append(out, obj)
	}
	return out, nil
}

func size(obj map[string]any) (int64, error) {
	v, ok := obj["size"]
	if !ok || v == nil {
		return 0, nil
	}
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, invalid("size", fmt.Sprintf("%s is not an integer", x))
		}
		n = i
	case float64:
		if x != math.Trunc(x) {
			return 0, invalid("size", fmt.Sprintf("%v is not an integer", x))
		}
		n = int64(x)
	case int:
		n = int64(x)
	case int64:
		n = x
	default:
		return 0, invalid("size", fmt.Sprintf("must be a number, got %s", typeName(v)))
	}
	if n < 0 {
		return 0, invalid("size", "must not be negative")
	}
	return n, nil
}

// checkURI требует абсолютный URI со схемой (https://, file://, content:// и т.п.).
func checkURI(field, s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return invalid(field, fmt.Sprintf("%q is not a valid URI: %v", s, err))
	}
	if u.Scheme == "" {
		return invalid(field, fmt.Sprintf("%q has no scheme", s))
	}
	if u.Host == "" && u.Path == "" && u.Opaque == "" {
		return invalid(field, fmt.Sprintf("%q has nothing after the scheme", s))
	}
	return nil
}

func prefixed(prefix string, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		return invalid(prefix+"."+ve.Field, ve.Reason)
	}
	return err
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
