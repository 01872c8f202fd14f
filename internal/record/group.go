package record

import (
	"slices"
	"strings"
	"time"
)

// NoDateBucket — зарезервированная группа для записей без даты (или с некорректной датой).
// Всегда располагается последней.
const NoDateBucket = "No Date"

// Day — группа записей одного календарного дня.
type Day struct {
	Date    string
	Records []Record
}

// dateKey возвращает ключ группы и признак того, что дата валидна.
func dateKey(r Record) (string, bool) {
	if r.StartDate == nil {
		return NoDateBucket, false
	}
	if _, err := time.Parse(DateLayout, *r.StartDate); err != nil {
		return NoDateBucket, false
	}
	return *r.StartDate, true
}

func clockKey(r Record) (string, bool) {
	if r.StartTime == nil {
		return "", false
	}
	if t, err := time.Parse(TimeLayout, *r.StartTime); err != nil || t.Format(TimeLayout) != *r.StartTime {
		return "", false
	}
	return *r.StartTime, true
}

// compareDates упорядочивает по startDate по возрастанию; записи без даты идут последними.
func compareDates(a, b Record) int {
	ka, okA := dateKey(a)
	kb, okB := dateKey(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	default:
		// YYYY-MM-DD: лексикографический порядок совпадает с хронологическим
		return strings.Compare(ka, kb)
	}
}

// SortByDate возвращает записи, устойчиво отсортированные по startDate.
// Записи без даты идут в конце в исходном порядке. Вход не изменяется.
func SortByDate(records []Record) []Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, compareDates)
	return out
}

// GroupByExactDate раскладывает записи по точному значению startDate.
// Внутри группы записи упорядочены по startTime; записи без времени
// сохраняют свои позиции относительно входа.
func GroupByExactDate(records []Record) map[string][]Record {
	groups := make(map[string][]Record)
	for _, r := range records {
		k, _ := dateKey(r)
		groups[k] = append(groups[k], r)
	}
	for k, list := range groups {
		groups[k] = sortByClock(list)
	}
	return groups
}

// sortByClock сортирует записи со startTime между собой, оставляя записи без времени
// на их исходных местах.
func sortByClock(list []Record) []Record {
	var slots []int
	var timed []Record
	for i, r := range list {
		if _, ok := clockKey(r); ok {
			slots = append(slots, i)
			timed = append(timed, r)
		}
	}
	slices.SortStableFunc(timed, func(a, b Record) int {
		ka, _ := clockKey(a)
		kb, _ := clockKey(b)
		return strings.Compare(ka, kb)
	})
	for i, slot := range slots {
		list[slot] = timed[i]
	}
	return list
}

// ExtractDays группирует записи по дням в хронологическом порядке.
// Группа NoDateBucket всегда последняя. Внутри дня сохраняется входной порядок.
func ExtractDays(records []Record) []Day {
	index := make(map[string]int)
	var days []Day
	for _, r := range records {
		k, _ := dateKey(r)
		i, ok := index[k]
		if !ok {
			i = len(days)
			index[k] = i
			days = append(days, Day{Date: k})
		}
		days[i].Records = append(days[i].Records, r)
	}
	slices.SortStableFunc(days, func(a, b Day) int {
		switch {
		case a.Date == b.Date:
			return 0
		case a.Date == NoDateBucket:
			return 1
		case b.Date == NoDateBucket:
			return -1
		default:
			return strings.Compare(a.Date, b.Date)
		}
	})
	return days
}

// HasTasksOnDate сообщает, есть ли запись, чья startDate совпадает с календарной
// датой day (время суток игнорируется, дата берётся в локации day).
func HasTasksOnDate(records []Record, day time.Time) bool {
	want := day.Format(DateLayout)
	for _, r := range records {
		if k, ok := dateKey(r); ok && k == want {
			return true
		}
	}
	return false
}
