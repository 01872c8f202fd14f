package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"Taskly/internal/record"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseHumanDate переводит дату из командной строки в YYYY-MM-DD.
// Понимает точные даты и выражения вроде "tomorrow" или "next friday" относительно base.
func ParseHumanDate(text string, base time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty date")
	}
	if d, err := record.ParseDate(text); err == nil {
		return d, nil
	}
	res, err := dateParser.Parse(text, base)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", text, err)
	}
	if res == nil {
		return "", fmt.Errorf("unrecognized date %q", text)
	}
	return res.Time.Format(record.DateLayout), nil
}

// dateArg разбирает --date: пусто — не задано, иначе нормализованная дата.
func dateArg(text string, now time.Time) (*string, error) {
	if text == "" {
		return nil, nil
	}
	d, err := ParseHumanDate(text, now)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// clockArg разбирает --time: пусто — не задано, иначе HH:MM.
func clockArg(text string) (*string, error) {
	if text == "" {
		return nil, nil
	}
	c, err := record.ParseClock(text)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
