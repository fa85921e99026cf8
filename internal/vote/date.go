package vote

import (
	"errors"
	"strings"
	"time"

	"github.com/hitoshi/habitvote/internal/model"
)

// ErrInvalidDate は日付文字列を解釈できない場合に返される。
var ErrInvalidDate = errors.New("invalid date")

const dateLayout = "2006-01-02"

// ゾーン指定付きの日時形式。time.RFC3339は小数秒も受け付ける。
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// ゾーン指定なしの日時形式。基準タイムゾーンの時刻として解釈する。
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// Calendar は時刻を基準タイムゾーンの暦日に変換する。
// 暦日はUTCの0時を持つtime.Timeで表現し、日付の加減算をAddDateで正確に行えるようにする。
type Calendar struct {
	loc *time.Location
}

// NewCalendar はCalendarを生成する。locがnilの場合はUTCを基準とする。
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Location は基準タイムゾーンを返す。
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Day は時刻tが基準タイムゾーンで属する暦日を返す。
func (c Calendar) Day(t time.Time) time.Time {
	return civilDay(t.In(c.Location()))
}

// MonthRange はtが属する暦月の初日から末日までの範囲を返す。
func (c Calendar) MonthRange(t time.Time) model.DateRange {
	today := c.Day(t)
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return model.DateRange{Start: &first, End: &last}
}

// ParseDate はISO-8601の日付または日時文字列を暦日に変換する。
// 日付のみの場合はその日をそのまま返す。
// ゾーン指定付きの日時は基準タイムゾーンに変換してから日付を取り出す。
// ゾーン指定なしの日時は基準タイムゾーンの時刻として扱う。
func (c Calendar) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}

	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return c.Day(t), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, c.Location()); err == nil {
			return civilDay(t), nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// civilDay はtの年月日（t自身のタイムゾーン）をUTCの0時として返す。
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
