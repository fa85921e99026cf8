package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/habitvote/internal/database"
)

// Dialect はSQL方言の差異（プレースホルダ記法）を吸収する。
// クエリは "?" プレースホルダで記述し、実行直前にrebindで変換する。
type Dialect int

const (
	// DialectPostgres は $1, $2 ... 形式のプレースホルダを使用する。
	DialectPostgres Dialect = iota
	// DialectSQLite は ? 形式のプレースホルダを使用する。
	DialectSQLite
)

// DialectFor はドライバ名に対応するDialectを返す。
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case database.DriverPostgres:
		return DialectPostgres, nil
	case database.DriverSQLite:
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

// rebind は "?" プレースホルダを方言に合わせて変換する。
// クエリ文字列リテラル内に "?" を含めないこと。
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// dayLayout は日付カラムとの受け渡しに使う形式。
const dayLayout = "2006-01-02"

// dayParam は暦日をDATEカラムへのバインド値に変換する。
// どちらの方言でも "YYYY-MM-DD" 文字列で渡す（SQLiteでは辞書順比較が日付順と一致する）。
func dayParam(t time.Time) string {
	return t.Format(dayLayout)
}

// dayScanner はDATEカラムの値を暦日（UTCの0時）として読み取る。
// lib/pqはtime.Time、go-sqlite3は宣言型によりtime.Timeまたは文字列を返すため両方を受け付ける。
type dayScanner struct {
	t time.Time
}

// Scan はsql.Scannerを実装する。
func (d *dayScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.t = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported date value type %T", src)
	}
}

func (d *dayScanner) parse(s string) error {
	if len(s) < len(dayLayout) {
		return fmt.Errorf("invalid date value %q", s)
	}
	t, err := time.Parse(dayLayout, s[:len(dayLayout)])
	if err != nil {
		return fmt.Errorf("invalid date value %q: %w", s, err)
	}
	d.t = t
	return nil
}

// notesParam はメモをバインド値に変換する。nilまたは空文字はNULLとして保存する。
func notesParam(notes *string) any {
	if notes == nil || *notes == "" {
		return nil
	}
	return *notes
}
