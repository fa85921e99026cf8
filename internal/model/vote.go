package model

import "time"

// Vote は1日分のチェックイン記録を表す。
// Dateは正規化済みの暦日をUTCの0時として保持する。
type Vote struct {
	ID        int64
	ScopeID   int64
	Date      time.Time
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VotePatch は投票の部分更新内容。nilのフィールドは変更しない。
type VotePatch struct {
	Date  *time.Time
	Notes *string
}

// IsEmpty は変更対象のフィールドが1つもない場合にtrueを返す。
func (p VotePatch) IsEmpty() bool {
	return p.Date == nil && p.Notes == nil
}

// DateRange は両端を含む日付範囲。nilの端は無制限として扱う。
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Stats は投票履歴から都度再計算される統計スナップショット。永続化しない。
type Stats struct {
	Total     int
	ThisMonth int
	Streak    int
}
