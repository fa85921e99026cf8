// Package vote は投票台帳と連続記録（streak）計算のドメインロジックを提供する。
package vote

import "time"

// Clock は現在時刻の取得を抽象化する。テストでは固定時刻を注入する。
type Clock interface {
	Now() time.Time
}

// RealClock は実際の現在時刻を返す。
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
