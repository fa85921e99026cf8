package vote

import "time"

// ComputeStreak は現在の連続記録日数を返す。
// datesDescは重複のない暦日を降順に並べたもの、todayは基準タイムゾーンの今日。
// 最新の記録が今日でも昨日でもなければ0を返す（当日分が未記録でも前日までの連続は維持される）。
// 最新の記録から1日ずつ遡り、最初の欠落日の手前までを数える。
func ComputeStreak(datesDesc []time.Time, today time.Time) int {
	if len(datesDesc) == 0 {
		return 0
	}

	today = civilDay(today)
	mostRecent := civilDay(datesDesc[0])
	if !mostRecent.Equal(today) && !mostRecent.Equal(today.AddDate(0, 0, -1)) {
		return 0
	}

	streak := 0
	cursor := mostRecent
	for _, d := range datesDesc {
		if !civilDay(d).Equal(cursor) {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}

	return streak
}
