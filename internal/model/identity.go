// Package model はドメインモデルを定義する。
package model

import "time"

// IdentityScope は投票を記録する対象となるユーザーのidentityを表す。
// 1ユーザーは複数のidentityを持てるが、IsPrimaryがtrueのものは高々1つ。
// 作成と主identityの切り替えはidentity管理側の責務で、このサービスからは読み取り専用。
type IdentityScope struct {
	ID        int64
	UserID    int64
	IsPrimary bool
	CreatedAt time.Time
}
