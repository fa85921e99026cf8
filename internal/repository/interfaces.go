// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/habitvote/internal/model"
)

// ErrNotFound は更新・削除対象のレコードが存在しない場合に返される。
// 単純な取得系メソッドはこのエラーを返さず、nilを返す。
var ErrNotFound = errors.New("record not found")

// IdentityRepository はidentity情報の永続化インターフェース。
// identityの作成・主identityの切り替えはidentity管理側の責務で、
// このサービスでは所有確認と主identityの解決にのみ使用する。
type IdentityRepository interface {
	// FindByID は指定IDのidentityを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.IdentityScope, error)

	// FindPrimaryByUser はユーザーの主identityを取得する。見つからない場合はnilを返す。
	FindPrimaryByUser(ctx context.Context, userID int64) (*model.IdentityScope, error)

	// Create はidentityを作成し、採番されたIDをscope.IDに設定する。
	// 開発用のseedコマンドとテストから使用する。
	Create(ctx context.Context, scope *model.IdentityScope) error
}

// VoteRepository は投票データの永続化インターフェース。
type VoteRepository interface {
	// Insert は投票を追加する。IDはストアが採番する。
	// notesがnilまたは空文字の場合はメモなしとして保存する。
	Insert(ctx context.Context, scopeID int64, date time.Time, notes *string, createdAt time.Time) (*model.Vote, error)

	// FindByID は指定IDの投票を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Vote, error)

	// ListByScope はidentityの投票一覧を返す。
	// 並び順は日付降順、同日内は作成日時降順。dateRangeは両端を含む。
	ListByScope(ctx context.Context, scopeID int64, dateRange model.DateRange) ([]*model.Vote, error)

	// Update は投票を部分更新し、更新後の投票を返す。
	// patchでnilのフィールドは変更しない。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, id int64, patch model.VotePatch, updatedAt time.Time) (*model.Vote, error)

	// Delete は指定IDの投票を物理削除する。対象がない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id int64) error

	// CountByScope はidentityの投票件数を返す。dateRangeは両端を含む。
	CountByScope(ctx context.Context, scopeID int64, dateRange model.DateRange) (int, error)

	// DistinctDatesByScope は投票のある日付を重複なしで降順に返す。
	// 同じ日に複数の投票があっても1日は1回だけ現れる。
	DistinctDatesByScope(ctx context.Context, scopeID int64) ([]time.Time, error)
}
