package vote

import (
	"context"
	"fmt"

	"github.com/hitoshi/habitvote/internal/model"
	"github.com/hitoshi/habitvote/internal/repository"
)

// Guard はidentityの所有確認と既定identityの解決を行う。
// 他ユーザーのデータへのアクセスを防ぐ唯一の認可境界であり、
// 変更系の操作はストアに触れる前に必ずここを通す。
type Guard struct {
	identities repository.IdentityRepository
}

// NewGuard はGuardを生成する。
func NewGuard(identities repository.IdentityRepository) *Guard {
	return &Guard{identities: identities}
}

// VerifyOwnership はscopeIDのidentityが存在し、その所有者がcallerIDである場合にtrueを返す。
func (g *Guard) VerifyOwnership(ctx context.Context, callerID, scopeID int64) (bool, error) {
	scope, err := g.identities.FindByID(ctx, scopeID)
	if err != nil {
		return false, fmt.Errorf("identityの取得に失敗しました: %w", err)
	}
	if scope == nil {
		return false, nil
	}
	return scope.UserID == callerID, nil
}

// ResolvePrimaryScope はcallerIDの主identityのIDを返す。
// 主identityがない場合はNO_PRIMARY_IDENTITYエラーを返す。
func (g *Guard) ResolvePrimaryScope(ctx context.Context, callerID int64) (int64, error) {
	scope, err := g.identities.FindPrimaryByUser(ctx, callerID)
	if err != nil {
		return 0, fmt.Errorf("主identityの取得に失敗しました: %w", err)
	}
	if scope == nil {
		return 0, model.NewNoPrimaryIdentityError()
	}
	return scope.ID, nil
}

// ResolveScope は操作対象のidentityを決定する。
// scopeIDが指定されていない場合は主identityを解決し、
// 指定されている場合は所有確認を行い、所有していなければFORBIDDEN_SCOPEエラーを返す。
// 0以下のscopeIDは未指定として扱う。
// 存在しないidentityと他ユーザーのidentityは区別しない。
func (g *Guard) ResolveScope(ctx context.Context, callerID int64, scopeID *int64) (int64, error) {
	if scopeID == nil || *scopeID <= 0 {
		return g.ResolvePrimaryScope(ctx, callerID)
	}

	owned, err := g.VerifyOwnership(ctx, callerID, *scopeID)
	if err != nil {
		return 0, err
	}
	if !owned {
		return 0, model.NewForbiddenScopeError()
	}
	return *scopeID, nil
}
