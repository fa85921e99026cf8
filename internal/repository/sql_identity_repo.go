package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/habitvote/internal/model"
)

// SQLIdentityRepo はRDBを使用したidentityリポジトリ。
// PostgreSQLとSQLiteの両方をDialectで切り替えて扱う。
type SQLIdentityRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLIdentityRepo はSQLIdentityRepoを生成する。
func NewSQLIdentityRepo(db *sql.DB, dialect Dialect) *SQLIdentityRepo {
	return &SQLIdentityRepo{db: db, dialect: dialect}
}

// FindByID は指定IDのidentityを取得する。見つからない場合はnilを返す。
func (r *SQLIdentityRepo) FindByID(ctx context.Context, id int64) (*model.IdentityScope, error) {
	return r.findOne(ctx,
		`SELECT id, user_id, is_primary, created_at FROM user_identities WHERE id = ?`,
		id,
	)
}

// FindPrimaryByUser はユーザーの主identityを取得する。見つからない場合はnilを返す。
func (r *SQLIdentityRepo) FindPrimaryByUser(ctx context.Context, userID int64) (*model.IdentityScope, error) {
	return r.findOne(ctx,
		`SELECT id, user_id, is_primary, created_at
		 FROM user_identities
		 WHERE user_id = ? AND is_primary = ?
		 ORDER BY id
		 LIMIT 1`,
		userID, true,
	)
}

func (r *SQLIdentityRepo) findOne(ctx context.Context, query string, args ...any) (*model.IdentityScope, error) {
	scope := &model.IdentityScope{}
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(query), args...).
		Scan(&scope.ID, &scope.UserID, &scope.IsPrimary, &scope.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return scope, nil
}

// Create はidentityを作成し、採番されたIDをscope.IDに設定する。
// CreatedAtがゼロ値の場合は現在時刻を設定する。
func (r *SQLIdentityRepo) Create(ctx context.Context, scope *model.IdentityScope) error {
	if scope.CreatedAt.IsZero() {
		scope.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx,
		r.dialect.rebind(`INSERT INTO user_identities (user_id, is_primary, created_at)
		 VALUES (?, ?, ?)
		 RETURNING id`),
		scope.UserID, scope.IsPrimary, scope.CreatedAt.UTC(),
	).Scan(&scope.ID)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	return nil
}

// compile-time interface check
var _ IdentityRepository = (*SQLIdentityRepo)(nil)
