package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/habitvote/internal/model"
)

// voteColumns はvotesテーブルのSELECT対象カラム。scanVoteの引数順と一致させること。
const voteColumns = `id, user_identity_id, vote_date, notes, created_at, updated_at`

// SQLVoteRepo はRDBを使用した投票リポジトリ。
// PostgreSQLとSQLiteの両方をDialectで切り替えて扱う。
type SQLVoteRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLVoteRepo はSQLVoteRepoを生成する。
func NewSQLVoteRepo(db *sql.DB, dialect Dialect) *SQLVoteRepo {
	return &SQLVoteRepo{db: db, dialect: dialect}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVote(row rowScanner) (*model.Vote, error) {
	vote := &model.Vote{}
	var day dayScanner
	var notes sql.NullString

	if err := row.Scan(&vote.ID, &vote.ScopeID, &day, &notes, &vote.CreatedAt, &vote.UpdatedAt); err != nil {
		return nil, err
	}

	vote.Date = day.t
	if notes.Valid {
		n := notes.String
		vote.Notes = &n
	}
	vote.CreatedAt = vote.CreatedAt.UTC()
	vote.UpdatedAt = vote.UpdatedAt.UTC()

	return vote, nil
}

// Insert は投票を追加する。IDはストアが採番する。
func (r *SQLVoteRepo) Insert(ctx context.Context, scopeID int64, date time.Time, notes *string, createdAt time.Time) (*model.Vote, error) {
	createdAt = createdAt.UTC()

	var id int64
	err := r.db.QueryRowContext(ctx,
		r.dialect.rebind(`INSERT INTO votes (user_identity_id, vote_date, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		scopeID, dayParam(date), notesParam(notes), createdAt, createdAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert vote: %w", err)
	}

	vote := &model.Vote{
		ID:        id,
		ScopeID:   scopeID,
		Date:      time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if n, ok := notesParam(notes).(string); ok {
		vote.Notes = &n
	}

	return vote, nil
}

// FindByID は指定IDの投票を取得する。見つからない場合はnilを返す。
func (r *SQLVoteRepo) FindByID(ctx context.Context, id int64) (*model.Vote, error) {
	row := r.db.QueryRowContext(ctx,
		r.dialect.rebind(`SELECT `+voteColumns+` FROM votes WHERE id = ?`),
		id,
	)

	vote, err := scanVote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}

	return vote, nil
}

// scopeFilter はidentityと日付範囲によるWHERE句と引数を組み立てる。
func scopeFilter(scopeID int64, dateRange model.DateRange) (string, []any) {
	conds := []string{"user_identity_id = ?"}
	args := []any{scopeID}

	if dateRange.Start != nil {
		conds = append(conds, "vote_date >= ?")
		args = append(args, dayParam(*dateRange.Start))
	}
	if dateRange.End != nil {
		conds = append(conds, "vote_date <= ?")
		args = append(args, dayParam(*dateRange.End))
	}

	return strings.Join(conds, " AND "), args
}

// ListByScope はidentityの投票一覧を日付降順・作成日時降順で返す。
// 作成日時まで同一の場合はIDの降順で安定させる。
func (r *SQLVoteRepo) ListByScope(ctx context.Context, scopeID int64, dateRange model.DateRange) ([]*model.Vote, error) {
	where, args := scopeFilter(scopeID, dateRange)

	rows, err := r.db.QueryContext(ctx,
		r.dialect.rebind(`SELECT `+voteColumns+` FROM votes WHERE `+where+`
		 ORDER BY vote_date DESC, created_at DESC, id DESC`),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	votes := []*model.Vote{}
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}

	return votes, nil
}

// Update は投票を部分更新し、更新後の投票を返す。
// patchで指定されたカラムとupdated_atのみを更新する。
func (r *SQLVoteRepo) Update(ctx context.Context, id int64, patch model.VotePatch, updatedAt time.Time) (*model.Vote, error) {
	sets := []string{"updated_at = ?"}
	args := []any{updatedAt.UTC()}

	if patch.Date != nil {
		sets = append(sets, "vote_date = ?")
		args = append(args, dayParam(*patch.Date))
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, notesParam(patch.Notes))
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		r.dialect.rebind(`UPDATE votes SET `+strings.Join(sets, ", ")+` WHERE id = ?`),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update vote: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	vote, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if vote == nil {
		// 更新直後に別リクエストで削除された
		return nil, ErrNotFound
	}

	return vote, nil
}

// Delete は指定IDの投票を物理削除する。対象がない場合はErrNotFoundを返す。
func (r *SQLVoteRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		r.dialect.rebind(`DELETE FROM votes WHERE id = ?`),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByScope はidentityの投票件数を返す。
func (r *SQLVoteRepo) CountByScope(ctx context.Context, scopeID int64, dateRange model.DateRange) (int, error) {
	where, args := scopeFilter(scopeID, dateRange)

	var count int
	err := r.db.QueryRowContext(ctx,
		r.dialect.rebind(`SELECT COUNT(*) FROM votes WHERE `+where),
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}

	return count, nil
}

// DistinctDatesByScope は投票のある日付を重複なしで降順に返す。
func (r *SQLVoteRepo) DistinctDatesByScope(ctx context.Context, scopeID int64) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		r.dialect.rebind(`SELECT DISTINCT vote_date FROM votes
		 WHERE user_identity_id = ?
		 ORDER BY vote_date DESC`),
		scopeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list vote dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var day dayScanner
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan vote date: %w", err)
		}
		dates = append(dates, day.t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vote dates: %w", err)
	}

	return dates, nil
}

// compile-time interface check
var _ VoteRepository = (*SQLVoteRepo)(nil)
