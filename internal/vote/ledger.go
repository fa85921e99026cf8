package vote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/habitvote/internal/metrics"
	"github.com/hitoshi/habitvote/internal/model"
	"github.com/hitoshi/habitvote/internal/repository"
	"github.com/hitoshi/habitvote/internal/security"
)

// DefaultNotesMaxLength はメモの最大文字数の既定値。
const DefaultNotesMaxLength = 1000

// CreateInput は投票作成の入力。nilの項目は省略を表す。
type CreateInput struct {
	ScopeID *int64
	Date    *string
	Notes   *string
}

// ListInput は投票一覧取得の入力。日付範囲は両端を含む。
type ListInput struct {
	ScopeID   *int64
	StartDate *string
	EndDate   *string
}

// UpdateInput は投票更新の入力。nilの項目は変更しない。
// Notesに空文字を指定するとメモを削除する。
type UpdateInput struct {
	Date  *string
	Notes *string
}

// Result は変更系操作の結果。投票と、変更後に再計算した統計を持つ。
type Result struct {
	Vote  *model.Vote
	Stats model.Stats
}

// DeleteResult は削除操作の結果。統計は削除後の状態から計算される。
type DeleteResult struct {
	DeletedVoteID int64
	Stats         model.Stats
}

// LedgerDeps はLedgerの依存関係。
type LedgerDeps struct {
	Votes          repository.VoteRepository
	Guard          *Guard
	Stats          *StatsAggregator
	Markup         security.MarkupDetectorService
	Clock          Clock
	Calendar       Calendar
	NotesMaxLength int
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
}

// Ledger は投票の作成・一覧・更新・削除を提供する。
// 変更系の操作はすべてGuardで認可してからストアを変更し、
// 変更後にStatsAggregatorで統計を再計算して返す。
type Ledger struct {
	votes          repository.VoteRepository
	guard          *Guard
	stats          *StatsAggregator
	markup         security.MarkupDetectorService
	clock          Clock
	calendar       Calendar
	notesMaxLength int
	logger         *slog.Logger
	metrics        metrics.MetricsCollector
}

// NewLedger はLedgerを生成する。
// Clock, Logger, Metrics, NotesMaxLengthが未指定の場合は既定値を使用する。
func NewLedger(deps LedgerDeps) *Ledger {
	l := &Ledger{
		votes:          deps.Votes,
		guard:          deps.Guard,
		stats:          deps.Stats,
		markup:         deps.Markup,
		clock:          deps.Clock,
		calendar:       deps.Calendar,
		notesMaxLength: deps.NotesMaxLength,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
	}
	if l.clock == nil {
		l.clock = RealClock{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.metrics == nil {
		l.metrics = metrics.NopCollector{}
	}
	if l.notesMaxLength <= 0 {
		l.notesMaxLength = DefaultNotesMaxLength
	}
	return l
}

// Create は投票を記録し、記録後の統計とともに返す。
// 入力の検証はストアへのアクセス前に行う。
// 日付が省略された場合は現在の暦日を使用する。
func (l *Ledger) Create(ctx context.Context, callerID int64, in CreateInput) (*Result, error) {
	var date *time.Time
	if in.Date != nil {
		d, err := l.parseDate("date", *in.Date)
		if err != nil {
			return nil, err
		}
		date = &d
	}

	notes, err := l.prepareNotes(in.Notes)
	if err != nil {
		return nil, err
	}

	scopeID, err := l.guard.ResolveScope(ctx, callerID, in.ScopeID)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	if date == nil {
		today := l.calendar.Day(now)
		date = &today
	}

	vote, err := l.votes.Insert(ctx, scopeID, *date, notes, now)
	if err != nil {
		return nil, fmt.Errorf("投票の記録に失敗しました: %w", err)
	}

	stats, err := l.stats.Compute(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	l.metrics.RecordVoteMutation(metrics.OperationCreate)
	l.logger.Info("投票を記録しました",
		slog.Int64("vote_id", vote.ID),
		slog.Int64("scope_id", scopeID),
		slog.Int64("user_id", callerID),
		slog.String("vote_date", vote.Date.Format(dateLayout)),
	)

	return &Result{Vote: vote, Stats: stats}, nil
}

// List はidentityの投票一覧を日付降順・作成日時降順で返す。統計は計算しない。
func (l *Ledger) List(ctx context.Context, callerID int64, in ListInput) ([]*model.Vote, error) {
	var dateRange model.DateRange
	if in.StartDate != nil {
		d, err := l.parseDate("startDate", *in.StartDate)
		if err != nil {
			return nil, err
		}
		dateRange.Start = &d
	}
	if in.EndDate != nil {
		d, err := l.parseDate("endDate", *in.EndDate)
		if err != nil {
			return nil, err
		}
		dateRange.End = &d
	}

	scopeID, err := l.guard.ResolveScope(ctx, callerID, in.ScopeID)
	if err != nil {
		return nil, err
	}

	votes, err := l.votes.ListByScope(ctx, scopeID, dateRange)
	if err != nil {
		return nil, fmt.Errorf("投票一覧の取得に失敗しました: %w", err)
	}

	return votes, nil
}

// Update は投票の日付・メモを部分更新し、更新後の統計とともに返す。
// 認可は呼び出し側の指定ではなく、投票が記録されているidentityに対して行う。
// 投票が存在しない場合と他ユーザーの投票の場合は同じVOTE_NOT_FOUNDエラーを返す。
func (l *Ledger) Update(ctx context.Context, callerID, voteID int64, in UpdateInput) (*Result, error) {
	var patch model.VotePatch
	if in.Date != nil {
		d, err := l.parseDate("date", *in.Date)
		if err != nil {
			return nil, err
		}
		patch.Date = &d
	}

	notes, err := l.prepareNotes(in.Notes)
	if err != nil {
		return nil, err
	}
	patch.Notes = notes

	current, err := l.loadOwnedVote(ctx, callerID, voteID)
	if err != nil {
		return nil, err
	}

	updated := current
	if !patch.IsEmpty() {
		updated, err = l.votes.Update(ctx, voteID, patch, l.clock.Now())
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewVoteNotFoundError(voteID)
		}
		if err != nil {
			return nil, fmt.Errorf("投票の更新に失敗しました: %w", err)
		}
	}

	stats, err := l.stats.Compute(ctx, current.ScopeID)
	if err != nil {
		return nil, err
	}

	if !patch.IsEmpty() {
		l.metrics.RecordVoteMutation(metrics.OperationUpdate)
		l.logger.Info("投票を更新しました",
			slog.Int64("vote_id", voteID),
			slog.Int64("scope_id", current.ScopeID),
			slog.Int64("user_id", callerID),
		)
	}

	return &Result{Vote: updated, Stats: stats}, nil
}

// Delete は投票を削除し、削除後の統計とともに返す。
// 認可はUpdateと同様に投票が記録されているidentityに対して行う。
func (l *Ledger) Delete(ctx context.Context, callerID, voteID int64) (*DeleteResult, error) {
	current, err := l.loadOwnedVote(ctx, callerID, voteID)
	if err != nil {
		return nil, err
	}

	err = l.votes.Delete(ctx, voteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewVoteNotFoundError(voteID)
	}
	if err != nil {
		return nil, fmt.Errorf("投票の削除に失敗しました: %w", err)
	}

	stats, err := l.stats.Compute(ctx, current.ScopeID)
	if err != nil {
		return nil, err
	}

	l.metrics.RecordVoteMutation(metrics.OperationDelete)
	l.logger.Info("投票を削除しました",
		slog.Int64("vote_id", voteID),
		slog.Int64("scope_id", current.ScopeID),
		slog.Int64("user_id", callerID),
	)

	return &DeleteResult{DeletedVoteID: voteID, Stats: stats}, nil
}

// Stats はidentityの現在の統計を返す。
func (l *Ledger) Stats(ctx context.Context, callerID int64, scopeID *int64) (model.Stats, error) {
	resolved, err := l.guard.ResolveScope(ctx, callerID, scopeID)
	if err != nil {
		return model.Stats{}, err
	}
	return l.stats.Compute(ctx, resolved)
}

// loadOwnedVote は投票を取得し、callerIDが所有していることを確認する。
func (l *Ledger) loadOwnedVote(ctx context.Context, callerID, voteID int64) (*model.Vote, error) {
	vote, err := l.votes.FindByID(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("投票の取得に失敗しました: %w", err)
	}
	if vote == nil {
		return nil, model.NewVoteNotFoundError(voteID)
	}

	owned, err := l.guard.VerifyOwnership(ctx, callerID, vote.ScopeID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, model.NewVoteNotFoundError(voteID)
	}

	return vote, nil
}

func (l *Ledger) parseDate(field, value string) (time.Time, error) {
	d, err := l.calendar.ParseDate(value)
	if err != nil {
		return time.Time{}, model.NewInvalidDateError(field, value)
	}
	return d, nil
}

// prepareNotes はメモを検証する。受け付けたメモは書き換えずにそのまま返す。
// 空文字はメモなしとして扱われる。
func (l *Ledger) prepareNotes(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}

	if utf8.RuneCountInString(*raw) > l.notesMaxLength {
		return nil, model.NewNotesTooLongError(l.notesMaxLength)
	}
	if l.markup != nil && l.markup.ContainsMarkup(*raw) {
		return nil, model.NewInvalidNotesError()
	}

	notes := *raw
	return &notes, nil
}
