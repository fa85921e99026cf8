package vote

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/habitvote/internal/metrics"
	"github.com/hitoshi/habitvote/internal/model"
	"github.com/hitoshi/habitvote/internal/repository"
)

// StatsAggregator はidentityの投票履歴から統計スナップショットを計算する。
// キャッシュは持たず、呼び出しのたびにストアの現在の状態から再計算する。
type StatsAggregator struct {
	votes    repository.VoteRepository
	clock    Clock
	calendar Calendar
	metrics  metrics.MetricsCollector
}

// NewStatsAggregator はStatsAggregatorを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewStatsAggregator(votes repository.VoteRepository, clock Clock, calendar Calendar, collector metrics.MetricsCollector) *StatsAggregator {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &StatsAggregator{
		votes:    votes,
		clock:    clock,
		calendar: calendar,
		metrics:  collector,
	}
}

// Compute はscopeIDの統計（総数・今月の件数・連続記録日数）を返す。
// 3つの読み取りは並行に発行し、いずれかが失敗した場合はスナップショット全体を失敗とする。
func (a *StatsAggregator) Compute(ctx context.Context, scopeID int64) (model.Stats, error) {
	start := time.Now()
	defer func() {
		a.metrics.RecordStatsRecompute(time.Since(start))
	}()

	now := a.clock.Now()
	monthRange := a.calendar.MonthRange(now)
	today := a.calendar.Day(now)

	var stats model.Stats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, err := a.votes.CountByScope(gctx, scopeID, model.DateRange{})
		if err != nil {
			return fmt.Errorf("投票総数の取得に失敗しました: %w", err)
		}
		stats.Total = total
		return nil
	})

	g.Go(func() error {
		thisMonth, err := a.votes.CountByScope(gctx, scopeID, monthRange)
		if err != nil {
			return fmt.Errorf("今月の投票数の取得に失敗しました: %w", err)
		}
		stats.ThisMonth = thisMonth
		return nil
	})

	g.Go(func() error {
		dates, err := a.votes.DistinctDatesByScope(gctx, scopeID)
		if err != nil {
			return fmt.Errorf("投票日の取得に失敗しました: %w", err)
		}
		stats.Streak = ComputeStreak(dates, today)
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.Stats{}, err
	}

	return stats, nil
}
