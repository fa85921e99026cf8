package handler

import (
	"context"

	"github.com/hitoshi/habitvote/internal/model"
	"github.com/hitoshi/habitvote/internal/vote"
)

// VoteServiceAdapter は vote.Ledger を VoteServiceInterface に適合させるアダプタ。
type VoteServiceAdapter struct {
	ledger *vote.Ledger
}

// NewVoteServiceAdapter はVoteServiceAdapterを生成する。
func NewVoteServiceAdapter(ledger *vote.Ledger) *VoteServiceAdapter {
	return &VoteServiceAdapter{ledger: ledger}
}

var _ VoteServiceInterface = (*VoteServiceAdapter)(nil)

// CreateVote は投票を記録しhandlerレスポンス型で返す。
func (a *VoteServiceAdapter) CreateVote(ctx context.Context, userID int64, req createVoteRequest) (*voteMutationResponse, error) {
	res, err := a.ledger.Create(ctx, userID, vote.CreateInput{
		ScopeID: req.ScopeID,
		Date:    req.Date,
		Notes:   req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return toVoteMutationResponse(res), nil
}

// ListVotes は投票一覧をhandlerレスポンス型で返す。
func (a *VoteServiceAdapter) ListVotes(ctx context.Context, userID int64, query listVotesQuery) ([]voteResponse, error) {
	votes, err := a.ledger.List(ctx, userID, vote.ListInput{
		ScopeID:   query.ScopeID,
		StartDate: query.StartDate,
		EndDate:   query.EndDate,
	})
	if err != nil {
		return nil, err
	}

	results := make([]voteResponse, len(votes))
	for i, v := range votes {
		results[i] = toVoteResponse(v)
	}
	return results, nil
}

// GetStats は統計をhandlerレスポンス型で返す。
func (a *VoteServiceAdapter) GetStats(ctx context.Context, userID int64, scopeID *int64) (*statsResponse, error) {
	stats, err := a.ledger.Stats(ctx, userID, scopeID)
	if err != nil {
		return nil, err
	}
	resp := toStatsResponse(stats)
	return &resp, nil
}

// UpdateVote は投票を更新しhandlerレスポンス型で返す。
func (a *VoteServiceAdapter) UpdateVote(ctx context.Context, userID, voteID int64, req updateVoteRequest) (*voteMutationResponse, error) {
	res, err := a.ledger.Update(ctx, userID, voteID, vote.UpdateInput{
		Date:  req.Date,
		Notes: req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return toVoteMutationResponse(res), nil
}

// DeleteVote は投票を削除しhandlerレスポンス型で返す。
func (a *VoteServiceAdapter) DeleteVote(ctx context.Context, userID, voteID int64) (*deleteVoteResponse, error) {
	res, err := a.ledger.Delete(ctx, userID, voteID)
	if err != nil {
		return nil, err
	}
	return &deleteVoteResponse{
		DeletedVoteID: res.DeletedVoteID,
		Stats:         toStatsResponse(res.Stats),
	}, nil
}

// toVoteResponse はmodel.Voteをhandlerのレスポンス型に変換する。
func toVoteResponse(v *model.Vote) voteResponse {
	return voteResponse{
		ID:        v.ID,
		ScopeID:   v.ScopeID,
		Date:      v.Date.Format("2006-01-02"),
		Notes:     v.Notes,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func toStatsResponse(s model.Stats) statsResponse {
	return statsResponse{
		Total:     s.Total,
		ThisMonth: s.ThisMonth,
		Streak:    s.Streak,
	}
}

func toVoteMutationResponse(res *vote.Result) *voteMutationResponse {
	return &voteMutationResponse{
		Vote:  toVoteResponse(res.Vote),
		Stats: toStatsResponse(res.Stats),
	}
}
