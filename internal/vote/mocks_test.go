package vote

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/habitvote/internal/model"
)

// --- モック ---

type mockIdentityRepo struct {
	findByIDFn          func(ctx context.Context, id int64) (*model.IdentityScope, error)
	findPrimaryByUserFn func(ctx context.Context, userID int64) (*model.IdentityScope, error)
	calls               int
}

func (m *mockIdentityRepo) FindByID(ctx context.Context, id int64) (*model.IdentityScope, error) {
	m.calls++
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockIdentityRepo) FindPrimaryByUser(ctx context.Context, userID int64) (*model.IdentityScope, error) {
	m.calls++
	if m.findPrimaryByUserFn != nil {
		return m.findPrimaryByUserFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockIdentityRepo) Create(ctx context.Context, scope *model.IdentityScope) error {
	return errors.New("not implemented")
}

type mockVoteRepo struct {
	countFn         func(ctx context.Context, scopeID int64, dateRange model.DateRange) (int, error)
	distinctDatesFn func(ctx context.Context, scopeID int64) ([]time.Time, error)
	calls           int
}

func (m *mockVoteRepo) Insert(ctx context.Context, scopeID int64, date time.Time, notes *string, createdAt time.Time) (*model.Vote, error) {
	m.calls++
	return &model.Vote{ID: 1, ScopeID: scopeID, Date: date, Notes: notes, CreatedAt: createdAt, UpdatedAt: createdAt}, nil
}
func (m *mockVoteRepo) FindByID(ctx context.Context, id int64) (*model.Vote, error) {
	m.calls++
	return nil, nil
}
func (m *mockVoteRepo) ListByScope(ctx context.Context, scopeID int64, dateRange model.DateRange) ([]*model.Vote, error) {
	m.calls++
	return []*model.Vote{}, nil
}
func (m *mockVoteRepo) Update(ctx context.Context, id int64, patch model.VotePatch, updatedAt time.Time) (*model.Vote, error) {
	m.calls++
	return nil, nil
}
func (m *mockVoteRepo) Delete(ctx context.Context, id int64) error {
	m.calls++
	return nil
}
func (m *mockVoteRepo) CountByScope(ctx context.Context, scopeID int64, dateRange model.DateRange) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, scopeID, dateRange)
	}
	return 0, nil
}
func (m *mockVoteRepo) DistinctDatesByScope(ctx context.Context, scopeID int64) ([]time.Time, error) {
	if m.distinctDatesFn != nil {
		return m.distinctDatesFn(ctx, scopeID)
	}
	return nil, nil
}
