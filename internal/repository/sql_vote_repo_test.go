package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/habitvote/internal/model"
)

type voteFixture struct {
	votes      *SQLVoteRepo
	identities *SQLIdentityRepo
	scopeID    int64
}

func newVoteFixture(t *testing.T, db *sql.DB, dialect Dialect) *voteFixture {
	t.Helper()

	identities := NewSQLIdentityRepo(db, dialect)

	scope := &model.IdentityScope{UserID: 1, IsPrimary: true}
	if err := identities.Create(context.Background(), scope); err != nil {
		t.Fatalf("failed to create identity: %v", err)
	}

	return &voteFixture{
		votes:      NewSQLVoteRepo(db, dialect),
		identities: identities,
		scopeID:    scope.ID,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

var baseTime = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func (f *voteFixture) insert(t *testing.T, date time.Time, notes *string, createdAt time.Time) *model.Vote {
	t.Helper()
	v, err := f.votes.Insert(context.Background(), f.scopeID, date, notes, createdAt)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return v
}

// 追加した投票がIDで取得でき、内容が一致すること
func TestSQLVoteRepo_InsertAndFindByID(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)

		inserted := f.insert(t, day(2024, 3, 10), strPtr("morning run"), baseTime)
		if inserted.ID == 0 {
			t.Fatal("expected ID to be assigned")
		}

		got, err := f.votes.FindByID(context.Background(), inserted.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected vote, got nil")
		}
		if got.ScopeID != f.scopeID {
			t.Errorf("ScopeID = %d, want %d", got.ScopeID, f.scopeID)
		}
		if !got.Date.Equal(day(2024, 3, 10)) {
			t.Errorf("Date = %v, want 2024-03-10", got.Date)
		}
		if got.Notes == nil || *got.Notes != "morning run" {
			t.Errorf("Notes = %v, want %q", got.Notes, "morning run")
		}
		if !got.CreatedAt.Equal(baseTime) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, baseTime)
		}
		if !got.UpdatedAt.Equal(got.CreatedAt) {
			t.Errorf("UpdatedAt = %v, want equal to CreatedAt", got.UpdatedAt)
		}
	})
}

// 空文字のメモはメモなしとして保存されること
func TestSQLVoteRepo_Insert_EmptyNotesStoredAsNull(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)

		inserted := f.insert(t, day(2024, 3, 10), strPtr(""), baseTime)
		if inserted.Notes != nil {
			t.Errorf("returned Notes = %q, want nil", *inserted.Notes)
		}

		got, err := f.votes.FindByID(context.Background(), inserted.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Notes != nil {
			t.Errorf("stored Notes = %q, want nil", *got.Notes)
		}
	})
}

// 存在しないidentityへの投票は外部キー制約で失敗すること
func TestSQLVoteRepo_Insert_UnknownScope(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)

		_, err := f.votes.Insert(context.Background(), f.scopeID+100, day(2024, 3, 10), nil, baseTime)
		if err == nil {
			t.Error("expected foreign key error")
		}
	})
}

// 存在しないIDの場合nilを返すこと
func TestSQLVoteRepo_FindByID_NotFound(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)

		got, err := f.votes.FindByID(context.Background(), 12345)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

// 一覧は日付降順、同日内は作成日時降順で返ること
func TestSQLVoteRepo_ListByScope_Order(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)

		older := f.insert(t, day(2024, 3, 8), nil, baseTime)
		sameDayFirst := f.insert(t, day(2024, 3, 10), nil, baseTime.Add(1*time.Minute))
		sameDaySecond := f.insert(t, day(2024, 3, 10), nil, baseTime.Add(2*time.Minute))
		middle := f.insert(t, day(2024, 3, 9), nil, baseTime.Add(3*time.Minute))

		got, err := f.votes.ListByScope(context.Background(), f.scopeID, model.DateRange{})
		if err != nil {
			t.Fatalf("ListByScope failed: %v", err)
		}

		want := []int64{sameDaySecond.ID, sameDayFirst.ID, middle.ID, older.ID}
		if len(got) != len(want) {
			t.Fatalf("len = %d, want %d", len(got), len(want))
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, id)
			}
		}
	})
}

// 日付範囲は両端を含むこと
func TestSQLVoteRepo_ListByScope_RangeInclusive(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)

		f.insert(t, day(2024, 3, 1), nil, baseTime)
		f.insert(t, day(2024, 3, 5), nil, baseTime)
		f.insert(t, day(2024, 3, 10), nil, baseTime)
		f.insert(t, day(2024, 3, 11), nil, baseTime)

		tests := []struct {
			name      string
			dateRange model.DateRange
			wantLen   int
		}{
			{"no bounds", model.DateRange{}, 4},
			{"both bounds", model.DateRange{Start: timePtr(day(2024, 3, 5)), End: timePtr(day(2024, 3, 10))}, 2},
			{"start only", model.DateRange{Start: timePtr(day(2024, 3, 10))}, 2},
			{"end only", model.DateRange{End: timePtr(day(2024, 3, 1))}, 1},
			{"single day", model.DateRange{Start: timePtr(day(2024, 3, 5)), End: timePtr(day(2024, 3, 5))}, 1},
			{"empty", model.DateRange{Start: timePtr(day(2024, 4, 1))}, 0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := f.votes.ListByScope(context.Background(), f.scopeID, tt.dateRange)
				if err != nil {
					t.Fatalf("ListByScope failed: %v", err)
				}
				if len(got) != tt.wantLen {
					t.Errorf("len = %d, want %d", len(got), tt.wantLen)
				}

				count, err := f.votes.CountByScope(context.Background(), f.scopeID, tt.dateRange)
				if err != nil {
					t.Fatalf("CountByScope failed: %v", err)
				}
				if count != tt.wantLen {
					t.Errorf("count = %d, want %d", count, tt.wantLen)
				}
			})
		}
	})
}

// 他のidentityの投票は一覧に含まれないこと
func TestSQLVoteRepo_ListByScope_ScopeIsolation(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)
		ctx := context.Background()

		other := &model.IdentityScope{UserID: 2, IsPrimary: true}
		if err := f.identities.Create(ctx, other); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		f.insert(t, day(2024, 3, 10), nil, baseTime)
		if _, err := f.votes.Insert(ctx, other.ID, day(2024, 3, 10), nil, baseTime); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		got, err := f.votes.ListByScope(ctx, f.scopeID, model.DateRange{})
		if err != nil {
			t.Fatalf("ListByScope failed: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("len = %d, want 1", len(got))
		}
	})
}

// 投票がない場合は空スライスを返すこと
func TestSQLVoteRepo_ListByScope_Empty(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)

		got, err := f.votes.ListByScope(context.Background(), f.scopeID, model.DateRange{})
		if err != nil {
			t.Fatalf("ListByScope failed: %v", err)
		}
		if got == nil {
			t.Error("expected empty slice, got nil")
		}
		if len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
	})
}

// 部分更新で指定したフィールドのみが変わること
func TestSQLVoteRepo_Update_Partial(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)
		ctx := context.Background()

		v := f.insert(t, day(2024, 3, 10), strPtr("keep me"), baseTime)
		later := baseTime.Add(time.Hour)

		got, err := f.votes.Update(ctx, v.ID, model.VotePatch{Date: timePtr(day(2024, 3, 9))}, later)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if !got.Date.Equal(day(2024, 3, 9)) {
			t.Errorf("Date = %v, want 2024-03-09", got.Date)
		}
		if got.Notes == nil || *got.Notes != "keep me" {
			t.Errorf("Notes = %v, want %q", got.Notes, "keep me")
		}
		if !got.CreatedAt.Equal(baseTime) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, baseTime)
		}
		if !got.UpdatedAt.Equal(later) {
			t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, later)
		}

		got, err = f.votes.Update(ctx, v.ID, model.VotePatch{Notes: strPtr("")}, later)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.Notes != nil {
			t.Errorf("Notes = %q, want nil after clearing", *got.Notes)
		}
		if !got.Date.Equal(day(2024, 3, 9)) {
			t.Errorf("Date = %v, want unchanged 2024-03-09", got.Date)
		}
	})
}

// 存在しない投票の更新はErrNotFoundを返すこと
func TestSQLVoteRepo_Update_NotFound(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)

		_, err := f.votes.Update(context.Background(), 999, model.VotePatch{Notes: strPtr("x")}, baseTime)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

// 削除後は取得できず、再削除はErrNotFoundを返すこと
func TestSQLVoteRepo_Delete(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)
		ctx := context.Background()

		v := f.insert(t, day(2024, 3, 10), nil, baseTime)

		if err := f.votes.Delete(ctx, v.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		got, err := f.votes.FindByID(ctx, v.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got != nil {
			t.Error("expected vote to be deleted")
		}

		if err := f.votes.Delete(ctx, v.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

// 同日の複数投票は1日として数えられ、降順で返ること
func TestSQLVoteRepo_DistinctDatesByScope(t *testing.T) {
	forEachDialect(t, func(t *testing.T, db *sql.DB, dialect Dialect) {
		f := newVoteFixture(t, db, dialect)

		f.insert(t, day(2024, 3, 8), nil, baseTime)
		f.insert(t, day(2024, 3, 10), nil, baseTime)
		f.insert(t, day(2024, 3, 10), nil, baseTime.Add(time.Minute))
		f.insert(t, day(2024, 3, 9), nil, baseTime)

		got, err := f.votes.DistinctDatesByScope(context.Background(), f.scopeID)
		if err != nil {
			t.Fatalf("DistinctDatesByScope failed: %v", err)
		}

		want := []time.Time{day(2024, 3, 10), day(2024, 3, 9), day(2024, 3, 8)}
		if len(got) != len(want) {
			t.Fatalf("len = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if !got[i].Equal(want[i]) {
				t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})
}
