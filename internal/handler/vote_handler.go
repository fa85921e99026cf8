package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/habitvote/internal/middleware"
	"github.com/hitoshi/habitvote/internal/model"
)

// VoteServiceInterface は投票ハンドラーが必要とするサービスインターフェース。
type VoteServiceInterface interface {
	// CreateVote は投票を記録し、記録後の統計とともに返す。
	CreateVote(ctx context.Context, userID int64, req createVoteRequest) (*voteMutationResponse, error)
	// ListVotes は指定identityの投票を日付の新しい順に返す。
	ListVotes(ctx context.Context, userID int64, query listVotesQuery) ([]voteResponse, error)
	// GetStats は指定identityの統計を返す。
	GetStats(ctx context.Context, userID int64, scopeID *int64) (*statsResponse, error)
	// UpdateVote は投票の日付・メモを部分更新する。
	UpdateVote(ctx context.Context, userID, voteID int64, req updateVoteRequest) (*voteMutationResponse, error)
	// DeleteVote は投票を削除し、削除後の統計を返す。
	DeleteVote(ctx context.Context, userID, voteID int64) (*deleteVoteResponse, error)
}

// VoteHandler は投票APIのHTTPハンドラー。
type VoteHandler struct {
	service VoteServiceInterface
}

// NewVoteHandler はVoteHandlerを生成する。
func NewVoteHandler(service VoteServiceInterface) *VoteHandler {
	return &VoteHandler{
		service: service,
	}
}

// voteResponse は投票のAPIレスポンス。dateは YYYY-MM-DD 形式。
type voteResponse struct {
	ID        int64     `json:"id"`
	ScopeID   int64     `json:"scopeId"`
	Date      string    `json:"date"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// statsResponse は統計のAPIレスポンス。
type statsResponse struct {
	Total     int `json:"total"`
	ThisMonth int `json:"thisMonth"`
	Streak    int `json:"streak"`
}

// voteMutationResponse は作成・更新のレスポンス。
type voteMutationResponse struct {
	Vote  voteResponse  `json:"vote"`
	Stats statsResponse `json:"stats"`
}

// deleteVoteResponse は削除のレスポンス。
type deleteVoteResponse struct {
	DeletedVoteID int64         `json:"deletedVoteId"`
	Stats         statsResponse `json:"stats"`
}

// createVoteRequest は投票作成リクエストのボディ。すべて省略可能。
type createVoteRequest struct {
	ScopeID *int64  `json:"scopeId"`
	Date    *string `json:"date"`
	Notes   *string `json:"notes"`
}

// updateVoteRequest は投票更新リクエストのボディ。
// notesに空文字を指定するとメモを消去する。
type updateVoteRequest struct {
	Date  *string `json:"date"`
	Notes *string `json:"notes"`
}

// listVotesQuery は投票一覧のクエリパラメータ。
type listVotesQuery struct {
	ScopeID   *int64
	StartDate *string
	EndDate   *string
}

// CreateVote は投票を記録する。
// POST /api/votes
func (h *VoteHandler) CreateVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createVoteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	resp, err := h.service.CreateVote(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// ListVotes は投票一覧を返す。
// GET /api/votes?scopeId=&startDate=&endDate=
func (h *VoteHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	scopeID, err := parseScopeIDParam(q.Get("scopeId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	votes, err := h.service.ListVotes(r.Context(), userID, listVotesQuery{
		ScopeID:   scopeID,
		StartDate: optionalParam(q.Get("startDate")),
		EndDate:   optionalParam(q.Get("endDate")),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, votes)
}

// GetStats は統計を返す。
// GET /api/votes/stats?scopeId=
func (h *VoteHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	scopeID, err := parseScopeIDParam(r.URL.Query().Get("scopeId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	stats, err := h.service.GetStats(r.Context(), userID, scopeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// UpdateVote は投票を部分更新する。
// PUT /api/votes/{id}
func (h *VoteHandler) UpdateVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	voteID, err := parseVoteIDParam(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req updateVoteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	resp, err := h.service.UpdateVote(r.Context(), userID, voteID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteVote は投票を削除する。
// DELETE /api/votes/{id}
func (h *VoteHandler) DeleteVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	voteID, err := parseVoteIDParam(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.service.DeleteVote(r.Context(), userID, voteID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- ヘルパー関数 ---

// requireUserID はコンテキストから呼び出し元ユーザーIDを取り出す。
// 取り出せない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return 0, false
	}
	return userID, true
}

// maxRequestBodyBytes はJSONリクエストボディの上限バイト数。
const maxRequestBodyBytes = 16 << 10

// decodeJSONBody はリクエストボディをdstに読み込む。空ボディは全項目省略として扱う。
// 上限を超えるボディは読み込みを打ち切り413を返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewRequestTooLargeError(maxErr.Limit))
			return false
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// parseScopeIDParam はscopeIdクエリを解析する。空文字はnil（主identity）を返す。
func parseScopeIDParam(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, model.NewInvalidScopeIDError(raw)
	}
	return &id, nil
}

func parseVoteIDParam(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, model.NewInvalidVoteIDError(raw)
	}
	return id, nil
}

func optionalParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
