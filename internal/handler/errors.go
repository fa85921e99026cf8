package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/habitvote/internal/middleware"
	"github.com/hitoshi/habitvote/internal/model"
)

// writeJSON は成功レスポンスをJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidDate,
		model.ErrCodeInvalidScopeID,
		model.ErrCodeInvalidVoteID,
		model.ErrCodeNotesTooLong,
		model.ErrCodeInvalidNotes:
		return http.StatusBadRequest
	case model.ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbiddenScope:
		return http.StatusForbidden
	case model.ErrCodeNoPrimaryIdentity, model.ErrCodeVoteNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
