// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, vote, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeRequestTooLarge   = "REQUEST_TOO_LARGE"
	ErrCodeInvalidDate       = "INVALID_DATE"
	ErrCodeInvalidScopeID    = "INVALID_SCOPE_ID"
	ErrCodeInvalidVoteID     = "INVALID_VOTE_ID"
	ErrCodeNotesTooLong      = "NOTES_TOO_LONG"
	ErrCodeInvalidNotes      = "INVALID_NOTES"
	ErrCodeForbiddenScope    = "FORBIDDEN_SCOPE"
	ErrCodeNoPrimaryIdentity = "NO_PRIMARY_IDENTITY"
	ErrCodeVoteNotFound      = "VOTE_NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewRequestTooLargeError はリクエストボディが上限サイズを超えた場合のエラーを生成する。
func NewRequestTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeRequestTooLarge,
		Message:  fmt.Sprintf("リクエストボディは%dバイト以内にしてください。", limit),
		Category: "validation",
		Action:   "メモを短くしてから再度お試しください。",
	}
}

// NewInvalidDateError は日付の形式が不正な場合のエラーを生成する。
// fieldには問題のあった入力項目名（date, startDate, endDate）を指定する。
func NewInvalidDateError(field, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("%s の日付形式が不正です: %q", field, value),
		Category: "validation",
		Action:   "ISO-8601形式（例: 2024-01-15 または 2024-01-15T09:00:00Z）で指定してください。",
	}
}

// NewInvalidScopeIDError はidentity IDが数値でない場合のエラーを生成する。
func NewInvalidScopeIDError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScopeID,
		Message:  fmt.Sprintf("scopeId は数値で指定してください: %q", value),
		Category: "validation",
		Action:   "identity IDを確認してください。",
	}
}

// NewInvalidVoteIDError は投票IDが数値でない場合のエラーを生成する。
func NewInvalidVoteIDError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVoteID,
		Message:  fmt.Sprintf("投票IDは数値で指定してください: %q", value),
		Category: "validation",
		Action:   "投票IDを確認してください。",
	}
}

// NewNotesTooLongError はメモが上限文字数を超えた場合のエラーを生成する。
func NewNotesTooLongError(max int) *APIError {
	return &APIError{
		Code:     ErrCodeNotesTooLong,
		Message:  fmt.Sprintf("メモは%d文字以内で入力してください。", max),
		Category: "validation",
		Action:   "メモを短くしてから再度お試しください。",
	}
}

// NewInvalidNotesError はメモにHTMLマークアップが含まれる場合のエラーを生成する。
func NewInvalidNotesError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidNotes,
		Message:  "メモにHTMLタグを含めることはできません。",
		Category: "validation",
		Action:   "タグを取り除いたテキストで入力してください。",
	}
}

// NewForbiddenScopeError は他ユーザーのidentityを指定された場合のエラーを生成する。
// 存在有無は区別せず、同じエラーを返す。
func NewForbiddenScopeError() *APIError {
	return &APIError{
		Code:     ErrCodeForbiddenScope,
		Message:  "指定されたidentityへのアクセス権がありません。",
		Category: "auth",
		Action:   "自分のidentity IDを指定するか、省略して主identityを使用してください。",
	}
}

// NewNoPrimaryIdentityError は主identityが未設定の場合のエラーを生成する。
func NewNoPrimaryIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeNoPrimaryIdentity,
		Message:  "主identityが見つかりません。",
		Category: "auth",
		Action:   "オンボーディングを完了してから再度お試しください。",
	}
}

// NewVoteNotFoundError は投票が見つからない場合のエラーを生成する。
// 他ユーザーの投票を指定した場合も同じエラーを返す。
func NewVoteNotFoundError(voteID int64) *APIError {
	return &APIError{
		Code:     ErrCodeVoteNotFound,
		Message:  fmt.Sprintf("指定された投票が見つかりません: %d", voteID),
		Category: "vote",
		Action:   "投票IDを確認してください。",
	}
}

// NewUnauthorizedError は認証情報がない、または無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
