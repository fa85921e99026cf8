// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupDetector は投票メモにHTMLマークアップが含まれているかを判定する。
// メモは書き換えずにそのまま保存するため、マークアップを含む入力は拒否する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupDetectorService は投票メモのマークアップ判定機能のインターフェースを定義する。
type MarkupDetectorService interface {
	// ContainsMarkup はrawにHTMLタグやコメントが含まれる場合にtrueを返す。
	// "a<b" や "R&amp;D" のようなタグを構成しないテキストはfalse。
	ContainsMarkup(raw string) bool
}

// markupDetector はMarkupDetectorServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに判定を行う。
type markupDetector struct {
	policy *bluemonday.Policy
}

// NewMarkupDetector はMarkupDetectorServiceの新しいインスタンスを生成する。
func NewMarkupDetector() *markupDetector {
	return &markupDetector{
		policy: bluemonday.StrictPolicy(),
	}
}

// ContainsMarkup はStrictPolicyでタグを除去した結果と元のテキストを比較する。
// StrictPolicyの出力はHTMLエスケープされているため、両者を展開した上で比べる。
// タグは ">" で閉じられて初めて成立するため、">" を含まない入力はテキストとして扱う。
func (d *markupDetector) ContainsMarkup(raw string) bool {
	if !strings.ContainsRune(raw, '>') {
		return false
	}
	return html.UnescapeString(d.policy.Sanitize(raw)) != html.UnescapeString(raw)
}

// compile-time interface check
var _ MarkupDetectorService = (*markupDetector)(nil)
