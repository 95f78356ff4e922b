// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextStripper は上流APIから受け取った本の説明文からマークアップを取り除き、
// プレーンテキストに変換する。bluemondayの厳格ポリシーで全タグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextStripperService はHTMLからプレーンテキストを得る機能のインターフェースを定義する。
type TextStripperService interface {
	// StripTags は全てのタグを除去し、文字参照をデコードしたテキストを返す。
	// 空文字列の入力には空文字列を返す。
	StripTags(rawHTML string) string
}

// textStripper はTextStripperServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textStripper struct {
	policy *bluemonday.Policy
}

// NewTextStripper はTextStripperServiceの新しいインスタンスを生成する。
// StrictPolicyは要素を一切許可せず、script/style要素は中身ごと除去する。
func NewTextStripper() *textStripper {
	return &textStripper{
		policy: bluemonday.StrictPolicy(),
	}
}

// StripTags は全てのタグを除去したプレーンテキストを返す。
// bluemondayはテキストをエスケープして返すため、最後にアンエスケープする。
// 出力はHTMLとして安全ではないので、埋め込む側でエスケープすること。
func (s *textStripper) StripTags(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	stripped := s.policy.Sanitize(rawHTML)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
