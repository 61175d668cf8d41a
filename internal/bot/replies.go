package bot

import (
	"fmt"

	"github.com/teemow/yoteibot/internal/intent"
)

// Reply texts sent back over LINE. The bot speaks Japanese to its users.
const (
	replyAuthRequired = "Googleカレンダーとの連携が必要です。以下のコマンドを送信してください：\n/auth"

	replyGuidance = "申し訳ありません。予定の処理中にエラーが発生しました。\n例：「明日の15時から2時間、打ち合わせ」のように入力してください。"

	replyRetryHint = "時間を置いて再度お試しください。"
)

// replyAuthLink returns the consent-URL reply for the /auth command.
func replyAuthLink(url string) string {
	return "Googleカレンダーと連携するには以下のURLをクリックしてください：\n" + url
}

// actionText maps an action onto its Japanese verb stem.
func actionText(a intent.Action) string {
	switch a {
	case intent.ActionCreate:
		return "登録"
	case intent.ActionUpdate:
		return "更新"
	case intent.ActionDelete:
		return "削除"
	default:
		return "処理"
	}
}

// replySuccess formats the confirmation after a completed calendar write.
func replySuccess(a intent.Action, name, date, tm string) string {
	return fmt.Sprintf("✅ 「%s」を%s %sからGoogleカレンダーに%sしました！", name, date, tm, actionText(a))
}

// replyFailure formats the error reply. detail is shown to the user, so it
// must be a human-readable sentence, not a wrapped Go error chain.
func replyFailure(a intent.Action, detail string) string {
	if detail == "" {
		detail = replyRetryHint
	}
	return fmt.Sprintf("❌ 予定の%sに失敗しました。\n%s", actionText(a), detail)
}

// replyNotFound formats the reply when no calendar event matches the request.
func replyNotFound(a intent.Action) string {
	return replyFailure(a, "対象の予定が見つかりませんでした。")
}
