// ABOUTME: Length truncation for outgoing Telegram messages.
// ABOUTME: Keeps the tail of over-long text with an ellipsis prefix.

package telegram

// Truncate caps text at max runes. When text exceeds the limit, the head is
// dropped and an ellipsis is prepended, keeping the most recent output of a
// streaming response visible.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return "…" + string(runes[len(runes)-(max-1):])
}
