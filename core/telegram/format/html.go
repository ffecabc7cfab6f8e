package format

import "strings"

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeHTML escapes user-provided content for Telegram HTML parse mode.
// Telegram understands only a small tag subset, so escaping the three
// structural characters is sufficient.
func EscapeHTML(text string) string {
	return htmlReplacer.Replace(text)
}

// Bold wraps already-escaped text in HTML bold tags.
func Bold(text string) string {
	return "<b>" + text + "</b>"
}

// Code wraps already-escaped text in HTML code tags.
func Code(text string) string {
	return "<code>" + text + "</code>"
}
