package bridge

import (
	"fmt"
	"strings"
)

// fence opens and closes a MarkdownV2 preformatted block. Body text is
// embedded verbatim inside such a block, so any occurrence of the fence in
// attacker-controlled text would terminate the block early and let the
// remainder render as live markup.
const fence = "```"

// markdownSpecial is the set of characters that must be backslash-escaped in
// MarkdownV2 outside preformatted blocks.
const markdownSpecial = `-_*[]()~` + "`" + `>#+|{}.!`

// Validate rejects text that contains the preformatted-block terminator.
// It is deliberately not a markup parser: the fence is the one injection
// vector relevant to how the composer embeds raw mail content.
func Validate(text string) error {
	if strings.Contains(text, fence) {
		return fmt.Errorf("%w", ErrUnsafeText)
	}
	return nil
}

// Escape backslash-escapes MarkdownV2 special characters. Used for header
// values, which are rendered outside the preformatted block.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
