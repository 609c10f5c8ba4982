package workspace

import "unicode/utf8"

// FormatCommand wraps a selection with markup.
type FormatCommand struct {
	Prefix string
	Suffix string
}

var (
	// FormatBold wraps the selection in \textbf{}.
	FormatBold = FormatCommand{Prefix: `\textbf{`, Suffix: "}"}
	// FormatItalic wraps the selection in \textit{}.
	FormatItalic = FormatCommand{Prefix: `\textit{`, Suffix: "}"}
)

// Apply wraps the rune range [from, to) of content. An empty range inserts
// empty markup at from. It returns the new content and the rune offset of the
// cursor, placed after the selection and before the suffix.
func (c FormatCommand) Apply(content string, from, to int) (string, int) {
	runes := []rune(content)
	from = clamp(from, 0, len(runes))
	to = clamp(to, 0, len(runes))
	if to < from {
		from, to = to, from
	}

	out := make([]rune, 0, len(runes)+utf8.RuneCountInString(c.Prefix)+utf8.RuneCountInString(c.Suffix))
	out = append(out, runes[:from]...)
	out = append(out, []rune(c.Prefix)...)
	out = append(out, runes[from:to]...)
	out = append(out, []rune(c.Suffix)...)
	out = append(out, runes[to:]...)

	return string(out), to + utf8.RuneCountInString(c.Prefix)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
