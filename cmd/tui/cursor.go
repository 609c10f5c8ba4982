package tui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textarea"
)

// cursorOffset converts a logical row and rune column into a rune offset of value.
func cursorOffset(value string, row, col int) int {
	lines := strings.Split(value, "\n")
	if row >= len(lines) {
		return utf8.RuneCountInString(value)
	}

	offset := 0
	for i := 0; i < row; i++ {
		offset += utf8.RuneCountInString(lines[i]) + 1
	}
	return offset + min(max(col, 0), utf8.RuneCountInString(lines[row]))
}

// rowCol is the inverse of cursorOffset.
func rowCol(value string, offset int) (row, col int) {
	for i, r := range []rune(value) {
		if i >= offset {
			break
		}
		if r == '\n' {
			row++
			col = 0
			continue
		}
		col++
	}
	return row, col
}

// moveCursor places the cursor of ta, which must sit on its last line, at row and col.
func moveCursor(ta *textarea.Model, row, col int) {
	for moves := ta.LineCount() * 2; moves > 0 && ta.Line() > row; moves-- {
		ta.CursorUp()
	}
	ta.SetCursor(col)
}
