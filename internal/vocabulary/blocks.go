package vocabulary

import (
	"unicode"
)

type block struct {
	text string
	word bool
}

// splitBlocks partitions text into maximal runs of word characters and
// runs of everything else.
func splitBlocks(text string) []block {
	var blocks []block
	start := 0
	inWord := false
	for i, r := range text {
		w := isWordRune(r)
		if i == 0 {
			inWord = w
			continue
		}
		if w != inWord {
			blocks = append(blocks, block{text: text[start:i], word: inWord})
			start = i
			inWord = w
		}
	}
	if start < len(text) {
		blocks = append(blocks, block{text: text[start:], word: inWord})
	}
	return blocks
}

func isWordRune(r rune) bool {
	if unicode.Is(unicode.Han, r) || isASCIIAlnum(r) {
		return true
	}
	switch r {
	case '+', '#', '&', '.', '_', '%', '-':
		return true
	}
	return false
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
