package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// markdownTokens are stripped before synthesis; models like to bold lab values.
var markdownTokens = []string{
	"**", // bold
	"__", // underline
	"~~", // strikethrough
	"`",  // inline code
	"*",  // italic
	"#",  // headings
}

var (
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{P}\p{Z}\p{S}\n]|[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
	sentenceEndRegex    = regexp.MustCompile(`[.!?;:]+(?:\s+|$)|[。！？]+`)
)

// NormalizeForSpeech prepares generated text for a TTS engine: markdown and
// emoji are removed and whitespace is collapsed.
func NormalizeForSpeech(text string) string {
	for _, tok := range markdownTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	text = removeEmojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SplitForSpeech cuts text into pieces of at most maxRunes runes, preferring
// sentence boundaries, then word boundaries. Empty pieces are dropped.
func SplitForSpeech(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return []string{text}
	}

	var sentences []string
	last := 0
	for _, loc := range sentenceEndRegex.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		sentences = append(sentences, text[last:])
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		if utf8.RuneCountInString(current.String())+utf8.RuneCountInString(sentence) <= maxRunes {
			current.WriteString(sentence)
			continue
		}
		flush()
		if utf8.RuneCountInString(sentence) <= maxRunes {
			current.WriteString(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			for utf8.RuneCountInString(word) > maxRunes {
				flush()
				runes := []rune(word)
				chunks = append(chunks, string(runes[:maxRunes]))
				word = string(runes[maxRunes:])
			}
			sep := ""
			if current.Len() > 0 {
				sep = " "
			}
			if utf8.RuneCountInString(current.String())+len(sep)+utf8.RuneCountInString(word) > maxRunes {
				flush()
				sep = ""
			}
			current.WriteString(sep)
			current.WriteString(word)
		}
		current.WriteString(" ")
	}
	flush()
	return chunks
}
