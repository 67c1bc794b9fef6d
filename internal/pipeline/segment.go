package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxSentenceBytes is the ceiling after which an unterminated buffer is force
// split so the synthesis stage never waits on a runaway sentence.
const maxSentenceBytes = 800

// terminalMarks are the sentence boundary markers, ASCII and CJK full-width.
// Adding a language means extending this table, not rewriting a pattern.
var terminalMarks = map[rune]struct{}{
	'.': {}, '!': {}, '?': {}, '…': {},
	'。': {}, '．': {}, '！': {}, '？': {},
}

// splitMarks is the backward-search order used when force splitting.
var splitMarks = []rune{'.', '!', '?', '。', '！', '？'}

var (
	ellipsisRun   = regexp.MustCompile(`\.{3,}`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

const leadingNoise = ". \t\n\r"

// Segmenter accumulates streamed reply fragments and yields complete,
// normalized sentences as soon as they terminate.
type Segmenter struct {
	buffer string
}

// Push appends a fragment and returns every complete sentence now extractable,
// in order.
func (s *Segmenter) Push(fragment string) []string {
	s.buffer += fragment

	var sentences []string
	for {
		s.buffer = strings.TrimLeft(s.buffer, leadingNoise)
		if s.buffer == "" {
			break
		}

		sentence, rest, ok := cutSentence(s.buffer)
		if !ok {
			if len(s.buffer) < maxSentenceBytes {
				break
			}
			sentence, rest = forceSplit(s.buffer)
		}
		s.buffer = strings.TrimLeft(rest, " ")

		if normalized := normalizeSentence(sentence); normalized != "" {
			sentences = append(sentences, normalized)
		}
	}
	return sentences
}

// Flush returns whatever remains in the buffer as a final tail sentence and
// resets the segmenter.
func (s *Segmenter) Flush() string {
	tail := strings.TrimSpace(s.buffer)
	s.buffer = ""
	return tail
}

// cutSentence splits the buffer at the first terminal punctuation mark.
func cutSentence(buffer string) (sentence, rest string, ok bool) {
	for i, r := range buffer {
		if _, terminal := terminalMarks[r]; terminal {
			end := i + utf8.RuneLen(r)
			return strings.TrimSpace(buffer[:end]), buffer[end:], true
		}
	}
	return "", "", false
}

// forceSplit cuts an overlong unterminated buffer at the punctuation mark
// nearest to one third of the ceiling, falling back to a positional cut.
func forceSplit(buffer string) (sentence, rest string) {
	splitPos := maxSentenceBytes / 3
	if splitPos > len(buffer) {
		splitPos = len(buffer)
	}
	for _, mark := range splitMarks {
		if idx := strings.LastIndex(buffer[:splitPos], string(mark)); idx > 0 {
			splitPos = idx + utf8.RuneLen(mark)
			return strings.TrimSpace(buffer[:splitPos]), strings.TrimLeft(buffer[splitPos:], " ")
		}
	}
	// Positional cut: back off to a rune boundary so we never split a
	// multi-byte character.
	for splitPos > 0 && splitPos < len(buffer) && !utf8.RuneStart(buffer[splitPos]) {
		splitPos--
	}
	return strings.TrimSpace(buffer[:splitPos]), strings.TrimLeft(buffer[splitPos:], " ")
}

func normalizeSentence(sentence string) string {
	sentence = ellipsisRun.ReplaceAllString(sentence, "...")
	sentence = whitespaceRun.ReplaceAllString(sentence, " ")
	return strings.TrimSpace(sentence)
}
