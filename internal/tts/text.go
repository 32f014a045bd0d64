// Package tts turns persisted text into audible speech, paragraph by
// paragraph, through either a local piper pipeline or the OpenAI speech
// API. Playback runs in its own supervised process so pause, resume and
// paragraph navigation work from any invocation.
package tts

import "strings"

// SplitParagraphs breaks text on blank lines. Whitespace-only chunks
// are dropped so the paragraph cursor always addresses speakable text.
func SplitParagraphs(text string) []string {
	var paragraphs []string
	for _, chunk := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			paragraphs = append(paragraphs, chunk)
		}
	}
	return paragraphs
}

// ClampCursor bounds cursor to [0, count) so navigation can never walk
// off the text. A zero count clamps to 0.
func ClampCursor(cursor, count int) int {
	if cursor < 0 || count == 0 {
		return 0
	}
	if cursor >= count {
		return count - 1
	}
	return cursor
}

// frenchMarkers are cheap signals that a paragraph is French, deciding
// which local piper voice speaks it.
var frenchMarkers = []string{
	"à", "é", "è", "ê", "ë", "ï", "ô", "ù", "û", "ü", "ÿ", "ç", "œ", "æ",
	" le ", " la ", " les ", " des ", " du ", " un ", " une ",
	" est ", " sont ", " dans ", " pour ", " avec ", " que ",
	" qui ", " nous ", " vous ", " c'est ", " j'ai ", " n'est ",
}

// DetectLanguage returns "fr" when enough French markers appear,
// otherwise "en".
func DetectLanguage(text string) string {
	lower := strings.ToLower(text)
	hits := 0
	for _, marker := range frenchMarkers {
		if strings.Contains(lower, marker) {
			hits++
			if hits >= 3 {
				return "fr"
			}
		}
	}
	return "en"
}
