package extract

import (
	"regexp"
	"strings"
)

// minClauseLen drops fragments too short to be a testable requirement
// (stray numbering, page headers, lone words).
const minClauseLen = 8

// clauseMarker matches the start of a numbered requirement clause:
// "1." / "2)" / "(3)" / "REQ-4:" / "R5." / "a)" style prefixes.
var clauseMarker = regexp.MustCompile(`^\s*(?:(?:REQ|R)[-\s]?\d+\s*[.:)]?|\d+\s*[.)]|\(\d+\)|[a-z][.)])\s+`)

// Segment partitions requirement text into atomic clause descriptions. The
// rule is deterministic so identical text always yields identical output:
// numbered clauses are preferred, with continuation lines folded into the
// open clause and blank lines closing it; when the text carries fewer than
// two numbered clauses, it falls back to sentence-boundary splitting.
func Segment(text string) []string {
	clauses := segmentNumbered(text)
	if len(clauses) >= 2 {
		return clauses
	}
	return segmentSentences(text)
}

func segmentNumbered(text string) []string {
	var clauses []string
	var current strings.Builder
	open := false

	flush := func() {
		if !open {
			return
		}
		if c := strings.TrimSpace(current.String()); len(c) >= minClauseLen {
			clauses = append(clauses, c)
		}
		current.Reset()
		open = false
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if loc := clauseMarker.FindStringIndex(line); loc != nil {
			flush()
			open = true
			current.WriteString(strings.TrimSpace(line[loc[1]:]))
			continue
		}
		if open {
			current.WriteByte(' ')
			current.WriteString(trimmed)
		}
	}
	flush()
	return clauses
}

// segmentSentences splits on sentence boundaries: a terminator (. ! ?)
// followed by whitespace ends a sentence. Abbreviation handling is not
// attempted; requirement prose rarely needs it and determinism matters more.
func segmentSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(strings.TrimSpace(text))
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			atEnd := i == len(runes)-1
			if atEnd || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' || runes[i+1] == '\r' {
				if s := strings.TrimSpace(current.String()); len(s) >= minClauseLen {
					sentences = append(sentences, normalizeSpace(s))
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); len(s) >= minClauseLen {
		sentences = append(sentences, normalizeSpace(s))
	}
	return sentences
}

var spaceRun = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return spaceRun.ReplaceAllString(s, " ")
}
