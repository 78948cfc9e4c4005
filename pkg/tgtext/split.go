package tgtext

import (
	"strings"
	"unicode/utf8"
)

// SplitLines splits s into chunks of fewer than limit runes without breaking
// lines. Lines keep their terminators ("\n", "\r\n" or a bare "\r"), so
// concatenating the returned chunks reproduces s exactly.
//
// A chunk is closed as soon as appending the next line would reach limit, so
// packed chunks never hit limit exactly. The one exception is a single line of
// limit runes or more: it is emitted as its own chunk, unsplit, and never
// merged with neighboring lines.
//
// Empty input returns nil. limit must be positive; SplitLines panics
// otherwise.
func SplitLines(s string, limit int) []string {
	if limit <= 0 {
		panic("tgtext: SplitLines called with non-positive limit")
	}
	if s == "" {
		return nil
	}

	var (
		chunks []string
		acc    strings.Builder
		accLen int
	)
	flush := func() {
		if acc.Len() > 0 {
			chunks = append(chunks, acc.String())
			acc.Reset()
			accLen = 0
		}
	}

	for _, line := range splitKeepEnds(s) {
		n := utf8.RuneCountInString(line)
		switch {
		case n >= limit:
			flush()
			chunks = append(chunks, line)
		case accLen+n >= limit:
			flush()
			fallthrough
		default:
			acc.WriteString(line)
			accLen += n
		}
	}
	flush()
	return chunks
}

// splitKeepEnds splits s on line boundaries, keeping each terminator attached
// to the line it ends. "\r\n" counts as a single terminator. A trailing run
// without a terminator is still a line.
func splitKeepEnds(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '\n':
			lines = append(lines, s[start:i+1])
			start = i + 1
			i = start
		case '\r':
			end := i + 1
			if end < len(s) && s[end] == '\n' {
				end++
			}
			lines = append(lines, s[start:end])
			start = end
			i = start
		default:
			i++
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
