package tgtext

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitLinesEmpty(t *testing.T) {
	if got := SplitLines("", 4096); got != nil {
		t.Fatalf("SplitLines(\"\") = %q, want nil", got)
	}
}

func TestSplitLinesSingleChunk(t *testing.T) {
	in := "hello\nworld\n"
	got := SplitLines(in, 4096)
	if len(got) != 1 || got[0] != in {
		t.Fatalf("SplitLines(%q) = %q, want single chunk equal to input", in, got)
	}
}

func TestSplitLinesPacking(t *testing.T) {
	a := strings.Repeat("a", 2000) + "\n" // 2001 runes
	b := strings.Repeat("b", 2096) + "\n" // 2097 runes

	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{
			name:  "two lines over limit split at line boundary",
			in:    a + b, // 4098 runes total
			limit: 4096,
			want:  []string{a, b},
		},
		{
			name:  "combined length exactly at limit still splits",
			in:    "aaa\n" + "bbbb", // 4 + 4 = 8
			limit: 8,
			want:  []string{"aaa\n", "bbbb"},
		},
		{
			name:  "combined length one under limit packs",
			in:    "aaa\n" + "bbb", // 4 + 3 = 7
			limit: 8,
			want:  []string{"aaa\nbbb"},
		},
		{
			name:  "line exactly at limit emitted alone",
			in:    "x\n" + strings.Repeat("y", 7) + "\n" + "z\n",
			limit: 8,
			want:  []string{"x\n", strings.Repeat("y", 7) + "\n", "z\n"},
		},
		{
			name:  "many short lines repack greedily",
			in:    strings.Repeat("ab\n", 5), // 5 lines of 3 runes
			limit: 7,
			want:  []string{"ab\nab\n", "ab\nab\n", "ab\n"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitLines(tc.in, tc.limit)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d chunks, want %d: %q", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("chunk %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSplitLinesOversizedLine(t *testing.T) {
	long := strings.Repeat("x", 5000)

	got := SplitLines(long, 4096)
	if len(got) != 1 || got[0] != long {
		t.Fatalf("oversized single line: got %d chunks, want 1 equal to input", len(got))
	}

	// Oversized lines never merge with their neighbors.
	in := "short\n" + long + "\n" + "tail\n"
	got = SplitLines(in, 4096)
	if len(got) != 3 {
		t.Fatalf("short/long/short: got %d chunks, want 3", len(got))
	}
	if got[0] != "short\n" || got[1] != long+"\n" || got[2] != "tail\n" {
		t.Fatalf("short/long/short: unexpected chunks %q", []string{got[0][:min(len(got[0]), 20)], "...", got[2]})
	}
}

func TestSplitLinesRoundTrip(t *testing.T) {
	inputs := []string{
		"plain text without newline",
		"a\nb\nc\n",
		"trailing text after last newline\nno terminator here",
		"\n\n\n",
		"crlf line\r\nbare cr\rmixed\nend",
		strings.Repeat("word ", 2000) + "\n",
		strings.Repeat("한글 텍스트 줄\n", 500),
	}
	for _, in := range inputs {
		for _, limit := range []int{5, 64, 4096} {
			chunks := SplitLines(in, limit)
			if strings.Join(chunks, "") != in {
				t.Fatalf("limit %d: chunks do not concatenate back to input %q", limit, in[:min(len(in), 40)])
			}
			for i, c := range chunks {
				if c == "" {
					t.Fatalf("limit %d: chunk %d is empty", limit, i)
				}
				if n := utf8.RuneCountInString(c); n >= limit && strings.Count(strings.TrimSuffix(c, "\n"), "\n") > 0 {
					t.Fatalf("limit %d: packed chunk %d has %d runes spanning multiple lines", limit, i, n)
				}
			}
		}
	}
}

func TestSplitLinesCountsRunes(t *testing.T) {
	// Each line is 4 runes (3 Hangul + newline) but 10 bytes.
	in := strings.Repeat("가나다\n", 2)
	got := SplitLines(in, 9)
	if len(got) != 1 || got[0] != in {
		t.Fatalf("rune-counted input split unexpectedly: %q", got)
	}
}

func TestSplitLinesBadLimit(t *testing.T) {
	for _, limit := range []int{0, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("SplitLines with limit %d did not panic", limit)
				}
			}()
			SplitLines("text", limit)
		}()
	}
}
