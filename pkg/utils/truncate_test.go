package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateShortTextUnchanged(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("unexpected truncate result: %q", got)
	}
	if got := Truncate("hello", 5); got != "hello" {
		t.Fatalf("text at the limit should be unchanged, got %q", got)
	}
}

func TestTruncateAppendsEllipsis(t *testing.T) {
	if got := Truncate("abcdefgh", 3); got != "abc..." {
		t.Fatalf("unexpected truncate result: %q", got)
	}
}

func TestTruncateCountsCharactersNotBytes(t *testing.T) {
	got := Truncate("你好世界", 2)
	if got != "你好..." {
		t.Fatalf("unexpected truncate result: %q", got)
	}
}

func TestTruncateIdempotentAndBounded(t *testing.T) {
	inputs := []string{"", "a", "short", strings.Repeat("x", 1001), strings.Repeat("問", 2000), "mixed 中文 text with ascii"}
	limits := []int{0, 1, 3, 10, 1000}

	for _, in := range inputs {
		for _, n := range limits {
			once := Truncate(in, n)
			twice := Truncate(once, n)
			if once != twice {
				t.Fatalf("truncate not idempotent for n=%d: %q vs %q", n, once, twice)
			}
			if l := utf8.RuneCountInString(once); l > n+3 {
				t.Fatalf("truncate length %d exceeds %d", l, n+3)
			}
		}
	}
}

func TestHeadNeverAddsMarker(t *testing.T) {
	if got := Head(strings.Repeat("a", 20), 5); got != "aaaaa" {
		t.Fatalf("unexpected head result: %q", got)
	}
	if got := Head("ab", 5); got != "ab" {
		t.Fatalf("unexpected head result: %q", got)
	}
}
