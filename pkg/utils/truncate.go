package utils

import "unicode/utf8"

// Ellipsis 截断标记
const Ellipsis = "..."

// Truncate 保留前 n 个字符，发生截断时追加省略号。
func Truncate(text string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + Ellipsis
}

// Head 保留前 n 个字符，不追加任何标记。
func Head(text string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
