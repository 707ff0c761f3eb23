// Package prompt holds the interactive terminal forms of the CLI.
package prompt

import "errors"

const (
	PAGESIZE = 25
)

var ErrCanceled = errors.New("canceled")

func pages(total int) int {
	n := (total + PAGESIZE - 1) / PAGESIZE
	if n == 0 {
		return 1
	}
	return n
}

func clampPage(page, total int) int {
	if page < 0 {
		return 0
	}
	if last := pages(total) - 1; page > last {
		return last
	}
	return page
}
