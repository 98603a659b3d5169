package utils

import "strconv"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a parsed page/limit pair
type Page struct {
	Number int `json:"page"`
	Size   int `json:"limit"`
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ParsePage reads page and limit query values, clamping them to sane bounds
func ParsePage(page, limit string) Page {
	p := Page{Number: 1, Size: DefaultPageSize}
	if n, err := strconv.Atoi(page); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(limit); err == nil && n > 0 {
		p.Size = n
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}
