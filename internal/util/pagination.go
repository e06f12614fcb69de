// Package util holds small request helpers shared across handlers.
package util

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Paginate turns 1-based page/size query values into an offset and limit.
// Out-of-range values fall back to the first page and the default size;
// size is capped so one request cannot sweep the whole search index.
func Paginate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	from = (page - 1) * size
	return from, size
}
