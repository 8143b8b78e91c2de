package query

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// MaxPageSize caps page_size for every list endpoint.
const MaxPageSize = 50

// Page is a normalised page/page_size pair.
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ParsePage reads page and page_size from the query string. Missing or
// invalid values fall back to page 1 and defaultSize; page_size is capped
// at MaxPageSize.
func ParsePage(c *fiber.Ctx, defaultSize int) Page {
	number, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || number < 1 {
		number = 1
	}

	size, err := strconv.Atoi(c.Query("page_size", strconv.Itoa(defaultSize)))
	if err != nil || size < 1 {
		size = defaultSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return Page{Number: number, Size: size}
}

// Ordering maps the ordering query parameter to an ORDER BY clause.
// allowed maps public field names to column names; a leading "-" sorts
// descending. Unknown fields yield fallback.
func Ordering(c *fiber.Ctx, allowed map[string]string, fallback string) string {
	raw := strings.TrimSpace(c.Query("ordering"))
	if raw == "" {
		return fallback
	}

	direction := "ASC"
	if strings.HasPrefix(raw, "-") {
		direction = "DESC"
		raw = raw[1:]
	}

	column, ok := allowed[raw]
	if !ok {
		return fallback
	}

	return column + " " + direction
}

// Search returns the trimmed search term, or "" when absent.
func Search(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Query("search"))
}

// LikePattern wraps term for a case-insensitive LIKE match.
func LikePattern(term string) string {
	return "%" + strings.ToLower(term) + "%"
}

// UintParam parses an optional unsigned integer query parameter.
// ok is false when the parameter is absent or malformed.
func UintParam(c *fiber.Ctx, key string) (uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
