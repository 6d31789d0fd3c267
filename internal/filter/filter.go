// Package filter turns a free-text query and a category into a song predicate that can be evaluated in memory as well
// as inside the SQLite catalog. Both forms share the same case folding so they always agree on the result.
package filter

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/cases"

	"github.com/derWhity/bhajanbook/internal/models"
)

const (
	// ParamQuery is the URL parameter carrying the query text
	ParamQuery = "q"
	// ParamCategory is the URL parameter carrying the category
	ParamCategory = "category"
	// SQLFoldFunc is the name of the SQL function applying Fold inside the database
	SQLFoldFunc = "casefold"
)

// Filter is a (query, category) pair selecting songs from the catalog
type Filter struct {
	// Case-insensitive substring to look for. Empty matches everything
	Query string `json:"q"`
	// Category the song must have - models.CategoryAll disables the check
	Category string `json:"category"`
}

// New creates a normalized filter from raw user input
func New(query, category string) Filter {
	category = strings.TrimSpace(category)
	if category == "" {
		category = models.CategoryAll
	}
	return Filter{
		Query:    strings.TrimSpace(query),
		Category: category,
	}
}

// All returns the filter matching every song
func All() Filter {
	return New("", models.CategoryAll)
}

// FromValues reads a filter from URL query parameters
func FromValues(v url.Values) Filter {
	return New(v.Get(ParamQuery), v.Get(ParamCategory))
}

// Fold maps a string to its case-folded form. It is used for both, in-memory and SQL matching
func Fold(s string) string {
	// A Caser keeps state and must not be shared between goroutines
	return cases.Fold().String(s)
}

// IsAll checks if the filter matches every song
func (f Filter) IsAll() bool {
	return f.Query == "" && f.byCategory() == ""
}

// byCategory returns the category to filter on or an empty string if there is none
func (f Filter) byCategory() string {
	if f.Category == "" || f.Category == models.CategoryAll {
		return ""
	}
	return f.Category
}

// Match evaluates the filter against a single song
func (f Filter) Match(s *models.Song) bool {
	if cat := f.byCategory(); cat != "" && s.Category != cat {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := Fold(f.Query)
	for _, field := range []string{s.Title, s.LocalTitle, s.Body} {
		if strings.Contains(Fold(field), q) {
			return true
		}
	}
	for _, kw := range s.Keywords {
		if strings.Contains(Fold(kw), q) {
			return true
		}
	}
	return false
}

// SQL translates the filter into a WHERE condition for the Songs table known under the given alias. Keywords are
// looked up in the SongKeywords table.
func (f Filter) SQL(alias string) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Query != "" {
		q := Fold(f.Query)
		contains := func(col string) string {
			return fmt.Sprintf("instr(%s(%s), ?) > 0", SQLFoldFunc, col)
		}
		conds = append(conds, fmt.Sprintf(
			"(%s OR %s OR %s OR EXISTS (SELECT 1 FROM SongKeywords k WHERE k.songId = %s.id AND %s))",
			contains(alias+".title"),
			contains(alias+".localTitle"),
			contains(alias+".body"),
			alias,
			contains("k.keyword"),
		))
		args = append(args, q, q, q, q)
	}
	if cat := f.byCategory(); cat != "" {
		conds = append(conds, alias+".category = ?")
		args = append(args, cat)
	}
	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), args
}

// Values encodes the filter as URL query parameters
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Query != "" {
		v.Set(ParamQuery, f.Query)
	}
	if cat := f.byCategory(); cat != "" {
		v.Set(ParamCategory, cat)
	}
	return v
}

// String implements fmt.Stringer for log output
func (f Filter) String() string {
	return fmt.Sprintf("q=%q category=%q", f.Query, f.Category)
}
