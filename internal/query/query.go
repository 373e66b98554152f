// Package query derives display views from store collections: search,
// status filter, locale-aware sort and paging. Nothing here mutates its input.
package query

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// StatusAll disables the status filter.
const StatusAll = "all"

type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// Sort keys understood by Apply. Any other key leaves the order unchanged.
const (
	SortTitle  = "title"
	SortStatus = "status"
)

type SortConfig struct {
	Key       string    `json:"key"`
	Direction Direction `json:"direction"`
}

type Query struct {
	Search string     `json:"search,omitempty"`
	Status string     `json:"status,omitempty"`
	Sort   SortConfig `json:"sort"`
	// Locale selects the collation; the zero tag means English.
	Locale language.Tag `json:"-"`
}

// Record is implemented by every collection element the pipeline can derive.
type Record interface {
	Attributes() (title, description, status string)
}

// Apply filters and sorts a shallow copy of items.
func Apply[T Record](items []T, q Query) []T {
	out := make([]T, 0, len(items))
	needle := strings.ToLower(q.Search)
	for _, item := range items {
		title, description, status := item.Attributes()
		if needle != "" &&
			!strings.Contains(strings.ToLower(title), needle) &&
			!strings.Contains(strings.ToLower(description), needle) {
			continue
		}
		if q.Status != "" && q.Status != StatusAll && status != q.Status {
			continue
		}
		out = append(out, item)
	}
	if len(out) < 2 {
		return out
	}
	field := sortField(q.Sort.Key)
	if field == nil {
		return out
	}
	tag := q.Locale
	if tag == language.Und {
		tag = language.English
	}
	col := collate.New(tag)
	desc := q.Sort.Direction == Descending
	sort.SliceStable(out, func(i, j int) bool {
		c := col.CompareString(field(out[i]), field(out[j]))
		if desc {
			c = -c
		}
		return c < 0
	})
	return out
}

func sortField(key string) func(Record) string {
	switch key {
	case SortTitle:
		return func(r Record) string { t, _, _ := r.Attributes(); return t }
	case SortStatus:
		return func(r Record) string { _, _, s := r.Attributes(); return s }
	default:
		return nil
	}
}

// Page returns items[page*size : page*size+size] clamped to len(items).
// A negative page, a non-positive size or a page past the end yields an empty
// slice.
func Page[T any](items []T, page, size int) []T {
	if page < 0 || size <= 0 || len(items) == 0 {
		return []T{}
	}
	if page > (len(items)-1)/size {
		return []T{}
	}
	start := page * size
	end := min(start+size, len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

// PageCount is the number of pages needed for total items.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	n := total / size
	if total%size != 0 {
		n++
	}
	return n
}
