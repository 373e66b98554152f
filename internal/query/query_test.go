package query

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type row struct {
	title, description, status string
}

func (r row) Attributes() (string, string, string) { return r.title, r.description, r.status }

func titles(rows []row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.title
	}
	return out
}

var twoRows = []row{
	{title: "B", status: "pending"},
	{title: "A", status: "completed"},
}

func TestApplySortsByTitle(t *testing.T) {
	got := Apply(twoRows, Query{Status: StatusAll, Sort: SortConfig{Key: SortTitle, Direction: Ascending}})
	assert.Equal(t, []string{"A", "B"}, titles(got))

	got = Apply(twoRows, Query{Status: StatusAll, Sort: SortConfig{Key: SortTitle, Direction: Descending}})
	assert.Equal(t, []string{"B", "A"}, titles(got))
}

func TestApplyFiltersByStatus(t *testing.T) {
	got := Apply(twoRows, Query{Status: "completed", Sort: SortConfig{Key: SortTitle, Direction: Ascending}})
	assert.Equal(t, []row{{title: "A", status: "completed"}}, got)

	got = Apply(twoRows, Query{Status: "in-progress"})
	assert.Empty(t, got)
}

func TestApplySearchIsCaseInsensitiveOnTitleAndDescription(t *testing.T) {
	rows := []row{
		{title: "Buy milk", description: "Description for Buy milk", status: "pending"},
		{title: "Walk", description: "take the DOG out", status: "pending"},
		{title: "Read", description: "a book", status: "completed"},
	}
	assert.Equal(t, []string{"Buy milk"}, titles(Apply(rows, Query{Search: "MILK"})))
	assert.Equal(t, []string{"Walk"}, titles(Apply(rows, Query{Search: "dog"})))
	assert.Len(t, Apply(rows, Query{Search: ""}), 3)
	assert.Empty(t, Apply(rows, Query{Search: "zebra"}))
}

func TestApplyUnknownSortKeyKeepsOrder(t *testing.T) {
	got := Apply(twoRows, Query{Sort: SortConfig{Key: "priority", Direction: Descending}})
	assert.Equal(t, []string{"B", "A"}, titles(got))
}

func TestApplySortIsStableOnTies(t *testing.T) {
	rows := []row{
		{title: "one", status: "pending"},
		{title: "two", status: "completed"},
		{title: "three", status: "pending"},
	}
	got := Apply(rows, Query{Sort: SortConfig{Key: SortStatus, Direction: Ascending}})
	assert.Equal(t, []string{"two", "one", "three"}, titles(got))
}

func TestApplyUsesCollation(t *testing.T) {
	rows := []row{{title: "banana"}, {title: "Apple"}, {title: "cherry"}, {title: "Éclair"}}
	got := Apply(rows, Query{Sort: SortConfig{Key: SortTitle, Direction: Ascending}, Locale: language.English})
	assert.Equal(t, []string{"Apple", "banana", "cherry", "Éclair"}, titles(got))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	rows := []row{{title: "c"}, {title: "a"}, {title: "b"}}
	_ = Apply(rows, Query{Sort: SortConfig{Key: SortTitle, Direction: Ascending}})
	assert.Equal(t, []string{"c", "a", "b"}, titles(rows))
}

func TestApplyIsIdempotent(t *testing.T) {
	rows := []row{
		{title: "delta", description: "x", status: "pending"},
		{title: "alpha", description: "x", status: "completed"},
		{title: "charlie", description: "y", status: "pending"},
		{title: "bravo", description: "x", status: "pending"},
	}
	q := Query{Search: "x", Status: "pending", Sort: SortConfig{Key: SortTitle, Direction: Descending}}
	first := Page(Apply(rows, q), 0, 10)
	second := Page(Apply(rows, q), 0, 10)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"delta", "bravo"}, titles(first))
}

func TestPage(t *testing.T) {
	sorted := Apply(twoRows, Query{Sort: SortConfig{Key: SortTitle, Direction: Ascending}})

	got := Page(sorted, 1, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].title)

	assert.Empty(t, Page(sorted, 5, 1))
	assert.NotNil(t, Page(sorted, 5, 1))
	assert.Len(t, Page(sorted, 0, 5), 2)
	assert.Empty(t, Page(sorted, -1, 5))
	assert.Empty(t, Page(sorted, 0, 0))
}

func TestPageFarPastEnd(t *testing.T) {
	assert.Empty(t, Page([]int{1, 2}, math.MaxInt64/2+1, 2))
	assert.Empty(t, Page([]int{1, 2}, math.MaxInt, math.MaxInt))
	assert.Empty(t, Page([]int{}, 0, 10))
	assert.Equal(t, []int{3}, Page([]int{1, 2, 3}, 1, 2))
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0, 5))
	assert.Equal(t, 1, PageCount(5, 5))
	assert.Equal(t, 2, PageCount(6, 5))
	assert.Equal(t, 0, PageCount(6, 0))
	assert.Equal(t, 1, PageCount(6, math.MaxInt))
}

func TestMemoRecomputesOnlyOnChange(t *testing.T) {
	var m Memo[row]
	loads := 0
	load := func() []row {
		loads++
		return twoRows
	}
	q := Query{Sort: SortConfig{Key: SortTitle, Direction: Ascending}}

	first := m.View(1, q, load)
	second := m.View(1, q, load)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)

	m.View(2, q, load)
	assert.Equal(t, 2, loads)

	q.Search = "a"
	got := m.View(2, q, load)
	assert.Equal(t, 3, loads)
	assert.Equal(t, []string{"A"}, titles(got))

	got[0].title = "changed"
	again := m.View(2, q, load)
	assert.Equal(t, "A", again[0].title)
}
