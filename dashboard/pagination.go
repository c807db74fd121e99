package dashboard

import "github.com/CrowderSoup/microjobs/database"

// PageSize is the number of tasks shown per page.
const PageSize = 10

// PageCount returns ceil(n / PageSize). An empty collection has no pages.
func PageCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + PageSize - 1) / PageSize
}

// ClampPage pulls page back into [0, PageCount(n)-1]. With no pages the only
// valid index is 0.
func ClampPage(page, n int) int {
	last := PageCount(n) - 1
	if page > last {
		page = last
	}
	if page < 0 {
		page = 0
	}
	return page
}

// PageBounds returns the half-open slice bounds of page within a collection
// of n tasks. Both bounds are clamped to [0, n].
func PageBounds(page, n int) (start, end int) {
	if page < 0 {
		page = 0
	}
	start = min(page*PageSize, n)
	end = min(start+PageSize, n)
	return start, end
}

// Paginate returns the tasks shown on page. The result shares its backing
// array with tasks.
func Paginate(tasks []database.Task, page int) []database.Task {
	start, end := PageBounds(page, len(tasks))
	return tasks[start:end]
}

// PageItem is one entry of the pager. Break items stand for a run of
// hidden pages.
type PageItem struct {
	Index  int
	Number int
	Active bool
	Break  bool
}

// PageItems lays out the pager for count pages around current: the first and
// last pages are always shown along with rangeDisplayed pages centred on the
// current one, and gaps collapse into a single break.
func PageItems(current, count, rangeDisplayed int) []PageItem {
	if count <= 0 {
		return nil
	}
	current = max(0, min(current, count-1))

	lo := current - rangeDisplayed/2
	hi := lo + rangeDisplayed - 1
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > count-1 {
		lo -= hi - (count - 1)
		hi = count - 1
		lo = max(lo, 0)
	}

	var items []PageItem
	for i := 0; i < count; i++ {
		if i == 0 || i == count-1 || (i >= lo && i <= hi) {
			items = append(items, PageItem{Index: i, Number: i + 1, Active: i == current})
			continue
		}
		if len(items) > 0 && !items[len(items)-1].Break {
			items = append(items, PageItem{Break: true})
		}
	}
	return items
}
