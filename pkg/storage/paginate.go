package storage

import "github.com/rhuss/chorus/pkg/transport"

// Page applies cursor pagination to items that are already sorted in the
// requested order. After takes the items following the cursor; Before the
// items preceding it. An unknown cursor yields an empty page. The bool
// reports whether more items exist past the returned page.
func Page[T any](items []T, id func(T) string, opts transport.ListOptions) ([]T, bool) {
	opts = opts.Normalize(opts.Order)

	switch {
	case opts.After != "":
		idx := indexOf(items, id, opts.After)
		if idx < 0 {
			return nil, false
		}
		items = items[idx+1:]
	case opts.Before != "":
		idx := indexOf(items, id, opts.Before)
		if idx <= 0 {
			return nil, false
		}
		items = items[:idx]
	}

	if len(items) > opts.Limit {
		return items[:opts.Limit], true
	}
	return items, false
}

func indexOf[T any](items []T, id func(T) string, target string) int {
	for i, item := range items {
		if id(item) == target {
			return i
		}
	}
	return -1
}

// SeekClause returns the comparison operator and sort direction for a
// keyset query over a monotonically increasing sequence column. The
// operator applies against the cursor row's sequence value and is empty
// when opts carries no cursor.
func SeekClause(opts transport.ListOptions) (op, dir string) {
	dir = "ASC"
	if opts.Order == "desc" {
		dir = "DESC"
	}
	switch {
	case opts.After != "" && dir == "ASC", opts.Before != "" && dir == "DESC":
		op = ">"
	case opts.After != "", opts.Before != "":
		op = "<"
	}
	return op, dir
}

// Cursor returns the id named by After or Before, if any.
func Cursor(opts transport.ListOptions) string {
	if opts.After != "" {
		return opts.After
	}
	return opts.Before
}
