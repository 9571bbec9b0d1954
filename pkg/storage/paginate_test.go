package storage

import (
	"strings"
	"testing"

	"github.com/rhuss/chorus/pkg/transport"
)

func TestPage(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	self := func(s string) string { return s }

	tests := []struct {
		name     string
		opts     transport.ListOptions
		want     string
		wantMore bool
	}{
		{"all", transport.ListOptions{}, "a,b,c,d,e", false},
		{"limit", transport.ListOptions{Limit: 2}, "a,b", true},
		{"after", transport.ListOptions{After: "b", Limit: 2}, "c,d", true},
		{"after last", transport.ListOptions{After: "e"}, "", false},
		{"after unknown", transport.ListOptions{After: "zz"}, "", false},
		{"before", transport.ListOptions{Before: "d"}, "a,b,c", false},
		{"before first", transport.ListOptions{Before: "a"}, "", false},
		{"before with limit", transport.ListOptions{Before: "e", Limit: 3}, "a,b,c", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, more := Page(items, self, tt.opts)
			if strings.Join(got, ",") != tt.want || more != tt.wantMore {
				t.Errorf("Page = %v (more=%v), want %q (more=%v)", got, more, tt.want, tt.wantMore)
			}
		})
	}
}

func TestSeekClause(t *testing.T) {
	tests := []struct {
		opts   transport.ListOptions
		op     string
		dir    string
		cursor string
	}{
		{transport.ListOptions{Order: "asc"}, "", "ASC", ""},
		{transport.ListOptions{Order: "desc"}, "", "DESC", ""},
		{transport.ListOptions{Order: "asc", After: "x"}, ">", "ASC", "x"},
		{transport.ListOptions{Order: "asc", Before: "x"}, "<", "ASC", "x"},
		{transport.ListOptions{Order: "desc", After: "x"}, "<", "DESC", "x"},
		{transport.ListOptions{Order: "desc", Before: "y"}, ">", "DESC", "y"},
	}
	for _, tt := range tests {
		op, dir := SeekClause(tt.opts)
		if op != tt.op || dir != tt.dir {
			t.Errorf("SeekClause(%+v) = %q %q, want %q %q", tt.opts, op, dir, tt.op, tt.dir)
		}
		if got := Cursor(tt.opts); got != tt.cursor {
			t.Errorf("Cursor(%+v) = %q, want %q", tt.opts, got, tt.cursor)
		}
	}
}
