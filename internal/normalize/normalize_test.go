package normalize

import (
	"slices"
	"strings"
	"testing"
)

func TestStripHardSpaces(t *testing.T) {
	t.Parallel()

	in := []string{"Lenovo\u00a0ThinkPad", "\u00a0\u00a0", "plain"}
	got := StripHardSpaces(in)
	want := []string{"LenovoThinkPad", "", "plain"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
	if in[0] != "Lenovo\u00a0ThinkPad" {
		t.Error("input slice must not be modified")
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"first value", []string{"A", "B"}, "A"},
		{"skips empty and hard-space-only", []string{"", "\u00a0", "B"}, "B"},
		{"hard spaces removed everywhere", []string{"Dell\u00a0XPS\u00a013"}, "DellXPS13"},
		{"no values", nil, ""},
		{"only blanks", []string{"\u00a0", " "}, ""},
		{"invalid utf-8 replaced", []string{"Laptop \xff"}, "Laptop \uFFFD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Title(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTitleNeverKeepsHardSpaces(t *testing.T) {
	t.Parallel()

	for _, title := range []string{"a\u00a0b", "\u00a0lead", "trail\u00a0", "x\u00a0\u00a0y\u00a0z"} {
		got := Title([]string{title})
		if want := strings.ReplaceAll(title, "\u00a0", ""); got != want {
			t.Errorf("Title(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestPrice(t *testing.T) {
	t.Parallel()

	if got := Price([]string{"Rs.\u00a0", "1,299"}); got != "Rs.1,299" {
		t.Errorf("unexpected price %q", got)
	}
	if got := Price(nil); got != "" {
		t.Errorf("expected empty price, got %q", got)
	}
}

func TestCategoryList(t *testing.T) {
	t.Parallel()

	got := CategoryList([]string{"Home", "Electronics", "Laptops", "ThinkPad X1"})
	if want := []string{"Electronics", "Laptops"}; !slices.Equal(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}

	for _, short := range [][]string{nil, {"Home"}, {"Home", "Leaf"}} {
		got := CategoryList(short)
		if got == nil || len(got) != 0 {
			t.Errorf("CategoryList(%q) = %#v, want empty non-nil slice", short, got)
		}
	}
}

func TestRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"80"}, "4.0"},
		{[]string{"93.5"}, "4.7"},
		{[]string{"100"}, "5.0"},
		{[]string{"0"}, "-1"},
		{[]string{"0.0"}, "-1"},
		{[]string{"-20"}, "-1"},
		{[]string{"140"}, "5.0"},
		{[]string{"80", "20"}, "4.0"},
		{nil, "-1"},
		{[]string{"abc"}, "-1"},
	}
	for _, tt := range tests {
		if got := Rating(tt.in).String(); got != tt.want {
			t.Errorf("Rating(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if Rating(nil).Rated {
		t.Error("missing rating must be distinguishable from zero stars")
	}
	if Rating([]string{"0"}).Rated {
		t.Error("a zero-width bar means no reviews, not zero stars")
	}
}

func TestRatingsCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []string
		want int
	}{
		{[]string{"(123)"}, 123},
		{[]string{" (1,234) "}, 1234},
		{[]string{"7"}, 7},
		{nil, 0},
		{[]string{"(n/a)"}, 0},
		{[]string{"(-3)"}, 0},
	}
	for _, tt := range tests {
		if got := RatingsCount(tt.in); got != tt.want {
			t.Errorf("RatingsCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFeatures(t *testing.T) {
	t.Parallel()

	in := []string{"8GB\u00a0RAM", "8GB RAM", "SSD"}
	got := Features(in)
	if want := []string{"8GBRAM", "8GB RAM", "SSD"}; !slices.Equal(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := Features(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}
