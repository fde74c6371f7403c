package domain

import (
	"encoding/json"
	"strconv"
)

// TaskKind tells the scheduler what a fetched page is expected to be.
type TaskKind int

const (
	SearchPage TaskKind = iota
	ProductPage
	ListingPage
)

func (k TaskKind) String() string {
	switch k {
	case SearchPage:
		return "search"
	case ProductPage:
		return "product"
	case ListingPage:
		return "listing"
	default:
		return "unknown"
	}
}

// ParseTaskKind is the inverse of TaskKind.String.
func ParseTaskKind(s string) (TaskKind, bool) {
	switch s {
	case "search":
		return SearchPage, true
	case "product":
		return ProductPage, true
	case "listing":
		return ListingPage, true
	}
	return 0, false
}

// TaskState is the lifecycle of a CrawlTask inside the scheduler.
type TaskState string

const (
	StatePending  TaskState = "pending"
	StateFetching TaskState = "fetching"
	StateParsed   TaskState = "parsed"
	StateFailed   TaskState = "failed"
)

// CrawlTask represents a single URL to be processed by a worker.
type CrawlTask struct {
	URL   string
	Kind  TaskKind
	Depth int
}

// RawFieldBag holds the raw strings pulled out of one document, per field.
type RawFieldBag map[string][]string

// Rating is a star rating in [0, 5] or the unrated sentinel.
// It serialises as a one-decimal string, "-1" when unrated.
type Rating struct {
	Stars float64
	Rated bool
}

// Unrated is the rating of a product without any reviews.
var Unrated = Rating{}

func (r Rating) String() string {
	if !r.Rated {
		return "-1"
	}
	return strconv.FormatFloat(r.Stars, 'f', 1, 64)
}

func (r Rating) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Rating) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "-1" {
		*r = Unrated
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*r = Rating{Stars: v, Rated: true}
	return nil
}

// Product is one extracted product record. Title is the dedup key.
type Product struct {
	URL          string   `json:"-"`
	Title        string   `json:"title"`
	Price        string   `json:"price"`
	CategoryList []string `json:"category_list"`
	Rating       Rating   `json:"rating"`
	RatingsCount int      `json:"ratings_count,string"`
	Features     []string `json:"features"`
}
