// Package frontier holds the crawl's pending work and the record of every
// URL that has ever been scheduled.
package frontier

import (
	"context"
	"sync"

	"github.com/user/product-crawler/internal/domain"
	"github.com/user/product-crawler/pkg/utils"
)

// Queue is an unbounded FIFO of crawl tasks. It is owned by a single
// goroutine and is not safe for concurrent use.
type Queue struct {
	items []domain.CrawlTask
	head  int
}

// Push appends a task.
func (q *Queue) Push(t domain.CrawlTask) {
	q.items = append(q.items, t)
}

// Pop removes the oldest task.
func (q *Queue) Pop() (domain.CrawlTask, bool) {
	if q.head == len(q.items) {
		return domain.CrawlTask{}, false
	}
	t := q.items[q.head]
	q.items[q.head] = domain.CrawlTask{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return t, true
}

// Len is the number of pending tasks.
func (q *Queue) Len() int { return len(q.items) - q.head }

// VisitedSet remembers which URLs have been scheduled. MarkIfNew records
// url and reports whether it had not been seen before; it is atomic, so
// concurrent callers never both get true for the same URL.
type VisitedSet interface {
	MarkIfNew(ctx context.Context, url string) (bool, error)
}

// Memory is an in-process VisitedSet keyed by normalised URL.
type Memory struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewMemory returns an empty set.
func NewMemory() *Memory {
	return &Memory{urls: make(map[string]struct{})}
}

// MarkIfNew implements VisitedSet.
func (m *Memory) MarkIfNew(_ context.Context, rawURL string) (bool, error) {
	key, err := utils.NormalizeURL(rawURL)
	if err != nil {
		key = rawURL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.urls[key]; ok {
		return false, nil
	}
	m.urls[key] = struct{}{}
	return true, nil
}

// Len is the number of URLs recorded.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.urls)
}
