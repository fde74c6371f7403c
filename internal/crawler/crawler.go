package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/product-crawler/internal/discovery"
	"github.com/user/product-crawler/internal/domain"
	"github.com/user/product-crawler/internal/frontier"
	"github.com/user/product-crawler/internal/monitoring"
	"github.com/user/product-crawler/internal/product"
)

// ErrFatal wraps every error that aborts a crawl.
var ErrFatal = errors.New("crawl aborted")

// Stop reasons reported in Stats.
const (
	StopExhausted = "frontier_exhausted"
	StopMaxPages  = "max_pages"
	StopTimeout   = "timeout"
	StopCancelled = "cancelled"
	StopFatal     = "fatal"
)

// Sink receives built product records. Offer reports whether the record
// was written; false with a nil error means it was a duplicate.
type Sink interface {
	Offer(p *domain.Product) (bool, error)
}

// Mirror is an optional secondary store for written records. Its failures
// are logged and never stop the crawl.
type Mirror interface {
	SaveProduct(ctx context.Context, p *domain.Product) error
}

// Config bounds a crawl.
type Config struct {
	Concurrency int
	// MaxPages caps the number of fetches dispatched. Zero is unlimited.
	MaxPages int
	// Timeout caps the wall-clock duration of Run. Zero is unlimited.
	Timeout time.Duration
}

// Stats summarises a finished crawl.
type Stats struct {
	Dispatched    int
	Fetched       int
	Failed        int
	ProductPages  int
	Written       int
	Duplicates    int
	MissingTitles int
	Enqueued      int
	Reason        string
	Duration      time.Duration
}

// Option configures optional collaborators of a Crawler.
type Option func(*Crawler)

// WithMirror copies every written record into m.
func WithMirror(m Mirror) Option {
	return func(c *Crawler) { c.mirror = m }
}

// Crawler schedules fetches over a bounded worker pool. A single
// coordinator goroutine owns the frontier; workers fetch a page, discover
// its links, build a record for product pages and offer it to the sink,
// then report back to the coordinator.
type Crawler struct {
	config     Config
	fetcher    Fetcher
	discoverer *discovery.Discoverer
	builder    *product.Builder
	sink       Sink
	visited    frontier.VisitedSet
	mirror     Mirror
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewCrawler(cfg Config, f Fetcher, d *discovery.Discoverer, b *product.Builder, s Sink, v frontier.VisitedSet, m *monitoring.Metrics, l *zap.Logger, opts ...Option) *Crawler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	c := &Crawler{
		config:     cfg,
		fetcher:    f,
		discoverer: d,
		builder:    b,
		sink:       s,
		visited:    v,
		metrics:    m,
		logger:     l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type result struct {
	task     domain.CrawlTask
	children []domain.CrawlTask
	fetchErr error
	buildErr error
	product  *domain.Product
	written  bool
	sinkErr  error
}

// run holds the coordinator's state for one call to Run.
type run struct {
	queue      frontier.Queue
	inFlight   int
	stopping   bool
	fatal      error
	stats      Stats
	firstBuilt bool
}

// Run crawls from seeds until the frontier is empty and nothing is in
// flight, a budget is exhausted, ctx is cancelled or a fatal error occurs.
// Cancellation and budgets stop new dispatches and let in-flight work
// finish. Only fatal errors are returned; they wrap ErrFatal.
func (c *Crawler) Run(ctx context.Context, seeds []domain.CrawlTask) (Stats, error) {
	start := time.Now()
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	// Workers keep going after ctx is done so that in-flight fetches can
	// complete; the fetcher's own timeout bounds them.
	workCtx := context.WithoutCancel(ctx)

	r := &run{}
	for _, seed := range seeds {
		c.enqueue(ctx, r, seed)
	}

	results := make(chan result)
	// g only tracks worker lifetimes. Worker errors travel in result and
	// are judged by handle on this goroutine.
	var g errgroup.Group
	done := ctx.Done()
	for {
		for c.canDispatch(ctx, r) {
			task, _ := r.queue.Pop()
			r.inFlight++
			r.stats.Dispatched++
			c.metrics.InFlight.Inc()
			c.metrics.FrontierSize.Set(float64(r.queue.Len()))
			c.transition(task, domain.StateFetching)
			g.Go(func() error {
				results <- c.process(workCtx, task)
				return nil
			})
		}
		if r.inFlight == 0 {
			break
		}
		select {
		case res := <-results:
			r.inFlight--
			c.metrics.InFlight.Dec()
			c.handle(ctx, r, res)
		case <-done:
			done = nil
			c.stop(r, contextReason(ctx))
		}
	}
	_ = g.Wait() // workers always return nil

	switch {
	case r.fatal != nil:
		r.stats.Reason = StopFatal
	case r.stats.Reason == "":
		r.stats.Reason = StopExhausted
	}
	r.stats.Duration = time.Since(start)
	c.metrics.FrontierSize.Set(0)
	return r.stats, r.fatal
}

func (c *Crawler) canDispatch(ctx context.Context, r *run) bool {
	if ctx.Err() != nil {
		c.stop(r, contextReason(ctx))
	}
	if r.stopping || r.fatal != nil || r.queue.Len() == 0 || r.inFlight >= c.config.Concurrency {
		return false
	}
	if c.config.MaxPages > 0 && r.stats.Dispatched >= c.config.MaxPages {
		c.stop(r, StopMaxPages)
		return false
	}
	return true
}

func (c *Crawler) stop(r *run, reason string) {
	if r.stopping {
		return
	}
	r.stopping = true
	r.stats.Reason = reason
	c.logger.Info("stopping crawl",
		zap.String("reason", reason),
		zap.Int("pending", r.queue.Len()),
		zap.Int("in_flight", r.inFlight))
}

func (c *Crawler) abort(r *run, err error) {
	if r.fatal == nil {
		r.fatal = fmt.Errorf("%w: %w", ErrFatal, err)
		c.logger.Error("fatal crawl error", zap.Error(err))
	}
}

func contextReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StopTimeout
	}
	return StopCancelled
}

func (c *Crawler) enqueue(ctx context.Context, r *run, task domain.CrawlTask) {
	// Shutdown must not surface as a visited-set failure.
	isNew, err := c.visited.MarkIfNew(context.WithoutCancel(ctx), task.URL)
	if err != nil {
		c.abort(r, fmt.Errorf("visited set: %w", err))
		return
	}
	if !isNew {
		return
	}
	r.queue.Push(task)
	r.stats.Enqueued++
	c.transition(task, domain.StatePending)
}

func (c *Crawler) transition(task domain.CrawlTask, state domain.TaskState) {
	c.metrics.IncTransition(string(state))
	if ce := c.logger.Check(zap.DebugLevel, "task state"); ce != nil {
		ce.Write(
			zap.String("url", task.URL),
			zap.Stringer("kind", task.Kind),
			zap.Int("depth", task.Depth),
			zap.String("state", string(state)))
	}
}

// process runs on a worker goroutine.
func (c *Crawler) process(ctx context.Context, task domain.CrawlTask) result {
	res := result{task: task}

	start := time.Now()
	doc, err := c.fetcher.Fetch(ctx, task.URL)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		res.fetchErr = err
		return res
	}
	c.metrics.IncFetched(task.Kind.String())

	res.children = c.discoverer.Discover(doc, task)
	if task.Kind != domain.ProductPage {
		return res
	}

	p, err := c.builder.Build(doc)
	if err != nil {
		res.buildErr = err
		return res
	}
	res.product = p
	res.written, res.sinkErr = c.sink.Offer(p)
	if res.written && c.mirror != nil {
		if err := c.mirror.SaveProduct(ctx, p); err != nil {
			c.logger.Warn("failed to mirror record", zap.String("url", p.URL), zap.Error(err))
			c.metrics.IncErrorsTotal("mirror_failed")
		}
	}
	return res
}

// handle runs on the coordinator goroutine.
func (c *Crawler) handle(ctx context.Context, r *run, res result) {
	task := res.task
	if res.fetchErr != nil {
		r.stats.Failed++
		c.metrics.IncErrorsTotal("fetch_failed")
		c.transition(task, domain.StateFailed)
		c.logger.Warn("failed to fetch", zap.String("url", task.URL), zap.Error(res.fetchErr))
		return
	}
	r.stats.Fetched++
	c.transition(task, domain.StateParsed)

	if task.Kind == domain.ProductPage {
		r.stats.ProductPages++
		c.handleRecord(r, res)
	}

	if ctx.Err() != nil {
		c.stop(r, contextReason(ctx))
	}
	if r.stopping || r.fatal != nil {
		return
	}
	for _, child := range res.children {
		c.enqueue(ctx, r, child)
	}
	c.metrics.FrontierSize.Set(float64(r.queue.Len()))
}

func (c *Crawler) handleRecord(r *run, res result) {
	first := !r.firstBuilt
	r.firstBuilt = true

	switch {
	case errors.Is(res.buildErr, product.ErrRegionMissing):
		c.metrics.IncErrorsTotal("region_missing")
		if first {
			c.abort(r, fmt.Errorf("product rules do not match the first product page: %w", res.buildErr))
			return
		}
		c.logger.Warn("product page without expected layout", zap.String("url", res.task.URL), zap.Error(res.buildErr))
	case errors.Is(res.buildErr, product.ErrMissingTitle):
		r.stats.MissingTitles++
		c.metrics.IncErrorsTotal("missing_title")
		c.logger.Warn("dropping record without title", zap.String("url", res.task.URL))
	case res.buildErr != nil:
		c.metrics.IncErrorsTotal("build_failed")
		c.logger.Warn("failed to build record", zap.String("url", res.task.URL), zap.Error(res.buildErr))
	case res.sinkErr != nil:
		c.abort(r, fmt.Errorf("sink: %w", res.sinkErr))
	case res.written:
		r.stats.Written++
		c.metrics.IncRecords("written")
	default:
		r.stats.Duplicates++
		c.metrics.IncRecords("duplicate")
	}
}
