package scrape

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"coachranger/internal/domain"
	"coachranger/internal/monitoring"
)

// Store is the slice of the persistence layer the pipeline needs: an
// existence check on the natural key and one transactional write per listing.
type Store interface {
	ExistsBySourceID(ctx context.Context, sourceID string) (bool, error)
	SaveListing(ctx context.Context, listing *domain.Listing) (int, error)
}

// SeenCache short-circuits the existence check for recently ingested
// sourceIds. It is an optimization only: the pipeline is correct with a nil
// cache, since dedup ultimately rests on the store's unique source_id index.
type SeenCache interface {
	IsSeen(ctx context.Context, sourceID string) (bool, error)
	MarkSeen(ctx context.Context, sourceID string, ttl time.Duration) error
}

// Options bound the pipeline's fan-out and photo cap.
type Options struct {
	Workers       int
	MaxPhotos     int
	DetailBaseURL string
	SeenTTL       time.Duration
}

// Pipeline ingests listings from the source site into the store: index scan,
// bounded concurrent detail extraction, photo gating and transactional commit.
type Pipeline struct {
	scanner *IndexScanner
	fetcher *Fetcher
	store   Store
	cache   SeenCache
	metrics *monitoring.Metrics
	logger  *zap.Logger
	opts    Options
}

func NewPipeline(scanner *IndexScanner, fetcher *Fetcher, store Store, cache SeenCache, m *monitoring.Metrics, l *zap.Logger, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		scanner: scanner,
		fetcher: fetcher,
		store:   store,
		cache:   cache,
		metrics: m,
		logger:  l,
		opts:    opts,
	}
}

type outcome int

const (
	outcomeCommitted outcome = iota
	outcomeSkipped
	outcomeDropped
	outcomeFailed
)

// Run executes one ingestion pass. An index fetch failure aborts the run with
// zero writes; every per-candidate failure is contained at the worker
// boundary and only counted. Candidates are processed with at most
// opts.Workers in flight; commits may land in any order.
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{StartedAt: time.Now()}

	candidates, err := p.scanner.Discover(ctx)
	if err != nil {
		p.metrics.IncFailures("index_fetch")
		return summary, err
	}
	summary.Discovered = len(candidates)
	p.metrics.AddDiscovered(len(candidates))
	p.logger.Info("index scan complete", zap.Int("candidates", len(candidates)))

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, p.opts.Workers)
	)

	for _, cand := range candidates {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(cand domain.Candidate) {
			defer wg.Done()
			defer func() { <-semaphore }()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("worker panic", zap.String("url", cand.URL), zap.Any("panic", r))
					mu.Lock()
					summary.Failed++
					mu.Unlock()
					p.metrics.IncFailures("panic")
				}
			}()

			result := p.processCandidate(ctx, cand)

			mu.Lock()
			defer mu.Unlock()
			switch result {
			case outcomeCommitted:
				summary.Committed++
			case outcomeSkipped:
				summary.Skipped++
			case outcomeDropped:
				summary.DroppedNoPhotos++
			case outcomeFailed:
				summary.Failed++
			}
		}(cand)
	}

	wg.Wait()
	summary.FinishedAt = time.Now()

	p.logger.Info("ingestion run complete",
		zap.Int("discovered", summary.Discovered),
		zap.Int("skipped", summary.Skipped),
		zap.Int("committed", summary.Committed),
		zap.Int("dropped_no_photos", summary.DroppedNoPhotos),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// processCandidate runs one candidate end-to-end: existence check, fetch,
// extract, photo gate, commit. The existence check comes before the fetch so
// already-known listings cost no network calls.
func (p *Pipeline) processCandidate(ctx context.Context, cand domain.Candidate) outcome {
	if known, err := p.isKnown(ctx, cand.SourceID); err != nil {
		// Dedup falls through to the store's unique index, so keep going.
		p.logger.Warn("existence check failed, proceeding", zap.String("source_id", cand.SourceID), zap.Error(err))
	} else if known {
		p.markSeen(ctx, cand.SourceID) // warm the cache for the next run
		p.logger.Debug("skipping known listing", zap.String("source_id", cand.SourceID))
		p.metrics.IncSkipped("already_known")
		return outcomeSkipped
	}

	body, err := p.fetcher.Get(ctx, cand.URL)
	if err != nil {
		p.logger.Warn("detail fetch failed", zap.String("url", cand.URL), zap.Error(err))
		p.metrics.IncFailures("detail_fetch")
		return outcomeFailed
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		perr := &domain.ParseError{URL: cand.URL, Err: err}
		p.logger.Warn("detail parse failed", zap.String("url", cand.URL), zap.Error(perr))
		p.metrics.IncFailures("detail_parse")
		return outcomeFailed
	}

	listing := ExtractListing(doc, cand)
	listing.Photos = SelectPhotos(doc, p.opts.DetailBaseURL, p.opts.MaxPhotos)

	// Photos are proof the listing is real and complete, not an enrichment.
	if len(listing.Photos) == 0 {
		p.logger.Info("dropping listing", zap.String("url", cand.URL), zap.Error(domain.ErrNoPhotos))
		p.metrics.IncSkipped("no_photos")
		return outcomeDropped
	}

	if _, err := p.store.SaveListing(ctx, listing); err != nil {
		p.logger.Error("commit failed", zap.String("url", cand.URL), zap.Error(err))
		p.metrics.IncFailures("commit")
		return outcomeFailed
	}

	p.markSeen(ctx, cand.SourceID)
	p.metrics.IncCommitted()
	p.logger.Info("listing committed",
		zap.String("source_id", cand.SourceID),
		zap.Int("year", listing.Year),
		zap.Int("price", listing.Price),
		zap.Int("photos", len(listing.Photos)),
	)
	return outcomeCommitted
}

func (p *Pipeline) isKnown(ctx context.Context, sourceID string) (bool, error) {
	if p.cache != nil {
		seen, err := p.cache.IsSeen(ctx, sourceID)
		if err != nil {
			p.logger.Warn("seen-cache lookup failed", zap.String("source_id", sourceID), zap.Error(err))
		} else if seen {
			return true, nil
		}
	}
	return p.store.ExistsBySourceID(ctx, sourceID)
}

func (p *Pipeline) markSeen(ctx context.Context, sourceID string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.MarkSeen(ctx, sourceID, p.opts.SeenTTL); err != nil {
		p.logger.Warn("failed to mark listing as seen", zap.String("source_id", sourceID), zap.Error(err))
	}
}
