package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tomszw/gallerysync/internal/store"
	"github.com/tomszw/gallerysync/pkg/media"
	"github.com/tomszw/gallerysync/pkg/source"
)

const (
	defaultBatchSize    = 20
	defaultWorkers      = 8
	defaultMaxAttempts  = 5
	defaultRetryDelay   = 2 * time.Second
	defaultListingLimit = 100
)

// MediaValidator confirms that a normalized URL serves real media.
type MediaValidator interface {
	IsValidMedia(ctx context.Context, url string) bool
}

// Options tunes the coordinator. Zero values select defaults.
type Options struct {
	// BatchSize is how many listing items share one transaction.
	BatchSize int
	// Workers bounds the probe pool; clamped to [3, 10].
	Workers int
	// MaxAttempts bounds contention retries per batch; clamped to [3, 6].
	MaxAttempts int
	// RetryDelay is the linear backoff unit (wait = attempt * RetryDelay).
	RetryDelay time.Duration
	// ListingLimit is the page size requested from the source.
	ListingLimit int
}

// Summary aggregates the outcome of a sync run. It is the only thing
// callers get back; internal failures are logged, not raised.
type Summary struct {
	Communities   int
	Created       int
	Skipped       int
	Ignored       int
	Assets        int
	Galleries     int
	FailedBatches int
}

func (s *Summary) add(other Summary) {
	s.Created += other.Created
	s.Skipped += other.Skipped
	s.Ignored += other.Ignored
	s.Assets += other.Assets
	s.Galleries += other.Galleries
	s.FailedBatches += other.FailedBatches
}

// Coordinator drives ingestion: it walks the listing matrix per
// community, expands posts into media candidates, validates them with
// a bounded worker pool, and persists results in per-batch
// transactions with contention retry.
type Coordinator struct {
	store     store.Store
	client    source.Client
	validator MediaValidator
	log       *zap.SugaredLogger

	batchSize    int
	workers      int
	maxAttempts  int
	retryDelay   time.Duration
	listingLimit int
}

// New creates a Coordinator over the given boundaries.
func New(st store.Store, client source.Client, validator MediaValidator, log *zap.SugaredLogger, opts Options) *Coordinator {
	c := &Coordinator{
		store:        st,
		client:       client,
		validator:    validator,
		log:          log,
		batchSize:    opts.BatchSize,
		workers:      opts.Workers,
		maxAttempts:  opts.MaxAttempts,
		retryDelay:   opts.RetryDelay,
		listingLimit: opts.ListingLimit,
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultBatchSize
	}
	if c.workers <= 0 {
		c.workers = defaultWorkers
	}
	c.workers = clamp(c.workers, 3, 10)
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	c.maxAttempts = clamp(c.maxAttempts, 3, 6)
	if c.retryDelay <= 0 {
		c.retryDelay = defaultRetryDelay
	}
	if c.listingLimit <= 0 {
		c.listingLimit = defaultListingLimit
	}
	return c
}

// SyncAllActive ingests every active, non-excluded community.
func (c *Coordinator) SyncAllActive(ctx context.Context) (Summary, error) {
	communities, err := c.store.ListActiveCommunities(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list communities: %w", err)
	}

	var total Summary
	for i := range communities {
		s := c.syncCommunity(ctx, &communities[i])
		total.add(s)
		total.Communities++
	}
	return total, nil
}

// SyncCommunity ingests one community by its source reference,
// creating the community row if it does not exist yet.
func (c *Coordinator) SyncCommunity(ctx context.Context, ref string) (Summary, error) {
	community, created, err := c.store.GetOrCreateCommunity(ctx, ref)
	if err != nil {
		return Summary{}, fmt.Errorf("community %s: %w", ref, err)
	}
	if created {
		c.log.Infow("registered community", "community", ref)
	}

	s := c.syncCommunity(ctx, community)
	s.Communities = 1
	return s, nil
}

// SyncList ingests the named communities in order, creating rows as
// needed. A community that fails to resolve is logged and skipped.
func (c *Coordinator) SyncList(ctx context.Context, refs []string) (Summary, error) {
	var total Summary
	for _, ref := range refs {
		s, err := c.SyncCommunity(ctx, ref)
		if err != nil {
			c.log.Errorw("community sync failed", "community", ref, "error", err)
			continue
		}
		total.add(s)
		total.Communities++
	}
	return total, nil
}

func (c *Coordinator) syncCommunity(ctx context.Context, community *store.Community) Summary {
	if info, err := c.client.About(ctx, community.SourceRef); err != nil {
		c.log.Warnw("community metadata fetch failed",
			"community", community.SourceRef, "error", err)
	} else if err := c.store.UpdateCommunityMeta(ctx, community.ID, info.Title, info.DisplayName); err != nil {
		c.log.Warnw("community metadata update failed",
			"community", community.SourceRef, "error", err)
	}

	var total Summary
	for _, combo := range source.ListingMatrix() {
		posts, err := c.client.Listing(ctx, community.SourceRef, combo.Sort, combo.Timeframe, c.listingLimit)
		if err != nil {
			// A failed listing contributes nothing; the run continues.
			c.log.Warnw("listing fetch failed",
				"community", community.SourceRef,
				"sort", combo.Sort, "timeframe", combo.Timeframe,
				"error", err)
			continue
		}
		if len(posts) == 0 {
			continue
		}

		c.log.Infow("processing listing",
			"community", community.SourceRef,
			"sort", combo.Sort, "timeframe", combo.Timeframe,
			"posts", len(posts))
		s := c.processListing(ctx, community, posts)
		total.add(s)
	}
	return total
}

func (c *Coordinator) processListing(ctx context.Context, community *store.Community, posts []source.RawPost) Summary {
	var total Summary
	for start := 0; start < len(posts); start += c.batchSize {
		end := min(start+c.batchSize, len(posts))
		s, err := c.processBatchWithRetry(ctx, community, posts[start:end])
		if err != nil {
			total.FailedBatches++
			c.log.Errorw("batch abandoned",
				"community", community.SourceRef, "size", end-start, "error", err)
			continue
		}
		total.add(s)
	}
	return total
}

func (c *Coordinator) processBatchWithRetry(ctx context.Context, community *store.Community, batch []source.RawPost) (Summary, error) {
	for attempt := 1; ; attempt++ {
		var summary Summary
		err := c.store.WithTx(ctx, func(tx store.Tx) error {
			var txErr error
			summary, txErr = c.processBatch(ctx, tx, community, batch)
			return txErr
		})
		if err == nil {
			return summary, nil
		}
		if !store.IsBusy(err) || attempt >= c.maxAttempts {
			return Summary{}, err
		}

		wait := time.Duration(attempt) * c.retryDelay
		c.log.Warnw("storage contention, retrying batch",
			"community", community.SourceRef, "attempt", attempt, "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return Summary{}, ctx.Err()
		}
	}
}

// processBatch runs one batch inside the supplied transaction:
// exclude ignored and known posts, insert the remainder, expand each
// new post into validated media assets, then repair duplicates.
func (c *Coordinator) processBatch(ctx context.Context, tx store.Tx, community *store.Community, batch []source.RawPost) (Summary, error) {
	var sum Summary

	ids := make([]string, 0, len(batch))
	for i := range batch {
		if batch[i].ExternalID != "" {
			ids = append(ids, batch[i].ExternalID)
		}
	}

	ignored, err := tx.IgnoredIDs(ids)
	if err != nil {
		return sum, err
	}
	existing, err := tx.ExistingPostIDs(ids)
	if err != nil {
		return sum, err
	}

	var fresh []*store.Post
	freshRaw := make(map[string]*source.RawPost)
	for i := range batch {
		raw := &batch[i]
		if raw.ExternalID == "" || raw.Permalink == "" {
			// Malformed item; no row is created for it.
			sum.Skipped++
			continue
		}
		if ignored[raw.ExternalID] || existing[raw.ExternalID] || freshRaw[raw.ExternalID] != nil {
			sum.Skipped++
			continue
		}
		fresh = append(fresh, &store.Post{
			ExternalID:  raw.ExternalID,
			Title:       raw.Title,
			Body:        raw.Body,
			Score:       raw.Score,
			Permalink:   raw.Permalink,
			CommunityID: community.ID,
		})
		freshRaw[raw.ExternalID] = raw
	}
	if len(fresh) == 0 {
		return sum, nil
	}

	if err := tx.InsertPosts(fresh); err != nil {
		return sum, err
	}
	sum.Created = len(fresh)

	var jobs []probeJob
	for _, post := range fresh {
		raw := freshRaw[post.ExternalID]
		for _, cand := range media.ExtractCandidates(raw) {
			prefix := ""
			if cand.Gallery {
				prefix = post.ExternalID
			}
			norm, ok := media.Normalize(cand.URL, prefix)
			if !ok {
				// Unsupported URL, silently dropped.
				continue
			}
			jobs = append(jobs, probeJob{post: post, raw: raw, candidate: cand, norm: norm})
		}
	}

	ignoredNow := make(map[string]bool)
	galleries := make(map[int64]*store.Gallery)
	for _, res := range c.runProbes(ctx, jobs) {
		post := res.job.post
		if !res.valid {
			if !ignoredNow[post.ExternalID] {
				if err := tx.AddIgnored(post.ExternalID); err != nil {
					return sum, err
				}
				ignoredNow[post.ExternalID] = true
				sum.Ignored++
			}
			continue
		}

		asset := &store.MediaAsset{
			ExternalID:  res.job.candidate.ExternalID,
			URL:         res.job.norm.URL,
			Filename:    res.job.norm.Filename,
			PostID:      post.ID,
			CommunityID: community.ID,
		}
		if res.job.candidate.Gallery {
			gallery := galleries[post.ID]
			if gallery == nil {
				gallery, err = tx.GetOrCreateGallery(&store.Gallery{
					ExternalID:  post.ExternalID,
					URL:         res.job.raw.URL,
					PostID:      post.ID,
					CommunityID: community.ID,
				})
				if err != nil {
					return sum, err
				}
				galleries[post.ID] = gallery
				sum.Galleries++
			}
			asset.GalleryID = sql.NullInt64{Int64: gallery.ID, Valid: true}
		}
		if err := tx.InsertMediaAsset(asset); err != nil {
			return sum, err
		}
		sum.Assets++
	}

	// Concurrent workers and repeated runs can race to discover the
	// same asset; repair is part of the normal write path.
	if _, err := tx.RemoveDuplicateAssets(community.ID); err != nil {
		return sum, err
	}
	return sum, nil
}

type probeJob struct {
	post      *store.Post
	raw       *source.RawPost
	candidate media.Candidate
	norm      media.Normalized
}

type probeResult struct {
	job   probeJob
	valid bool
}

// runProbes validates jobs on a bounded worker pool. Every job
// produces exactly one result on the channel; nothing is dropped.
func (c *Coordinator) runProbes(ctx context.Context, jobs []probeJob) []probeResult {
	if len(jobs) == 0 {
		return nil
	}

	workers := min(c.workers, len(jobs))
	jobCh := make(chan probeJob)
	resCh := make(chan probeResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				resCh <- probeResult{job: job, valid: c.validator.IsValidMedia(ctx, job.norm.URL)}
			}
		}()
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()
	close(resCh)

	results := make([]probeResult, 0, len(jobs))
	for res := range resCh {
		results = append(results, res)
	}
	return results
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
