// Package pipeline orchestrates the extract-transform-load run: one
// producer pages through the animal listing, a fixed pool of consumer
// workers fetches details, transforms, and loads in batches, connected by a
// bounded work queue.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/animal-etl/pkg/client"
	"github.com/Sternrassler/animal-etl/pkg/logging"
	"github.com/Sternrassler/animal-etl/pkg/model"
	"github.com/Sternrassler/animal-etl/pkg/transform"
)

// Prometheus metrics for pipeline progress.
var (
	pipelinePagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animal_pipeline_pages_total",
		Help: "Total listing pages fetched by the producer",
	})

	pipelineRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_pipeline_records_total",
		Help: "Total records by pipeline stage (fetched, transformed, loaded)",
	}, []string{"stage"})

	pipelineBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animal_pipeline_batches_total",
		Help: "Total batches loaded to the home endpoint",
	})

	pipelineQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "animal_pipeline_queue_depth",
		Help: "Work items currently buffered between producer and consumers",
	})
)

// detailFetchConcurrency bounds simultaneous detail fetches inside one
// worker. It is independent of the worker count, so the true ceiling is
// detailFetchConcurrency x Concurrency; the client's connection pool
// (MaxConns, default 100) is the global backstop.
const detailFetchConcurrency = 10

// AnimalAPI is the upstream surface the pipeline consumes. *client.Client
// satisfies it.
type AnimalAPI interface {
	ListAnimals(ctx context.Context, page, perPage int) (*client.Page, error)
	GetAnimalDetails(ctx context.Context, id int64) (model.Animal, error)
	LoadAnimalsHome(ctx context.Context, animals []model.Animal) (map[string]any, error)
}

// Config holds pipeline tuning.
type Config struct {
	// Concurrency is the number of consumer workers (default 4).
	Concurrency int

	// BatchSize is the load batch size, at most client.MaxBatchSize
	// (default 100).
	BatchSize int

	// PerPage is the listing page size (default 50).
	PerPage int

	// Logger overrides the default component logger.
	Logger *zerolog.Logger
}

// workItem is one page's worth of record identifiers, the unit carried by
// the bounded queue.
type workItem struct {
	page int
	ids  []int64
}

// Pipeline coordinates one ETL run.
type Pipeline struct {
	api         AnimalAPI
	cfg         Config
	transformer *transform.Transformer
	logger      zerolog.Logger
}

// New creates a Pipeline over the given API.
func New(api AnimalAPI, cfg Config) (*Pipeline, error) {
	if api == nil {
		return nil, fmt.Errorf("animal API is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = client.MaxBatchSize
	}
	if cfg.BatchSize > client.MaxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds upstream limit %d", cfg.BatchSize, client.MaxBatchSize)
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 50
	}

	logger := logging.NewLogger("pipeline")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Pipeline{
		api:         api,
		cfg:         cfg,
		transformer: transform.New(),
		logger:      logger,
	}, nil
}

// Run executes the full ETL run and returns the final statistics. Per-record
// and per-batch failures are recorded in the statistics, never escalated;
// Run itself fails only if it cannot start. The shutdown order is producer
// first, then queue drain, then worker cancellation, so no pushed work item
// is ever lost.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	stats := newStats()
	p.logger.Info().
		Int("concurrency", p.cfg.Concurrency).
		Int("batch_size", p.cfg.BatchSize).
		Int("per_page", p.cfg.PerPage).
		Msg("Starting ETL run")

	// One batch of lookahead per worker keeps consumers fed without
	// unbounded memory growth.
	queue := make(chan workItem, 2*p.cfg.Concurrency)

	// pending counts pushed-but-unacknowledged work items. Every consumer
	// acknowledges a popped item exactly once via defer, even when
	// cancelled, otherwise the drain wait below would hang.
	var pending sync.WaitGroup

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var producerWG sync.WaitGroup
	producerWG.Add(1)
	go func() {
		defer producerWG.Done()
		defer close(queue)
		p.produce(ctx, queue, &pending, stats)
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()
			p.consume(workerCtx, workerID, queue, &pending, stats)
		}(i)
	}

	producerWG.Wait()
	pending.Wait()
	cancelWorkers()
	workerWG.Wait()

	stats.finish()
	p.logger.Info().Object("stats", stats).Msg("ETL run complete")
	return stats, nil
}

// produce pages through the listing from page 1 until an empty page or an
// unrecoverable client error, pushing one work item per page. A producer
// failure is recorded and logged, and the already queued work still drains.
func (p *Pipeline) produce(ctx context.Context, queue chan<- workItem, pending *sync.WaitGroup, stats *Stats) {
	for page := 1; ; page++ {
		listing, err := p.api.ListAnimals(ctx, page, p.cfg.PerPage)
		if err != nil {
			msg := fmt.Sprintf("list page %d: %v", page, err)
			stats.addError(msg)
			p.logger.Error().Int("page", page).Err(err).Msg("Producer stopping on listing error")
			return
		}
		if len(listing.Items) == 0 {
			p.logger.Info().Int("pages", page-1).Msg("Pagination exhausted")
			return
		}

		pipelinePagesTotal.Inc()
		ids := extractIDs(listing.Items, p.logger)
		p.logger.Info().Int("page", page).Int("count", len(ids)).Msg("Queued page of animal ids")

		pending.Add(1)
		pipelineQueueDepth.Inc()
		select {
		case queue <- workItem{page: page, ids: ids}:
		case <-ctx.Done():
			pending.Done()
			pipelineQueueDepth.Dec()
			p.logger.Warn().Int("page", page).Msg("Producer cancelled while queueing")
			return
		}
	}
}

// consume pops work items until the queue is closed and drained. The item
// acknowledgement happens in processItem via defer, so cancellation between
// pop and completion still acknowledges exactly once.
func (p *Pipeline) consume(ctx context.Context, workerID int, queue <-chan workItem, pending *sync.WaitGroup, stats *Stats) {
	processed := 0
	for item := range queue {
		p.processItem(ctx, workerID, item, pending, stats)
		processed++
	}
	if processed > 0 {
		p.logger.Debug().Int("worker_id", workerID).Int("items_processed", processed).Msg("Worker completed")
	}
}

// processItem runs the detail-fetch fan-out, transformation, and batched
// load for one page of ids.
func (p *Pipeline) processItem(ctx context.Context, workerID int, item workItem, pending *sync.WaitGroup, stats *Stats) {
	defer pending.Done()
	defer pipelineQueueDepth.Dec()

	if ctx.Err() != nil {
		p.logger.Debug().Int("worker_id", workerID).Int("page", item.page).Msg("Dropping work item, run cancelled")
		return
	}

	fetched := p.fetchDetails(ctx, item, stats)
	stats.addFetched(len(fetched))
	pipelineRecordsTotal.WithLabelValues("fetched").Add(float64(len(fetched)))

	transformed := make([]model.Animal, 0, len(fetched))
	for _, animal := range fetched {
		out, err := p.transformer.Transform(animal)
		if err != nil {
			stats.addError(fmt.Sprintf("transform animal %d: %v", animal.ID, err))
			continue
		}
		transformed = append(transformed, out)
	}
	stats.addTransformed(len(transformed))
	pipelineRecordsTotal.WithLabelValues("transformed").Add(float64(len(transformed)))

	if len(transformed) == 0 {
		return
	}

	for start := 0; start < len(transformed); start += p.cfg.BatchSize {
		if ctx.Err() != nil {
			p.logger.Debug().Int("worker_id", workerID).Int("page", item.page).Msg("Skipping remaining batches, run cancelled")
			return
		}

		end := min(start+p.cfg.BatchSize, len(transformed))
		batch := transformed[start:end]

		if _, err := p.api.LoadAnimalsHome(ctx, batch); err != nil {
			stats.addError(fmt.Sprintf("load batch (page %d): %v", item.page, err))
			p.logger.Error().Int("page", item.page).Int("count", len(batch)).Err(err).Msg("Batch load failed")
			continue
		}

		stats.addBatch(len(batch))
		pipelineRecordsTotal.WithLabelValues("loaded").Add(float64(len(batch)))
		pipelineBatchesTotal.Inc()
		p.logger.Info().Int("worker_id", workerID).Int("page", item.page).Int("count", len(batch)).Msg("Batch loaded")
	}
}

// fetchDetails fans out the item's ids with a fixed inner concurrency bound.
// Failed fetches are recorded and dropped; order of the surviving records
// follows the listing order.
func (p *Pipeline) fetchDetails(ctx context.Context, item workItem, stats *Stats) []model.Animal {
	results := make([]*model.Animal, len(item.ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFetchConcurrency)
	for i, id := range item.ids {
		i, id := i, id
		g.Go(func() error {
			animal, err := p.api.GetAnimalDetails(gctx, id)
			if err != nil {
				stats.addError(fmt.Sprintf("fetch animal %d: %v", id, err))
				p.logger.Warn().Int64("animal_id", id).Err(err).Msg("Detail fetch failed, skipping record")
				return nil
			}
			results[i] = &animal
			return nil
		})
	}
	// Worker errors are contained above; Wait only joins the goroutines.
	_ = g.Wait()

	fetched := make([]model.Animal, 0, len(item.ids))
	for _, r := range results {
		if r != nil {
			fetched = append(fetched, *r)
		}
	}
	return fetched
}

// extractIDs pulls the id out of each listing item; items without a numeric
// id are logged and skipped.
func extractIDs(items []json.RawMessage, logger zerolog.Logger) []int64 {
	ids := make([]int64, 0, len(items))
	for _, raw := range items {
		var item struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(raw, &item); err != nil || item.ID == 0 {
			logger.Warn().RawJSON("item", raw).Msg("Listing item without usable id, skipping")
			continue
		}
		ids = append(ids, item.ID)
	}
	return ids
}
