// Package ingest drives the document-to-graph pipeline: load, split, embed,
// extract, write, index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bull/docgraph/internal/docs"
	"github.com/bull/docgraph/internal/embedding"
	"github.com/bull/docgraph/internal/extract"
	"github.com/bull/docgraph/internal/graph"
	"github.com/bull/docgraph/internal/splitter"
)

// FailedChunk records a chunk the run could not persist.
type FailedChunk struct {
	ChunkID string
	Err     error
}

// Result summarizes one ingestion run.
type Result struct {
	RunID       string
	TotalChunks int
	Succeeded   int
	Failed      []FailedChunk
	Duration    time.Duration
}

// Pipeline wires the ingestion stages together. Workers bounds chunk-level
// concurrency; entity upserts on the same key converge via the store's MERGE,
// so no application-side coordination is needed.
type Pipeline struct {
	loader    *docs.Loader
	splitter  *splitter.Splitter
	provider  *embedding.Provider
	extractor *extract.Extractor
	writer    *graph.Writer
	logger    *slog.Logger
	workers   int

	// retryElapsed bounds how long a failing chunk write is retried.
	retryElapsed time.Duration
}

// NewPipeline creates a Pipeline. workers < 1 falls back to 1.
func NewPipeline(loader *docs.Loader, split *splitter.Splitter, provider *embedding.Provider,
	extractor *extract.Extractor, writer *graph.Writer, logger *slog.Logger, workers int) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		loader:    loader,
		splitter:  split,
		provider:  provider,
		extractor: extractor,
		writer:    writer,
		logger:    logger,
		workers:   workers,

		retryElapsed: 30 * time.Second,
	}
}

type chunkJob struct {
	filename string
	chunkID  string
	text     string
}

// Run ingests every supported document under dir. Individual chunk failures
// are recorded and skipped; an embedding dimension mismatch aborts the whole
// run because it means the vector index configuration is wrong. The run is
// idempotent: re-ingesting the same directory leaves graph counts unchanged.
func (p *Pipeline) Run(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString()}

	pages, err := p.loader.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	jobs := p.chunkJobs(pages)
	result.TotalChunks = len(jobs)
	p.logger.Info("Starting ingestion",
		"run_id", result.RunID, "pages", len(pages), "chunks", len(jobs), "workers", p.workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			err := p.ingestChunk(gctx, job)
			if err == nil {
				mu.Lock()
				result.Succeeded++
				mu.Unlock()
				return nil
			}
			if errors.Is(err, embedding.ErrDimensionMismatch) || gctx.Err() != nil {
				return err
			}
			p.logger.Error("Chunk failed", "chunk_id", job.chunkID, "error", err)
			mu.Lock()
			result.Failed = append(result.Failed, FailedChunk{ChunkID: job.chunkID, Err: err})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingestion aborted: %w", err)
	}

	if err := p.writer.CreateVectorIndex(ctx); err != nil {
		return nil, err
	}
	if err := p.writer.CreateFullTextIndex(ctx); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("Ingestion finished",
		"run_id", result.RunID, "succeeded", result.Succeeded,
		"failed", len(result.Failed), "duration", result.Duration)
	return result, nil
}

// chunkJobs splits every page and assigns chunk IDs. The chunk counter runs
// per file across its pages, so IDs stay unique even when a page splits into
// several chunks.
func (p *Pipeline) chunkJobs(pages []docs.Page) []chunkJob {
	var jobs []chunkJob
	counters := make(map[string]int)
	for _, page := range pages {
		for _, text := range p.splitter.Split(page.Text) {
			n := counters[page.Filename]
			counters[page.Filename] = n + 1
			jobs = append(jobs, chunkJob{
				filename: page.Filename,
				chunkID:  fmt.Sprintf("%s.%d", page.Filename, n),
				text:     text,
			})
		}
	}
	return jobs
}

// ingestChunk embeds, persists, and extracts one chunk. The chunk write is
// retried with backoff; extraction parse failures degrade to an empty graph
// so the chunk text still lands in the store.
func (p *Pipeline) ingestChunk(ctx context.Context, job chunkJob) error {
	vec, err := p.provider.Embed(ctx, job.text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	rec := graph.ChunkRecord{
		Filename:  job.filename,
		ChunkID:   job.chunkID,
		Text:      job.text,
		Embedding: vec,
	}
	operation := func() error {
		return p.writer.MergeChunk(ctx, rec)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = p.retryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}

	candidate, err := p.extractor.Extract(ctx, job.chunkID, job.text)
	if err != nil {
		if !errors.Is(err, extract.ErrParseFailure) {
			return fmt.Errorf("extract: %w", err)
		}
		p.logger.Warn("Extraction unparsable, storing chunk without entities",
			"chunk_id", job.chunkID)
	}

	if len(candidate.Nodes) > 0 || len(candidate.Edges) > 0 {
		if err := p.writer.MergeEntities(ctx, candidate); err != nil {
			return fmt.Errorf("write entities: %w", err)
		}
	}
	return nil
}
